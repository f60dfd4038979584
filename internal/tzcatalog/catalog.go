// Package tzcatalog canonicalizes IANA timezone strings and computes the
// next daily local-wall-clock occurrence in UTC.
package tzcatalog

import (
	"sort"
	"strings"
	"time"

	// Embeds the IANA tzdata database so LoadLocation works without a
	// system zoneinfo install (e.g. on scratch/distroless containers).
	_ "time/tzdata"

	"github.com/notifyhub/pushsched/internal/domain"
)

// Catalog resolves canonical (lowercased) timezone names to *time.Location
// values via the generated lowercase-to-database-spelling table.
type Catalog struct{}

// New returns a ready-to-use Catalog. It carries no state beyond the
// process-wide tzdata binding, so a zero value would also work; New exists
// for symmetry with the rest of the components' constructor style.
func New() *Catalog {
	return &Catalog{}
}

// Canonicalize trims whitespace and lowercases tz, then verifies it names a
// real IANA zone. Returns domain.ErrInvalidTimezone for anything else.
func (c *Catalog) Canonicalize(tz string) (string, error) {
	canon := strings.ToLower(strings.TrimSpace(tz))
	if canon == "" {
		return "", domain.ErrInvalidTimezone
	}
	if _, err := c.location(canon); err != nil {
		return "", domain.ErrInvalidTimezone
	}
	return canon, nil
}

// location resolves a canonical (lowercased) name to a *time.Location.
// time.LoadLocation matches tzdata entries case-sensitively, so the
// lowercased form is mapped back to its database spelling first.
func (c *Catalog) location(canon string) (*time.Location, error) {
	name, ok := canonicalCase[canon]
	if !ok {
		// Names not in the table (aliases the local tzdata build dropped)
		// still resolve if the caller happened to pass the exact spelling.
		name = canon
	}
	return time.LoadLocation(name)
}

// NextOccurrenceUTC computes the next absolute UTC instant at which
// localTime ("HH:MM") occurs in the canonical zone tz, relative to now.
//
// It builds a candidate at today's localTime in tz; if that candidate is
// not strictly after "now" as observed in tz, it advances one calendar day.
// The comparison is done via the zone's own offset at the candidate instant
// (DST-aware), not by adding a fixed 24h — so a transition day's candidate
// reflects the zone's actual wall-clock shift.
func (c *Catalog) NextOccurrenceUTC(localTime, tz string, now time.Time) (time.Time, error) {
	if !domain.ValidLocalTime(localTime) {
		return time.Time{}, domain.ErrInvalidLocalTime
	}
	loc, err := c.location(tz)
	if err != nil {
		return time.Time{}, domain.ErrInvalidTimezone
	}

	h, m := parseHHMM(localTime)

	nowInTZ := now.In(loc)
	candidate := time.Date(nowInTZ.Year(), nowInTZ.Month(), nowInTZ.Day(), h, m, 0, 0, loc)

	// Tie-break: a candidate exactly equal to "now" moves to the next day,
	// preventing immediate re-fire right at the processing boundary.
	if !candidate.After(nowInTZ) {
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, h, m, 0, 0, loc)
	}

	return candidate.UTC(), nil
}

// parseHHMM assumes s already satisfies domain.ValidLocalTime's "HH:MM" shape.
func parseHHMM(s string) (h, m int) {
	return int(s[0]-'0')*10 + int(s[1]-'0'), int(s[3]-'0')*10 + int(s[4]-'0')
}

// ListKnown returns every canonical zone name in the catalog, sorted, for
// the admin dashboard's timezone picker. It is a
// convenience read, not used by any core scheduling path.
func (c *Catalog) ListKnown() []string {
	zones := make([]string, 0, len(canonicalCase))
	for z := range canonicalCase {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}
