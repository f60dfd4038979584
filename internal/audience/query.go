// Package audience translates a Schedule's target descriptor and an
// optional timezone into an abstract recipient query.
package audience

import "github.com/notifyhub/pushsched/internal/domain"

// Query is the abstract recipient query handed to
// repository.UserRepository.ResolvePage. It carries no SQL; the repository
// implementation decides how to translate it into a WHERE clause.
type Query struct {
	Timezone  *string // nil = every timezone
	Genders   []domain.Gender
	Platforms []domain.Platform
	AgeRange  *domain.AgeRange
}

// Build constructs the Query for a Schedule's audience, optionally scoped
// to a single timezone shard. The base predicate
// (isActive=true, non-empty device token, opted-in) is always enforced by
// the repository layer, not encoded here — Query only carries the parts
// that vary per schedule/timezone.
func Build(s *domain.Schedule, timezone *string) Query {
	q := Query{Timezone: timezone}
	if s.Audience == domain.AudienceFiltered && s.Filter != nil {
		q.Genders = s.Filter.Genders
		q.Platforms = s.Filter.Platforms
		q.AgeRange = s.Filter.AgeRange
	}
	return q
}
