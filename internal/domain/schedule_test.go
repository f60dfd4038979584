package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pushsched/internal/domain"
)

func TestValidLocalTime(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"09:00", true},
		{"23:59", true},
		{"00:00", true},
		{"24:00", false},
		{"9:5", false},
		{"9:05", false},
		{"09:60", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.valid, domain.ValidLocalTime(c.in), "input %q", c.in)
	}
}

func TestCreateScheduleRequest_Validate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("daily requires valid local time", func(t *testing.T) {
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindDaily,
			Audience: domain.AudienceAll, LocalTime: "24:00",
		}
		require.ErrorIs(t, r.Validate(now), domain.ErrInvalidLocalTime)
	})

	t.Run("once requires strictly future fireAt", func(t *testing.T) {
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindOnce,
			Audience: domain.AudienceAll, FireAt: &now,
		}
		require.ErrorIs(t, r.Validate(now), domain.ErrInvalidFireAt)
	})

	t.Run("once with future fireAt passes", func(t *testing.T) {
		future := now.Add(time.Hour)
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindOnce,
			Audience: domain.AudienceAll, FireAt: &future,
		}
		require.NoError(t, r.Validate(now))
	})

	t.Run("filtered audience requires at least one sub-field", func(t *testing.T) {
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindInstant,
			Audience: domain.AudienceFiltered,
		}
		require.ErrorIs(t, r.Validate(now), domain.ErrInvalidAudience)
	})

	t.Run("filtered audience with gender passes", func(t *testing.T) {
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindInstant,
			Audience: domain.AudienceFiltered,
			Filter:   &domain.Filter{Genders: []domain.Gender{domain.GenderMale}},
		}
		require.NoError(t, r.Validate(now))
	})

	t.Run("invalid age range rejected", func(t *testing.T) {
		r := domain.CreateScheduleRequest{
			Title: "Hi", Message: "there", Kind: domain.KindInstant,
			Audience: domain.AudienceFiltered,
			Filter:   &domain.Filter{AgeRange: &domain.AgeRange{Min: 50, Max: 20}},
		}
		require.ErrorIs(t, r.Validate(now), domain.ErrInvalidAgeRange)
	})

	t.Run("title too long rejected", func(t *testing.T) {
		long := make([]byte, 66)
		for i := range long {
			long[i] = 'x'
		}
		r := domain.CreateScheduleRequest{
			Title: string(long), Message: "m", Kind: domain.KindInstant,
			Audience: domain.AudienceAll,
		}
		require.ErrorIs(t, r.Validate(now), domain.ErrInvalidTitle)
	})
}

func TestDeriveHistoryStatus(t *testing.T) {
	cases := []struct {
		name    string
		success int
		total   int
		want    domain.HistoryStatus
	}{
		{"all succeed", 2, 2, domain.HistorySent},
		{"no recipients", 0, 0, domain.HistoryFailed},
		{"half succeed at boundary", 1, 2, domain.HistoryPartialSuccess},
		{"below half fails", 1, 3, domain.HistoryFailed},
		{"zero success with recipients fails", 0, 3, domain.HistoryFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, domain.DeriveHistoryStatus(c.success, c.total))
		})
	}
}
