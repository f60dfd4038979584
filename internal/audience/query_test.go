package audience_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/pushsched/internal/audience"
	"github.com/notifyhub/pushsched/internal/domain"
)

func TestBuild_All(t *testing.T) {
	s := &domain.Schedule{Audience: domain.AudienceAll}
	q := audience.Build(s, nil)
	assert.Nil(t, q.Timezone)
	assert.Empty(t, q.Genders)
	assert.Empty(t, q.Platforms)
	assert.Nil(t, q.AgeRange)
}

func TestBuild_FilteredWithTimezone(t *testing.T) {
	tz := "asia/tokyo"
	s := &domain.Schedule{
		Audience: domain.AudienceFiltered,
		Filter: &domain.Filter{
			Genders:   []domain.Gender{domain.GenderFemale},
			Platforms: []domain.Platform{domain.PlatformIOS, domain.PlatformAndroid},
			AgeRange:  &domain.AgeRange{Min: 18, Max: 35},
		},
	}
	q := audience.Build(s, &tz)
	assert.Equal(t, "asia/tokyo", *q.Timezone)
	assert.Equal(t, []domain.Gender{domain.GenderFemale}, q.Genders)
	assert.Len(t, q.Platforms, 2)
	assert.Equal(t, 18, q.AgeRange.Min)
}

func TestBuild_AllIgnoresFilterEvenIfSet(t *testing.T) {
	s := &domain.Schedule{
		Audience: domain.AudienceAll,
		Filter:   &domain.Filter{Genders: []domain.Gender{domain.GenderMale}},
	}
	q := audience.Build(s, nil)
	assert.Empty(t, q.Genders)
}
