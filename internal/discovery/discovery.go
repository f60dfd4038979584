// Package discovery implements the timezone discovery hook: when a device
// registers a new or changed timezone, every active daily schedule gets a
// job planned for that timezone if one isn't already pending. The same
// Sweep function backs both the device-registration call site and the
// dispatch worker's post-firing sweep.
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

type Discovery struct {
	scheduleRepo repository.ScheduleRepository
	userRepo     repository.UserRepository
	planner      *planner.Planner
	catalog      *tzcatalog.Catalog
	logger       *zap.Logger
}

func New(scheduleRepo repository.ScheduleRepository, userRepo repository.UserRepository, p *planner.Planner, catalog *tzcatalog.Catalog, logger *zap.Logger) *Discovery {
	return &Discovery{scheduleRepo: scheduleRepo, userRepo: userRepo, planner: p, catalog: catalog, logger: logger}
}

// Sweep plans a daily occurrence in tz for every schedule in schedules
// that doesn't already have one pending. It is idempotent: a second call
// with no state change enqueues nothing.
func (d *Discovery) Sweep(ctx context.Context, tz string, schedules []*domain.Schedule) error {
	var firstErr error
	for _, s := range schedules {
		pending, err := d.planner.HasPendingDaily(ctx, s.ID, tz)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if pending {
			continue
		}
		if err := d.planner.PlanDaily(ctx, s.ID, tz, s.LocalTime); err != nil {
			d.logger.Warn("discovery: failed to plan daily occurrence",
				zap.String("schedule_id", s.ID), zap.String("timezone", tz), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// OnDeviceRegistered implements the registration-hook call site:
// canonicalize the timezone, persist the device token, and — only if
// something actually changed for this user — sweep every active daily
// schedule for the new timezone.
func (d *Discovery) OnDeviceRegistered(ctx context.Context, userID, timezone string, token domain.DeviceToken) error {
	canonical, err := d.catalog.Canonicalize(timezone)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidTimezone, timezone)
	}
	if token.Token == "" {
		return domain.ErrInvalidToken
	}

	isNewTimezone, isNewToken, isFirstRegistration, err := d.userRepo.RegisterDevice(ctx, userID, canonical, token)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	if !isNewTimezone && !isNewToken && !isFirstRegistration {
		return nil
	}

	schedules, err := d.scheduleRepo.ListActiveDaily(ctx)
	if err != nil {
		return fmt.Errorf("list active daily schedules: %w", err)
	}
	return d.Sweep(ctx, canonical, schedules)
}

// PostFiringSweep runs after a daily firing: once the worker has
// re-planned the timezone that just fired, it sweeps every other distinct
// timezone present in the eligible population against every active daily
// schedule. currentTimezone is always skipped; the worker already
// re-planned it, and sweeping it again would double-enqueue.
func (d *Discovery) PostFiringSweep(ctx context.Context, currentTimezone string) error {
	schedules, err := d.scheduleRepo.ListActiveDaily(ctx)
	if err != nil {
		return fmt.Errorf("list active daily schedules: %w", err)
	}
	zones, err := d.userRepo.DistinctEligibleTimezones(ctx)
	if err != nil {
		return fmt.Errorf("list distinct eligible timezones: %w", err)
	}

	var firstErr error
	for _, tz := range zones {
		if tz == currentTimezone {
			continue
		}
		if err := d.Sweep(ctx, tz, schedules); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
