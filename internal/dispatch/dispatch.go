// Package dispatch implements the dispatch worker: for each dequeued job
// it loads the schedule, resolves its audience, submits
// batches to the push gateway, triages failures, persists logs/history, and
// — for daily schedules — re-plans the next occurrence and sweeps for newly
// discovered timezones.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/audience"
	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/gateway"
	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/metrics"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/ratelimiter"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/retry"
)

// maxConcurrentBatches bounds how many gateway batches a single dispatch
// may have in flight at once.
const maxConcurrentBatches = 4

// audiencePageSize is both the keyset page size and the gateway's maximum
// multicast unit, so every resolved page maps to exactly one gateway batch.
const audiencePageSize = gateway.MaxBatchTokens

// Dispatcher wires together the collaborators one dispatch needs.
type Dispatcher struct {
	scheduleRepo repository.ScheduleRepository
	userRepo     repository.UserRepository
	logRepo      repository.LogRepository
	historyRepo  repository.HistoryRepository
	gateway      gateway.Gateway
	planner      *planner.Planner
	discovery    *discovery.Discovery
	retry        *retry.Pipeline
	idgen        idgen.Generator
	limiter      *ratelimiter.GatewayLimiter
	metrics      *metrics.Metrics
	now          func() time.Time
	logger       *zap.Logger
}

func New(
	scheduleRepo repository.ScheduleRepository,
	userRepo repository.UserRepository,
	logRepo repository.LogRepository,
	historyRepo repository.HistoryRepository,
	gw gateway.Gateway,
	p *planner.Planner,
	d *discovery.Discovery,
	r *retry.Pipeline,
	gen idgen.Generator,
	now func() time.Time,
	logger *zap.Logger,
) *Dispatcher {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		scheduleRepo: scheduleRepo, userRepo: userRepo, logRepo: logRepo, historyRepo: historyRepo,
		gateway: gw, planner: p, discovery: d, retry: r, idgen: gen, now: now, logger: logger,
	}
}

// WithLimiter attaches a gateway rate limiter, waited on immediately before
// every SendMulticast call. Returns the Dispatcher for chaining; nil is
// safe (no throttling).
func (d *Dispatcher) WithLimiter(l *ratelimiter.GatewayLimiter) *Dispatcher {
	d.limiter = l
	return d
}

// WithMetrics attaches Prometheus instrumentation. Returns the Dispatcher
// for chaining; nil is safe (metrics calls are skipped).
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// batchOutcome aggregates one page/batch's triage result under the shared
// mutex in sendToAudience.
type batchOutcome struct {
	totalTargeted int
	success       int
	failure       int
	retryable     []retry.Recipient
}

// Dispatch is the single routine every job kind shares.
func (d *Dispatcher) Dispatch(ctx context.Context, job jobqueue.Job) error {
	schedule, err := d.scheduleRepo.GetByID(ctx, job.ScheduleID)
	if errors.Is(err, domain.ErrScheduleNotFound) {
		d.logger.Info("dispatch: schedule no longer exists, dropping job", zap.String("schedule_id", job.ScheduleID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if !schedule.IsActive {
		d.logger.Info("dispatch: schedule inactive, skipping job", zap.String("schedule_id", schedule.ID))
		return nil
	}

	var tzPtr *string
	if job.Timezone != "" {
		tzPtr = &job.Timezone
	}
	query := audience.Build(schedule, tzPtr)

	outcome, err := d.sendToAudience(ctx, schedule, query)
	if err != nil {
		return fmt.Errorf("send to audience: %w", err)
	}

	now := d.now()
	if outcome.totalTargeted == 0 {
		msg := "no valid users"
		if err := d.historyRepo.Create(ctx, &domain.NotificationHistory{
			ID: d.idgen.NewID(), ScheduleID: schedule.ID, FiredAt: now,
			TotalTargeted: 0, SuccessCount: 0, FailureCount: 0,
			Status: domain.HistoryFailed, ErrorMessage: &msg,
		}); err != nil {
			return fmt.Errorf("persist empty-audience history: %w", err)
		}
		if err := d.scheduleRepo.RecordFiring(ctx, schedule.ID, 0, 0, 0, now, string(domain.HistoryFailed), &msg); err != nil {
			return fmt.Errorf("record empty-audience firing: %w", err)
		}
		d.observeFiring(domain.HistoryFailed)
		if schedule.Kind != domain.KindDaily {
			if err := d.scheduleRepo.UpdateStatus(ctx, schedule.ID, domain.StatusFailed, schedule.IsActive); err != nil {
				return fmt.Errorf("mark terminal failed: %w", err)
			}
		}
	} else {
		status := domain.DeriveHistoryStatus(outcome.success, outcome.totalTargeted)
		if err := d.historyRepo.Create(ctx, &domain.NotificationHistory{
			ID: d.idgen.NewID(), ScheduleID: schedule.ID, FiredAt: now,
			TotalTargeted: outcome.totalTargeted, SuccessCount: outcome.success, FailureCount: outcome.failure,
			Status: status,
		}); err != nil {
			return fmt.Errorf("persist history: %w", err)
		}
		if err := d.scheduleRepo.RecordFiring(ctx, schedule.ID, outcome.totalTargeted, outcome.success, outcome.failure, now, string(status), nil); err != nil {
			return fmt.Errorf("record firing: %w", err)
		}
		d.observeFiring(status)
		if schedule.Kind != domain.KindDaily {
			terminal := domain.StatusCompleted
			if status == domain.HistoryFailed {
				terminal = domain.StatusFailed
			}
			if err := d.scheduleRepo.UpdateStatus(ctx, schedule.ID, terminal, schedule.IsActive); err != nil {
				return fmt.Errorf("mark terminal status: %w", err)
			}
		}
	}

	if err := d.enqueueRetries(ctx, schedule, outcome); err != nil {
		d.logger.Warn("dispatch: failed to enqueue retries", zap.String("schedule_id", schedule.ID), zap.Error(err))
	}

	if schedule.Kind == domain.KindDaily {
		if err := d.planner.PlanDaily(ctx, schedule.ID, job.Timezone, schedule.LocalTime); err != nil {
			d.logger.Warn("dispatch: failed to re-plan next occurrence",
				zap.String("schedule_id", schedule.ID), zap.String("timezone", job.Timezone), zap.Error(err))
		}
		if err := d.discovery.PostFiringSweep(ctx, job.Timezone); err != nil {
			d.logger.Warn("dispatch: post-firing discovery sweep failed", zap.Error(err))
		}
	}

	return nil
}

func (d *Dispatcher) enqueueRetries(ctx context.Context, schedule *domain.Schedule, outcome batchOutcome) error {
	if len(outcome.retryable) == 0 {
		return nil
	}
	if err := d.retry.Enqueue(ctx, schedule.ID, outcome.retryable, schedule.Title, schedule.Message, schedule.Category); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.RetryJobsEnqueued.Inc()
	}
	return nil
}

// observeFiring records one firing's outcome status in the Prometheus
// counters, if metrics were attached.
func (d *Dispatcher) observeFiring(status domain.HistoryStatus) {
	if d.metrics == nil {
		return
	}
	d.metrics.FiringsTotal.WithLabelValues(string(status)).Inc()
}

// sendToAudience streams the eligible audience page by page, submitting
// each page as its own gateway batch under a bounded errgroup.
func (d *Dispatcher) sendToAudience(ctx context.Context, schedule *domain.Schedule, query audience.Query) (batchOutcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	var mu sync.Mutex
	var total batchOutcome
	var targeted int

	afterID := ""
	for {
		page, err := d.userRepo.ResolvePage(ctx, query, afterID, audiencePageSize)
		if err != nil {
			return batchOutcome{}, fmt.Errorf("resolve audience page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		// Defence in depth: the repository's base predicate already
		// enforces non-empty tokens, but never trust it blindly.
		eligible := make([]*domain.User, 0, len(page))
		for _, u := range page {
			if u.DeviceToken.Token != "" {
				eligible = append(eligible, u)
			}
		}
		mu.Lock()
		targeted += len(eligible)
		mu.Unlock()

		batch := eligible
		g.Go(func() error {
			out, err := d.sendBatch(gctx, schedule, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			total.success += out.success
			total.failure += out.failure
			total.retryable = append(total.retryable, out.retryable...)
			mu.Unlock()
			return nil
		})

		if len(page) < audiencePageSize {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return batchOutcome{}, err
	}
	total.totalTargeted = targeted
	return total, nil
}

// sendBatch submits one page of recipients to the gateway, persists logs,
// clears permanently failed tokens, and reports the retryable recipients
// for the caller to hand off to the retry pipeline.
func (d *Dispatcher) sendBatch(ctx context.Context, schedule *domain.Schedule, batch []*domain.User) (batchOutcome, error) {
	if len(batch) == 0 {
		return batchOutcome{}, nil
	}
	tokens := make([]string, len(batch))
	for i, u := range batch {
		tokens[i] = u.DeviceToken.Token
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return batchOutcome{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	sendStart := time.Now()
	result, err := d.gateway.SendMulticast(ctx, tokens, gateway.Payload{
		Title: schedule.Title, Body: schedule.Message, Category: schedule.Category,
		Data: map[string]any{"category": schedule.Category, "scheduleId": schedule.ID},
	})
	if d.metrics != nil {
		d.metrics.ObserveGatewayCall(time.Since(sendStart))
	}
	if err != nil {
		return batchOutcome{}, fmt.Errorf("gateway send: %w", err)
	}

	failed := make(map[string]string, len(result.Failures)) // token -> errorCode
	gatewayFailures := make([]domain.GatewayFailure, len(result.Failures))
	for i, f := range result.Failures {
		failed[f.Token] = f.ErrorCode
		gatewayFailures[i] = domain.GatewayFailure{Token: f.Token, ErrorCode: f.ErrorCode}
	}
	retryableFailures, permanentFailures := domain.PartitionFailures(gatewayFailures)

	byToken := make(map[string]*domain.User, len(batch))
	for _, u := range batch {
		byToken[u.DeviceToken.Token] = u
	}

	now := time.Now().UTC()
	logs := make([]*domain.NotificationLog, 0, len(batch))
	for _, u := range batch {
		status := domain.LogSent
		if _, isFailure := failed[u.DeviceToken.Token]; isFailure {
			status = domain.LogFailed
		}
		logs = append(logs, &domain.NotificationLog{
			ID: d.idgen.NewID(), UserID: u.ID, ScheduleID: schedule.ID,
			Title: schedule.Title, Message: schedule.Message, Category: schedule.Category,
			Status: status, SentAt: now, DeviceToken: u.DeviceToken.Token,
		})
	}
	if err := d.logRepo.InsertMany(ctx, logs); err != nil {
		return batchOutcome{}, fmt.Errorf("insert logs: %w", err)
	}

	out := batchOutcome{success: len(batch) - len(result.Failures), failure: len(result.Failures)}
	if d.metrics != nil {
		d.metrics.RecipientsSent.Add(float64(out.success))
		d.metrics.RecipientsFailed.Add(float64(len(permanentFailures)))
	}
	for _, f := range permanentFailures {
		u := byToken[f.Token]
		if u == nil {
			continue
		}
		if err := d.userRepo.ClearToken(ctx, u.ID); err != nil {
			d.logger.Warn("dispatch: failed to clear permanently failed token", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	for _, f := range retryableFailures {
		u := byToken[f.Token]
		if u == nil {
			continue
		}
		out.retryable = append(out.retryable, retry.Recipient{UserID: u.ID, Token: f.Token})
	}
	return out, nil
}
