// Package retry implements the retry pipeline: transient gateway
// failures are resubmitted with exponential backoff,
// bounded at three attempts, after which the remaining recipients are
// surrendered as final failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/gateway"
	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/metrics"
	"github.com/notifyhub/pushsched/internal/ratelimiter"
	"github.com/notifyhub/pushsched/internal/repository"
)

// MaxAttempts bounds the retry pipeline: after attempt == MaxAttempts is
// processed, remaining retryable failures are final.
const MaxAttempts = 3

// baseBackoff seeds the exponential backoff: attempt 1 waits 60s, each
// further attempt doubles it.
const baseBackoff = 60 * time.Second

func backoffFor(attempt int) time.Duration {
	return baseBackoff * time.Duration(1<<uint(attempt-1))
}

type Pipeline struct {
	queue        *jobqueue.Queue
	scheduleRepo repository.ScheduleRepository
	userRepo     repository.UserRepository
	logRepo      repository.LogRepository
	gateway      gateway.Gateway
	idgen        idgen.Generator
	logger       *zap.Logger
	limiter      *ratelimiter.GatewayLimiter
	metrics      *metrics.Metrics
}

func New(queue *jobqueue.Queue, scheduleRepo repository.ScheduleRepository, userRepo repository.UserRepository, logRepo repository.LogRepository, gw gateway.Gateway, gen idgen.Generator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		queue: queue, scheduleRepo: scheduleRepo, userRepo: userRepo,
		logRepo: logRepo, gateway: gw, idgen: gen, logger: logger,
	}
}

// WithLimiter attaches a gateway rate limiter, waited on immediately before
// every retry SendMulticast call. Returns the Pipeline for chaining; nil is
// safe (no throttling).
func (p *Pipeline) WithLimiter(l *ratelimiter.GatewayLimiter) *Pipeline {
	p.limiter = l
	return p
}

// WithMetrics attaches Prometheus instrumentation. Returns the Pipeline for
// chaining; nil is safe (metrics calls are skipped).
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Enqueue schedules the first retry attempt for a batch of recipients that
// failed with a retryable gateway error code.
func (p *Pipeline) Enqueue(ctx context.Context, scheduleID string, recipients []Recipient, title, body, category string) error {
	if len(recipients) == 0 {
		return nil
	}
	return p.enqueueAttempt(ctx, scheduleID, recipients, 1, title, body, category)
}

func (p *Pipeline) enqueueAttempt(ctx context.Context, scheduleID string, recipients []Recipient, attempt int, title, body, category string) error {
	payload, err := marshalPayload(Payload{
		Recipients: recipients, Attempt: attempt, Title: title, Body: body, Category: category,
	})
	if err != nil {
		return fmt.Errorf("marshal retry payload: %w", err)
	}
	return p.queue.Enqueue(ctx, jobqueue.KindRetry, scheduleID, "", payload, jobqueue.EnqueueOptions{
		JobID:   "retry-" + p.idgen.NewID(),
		DelayMs: backoffFor(attempt).Milliseconds(),
	})
}

// Process resubmits a dequeued retry job's recipients to the gateway,
// triages the result, and either surrenders or re-enqueues the recipients
// still failing transiently.
func (p *Pipeline) Process(ctx context.Context, job jobqueue.Job) error {
	schedule, err := p.scheduleRepo.GetByID(ctx, job.ScheduleID)
	if errors.Is(err, domain.ErrScheduleNotFound) {
		p.logger.Info("retry: schedule no longer exists, dropping job", zap.String("schedule_id", job.ScheduleID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if !schedule.IsActive {
		p.logger.Info("retry: schedule inactive, dropping job", zap.String("schedule_id", job.ScheduleID))
		return nil
	}

	payload, err := unmarshalPayload(job.Payload)
	if err != nil {
		return fmt.Errorf("unmarshal retry payload: %w", err)
	}

	tokens := make([]string, len(payload.Recipients))
	byToken := make(map[string]Recipient, len(payload.Recipients))
	for i, r := range payload.Recipients {
		tokens[i] = r.Token
		byToken[r.Token] = r
	}

	pushPayload := gateway.Payload{
		Title: payload.Title, Body: payload.Body, Category: payload.Category,
		Data: map[string]any{"category": payload.Category, "scheduleId": job.ScheduleID},
	}

	// Most retry jobs are far under the multicast limit, but a large firing
	// with a gateway-wide outage can owe more than one batch.
	var result gateway.MulticastResult
	for _, batch := range gateway.Batches(tokens) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		sendStart := time.Now()
		r, err := p.gateway.SendMulticast(ctx, batch, pushPayload)
		if p.metrics != nil {
			p.metrics.ObserveGatewayCall(time.Since(sendStart))
		}
		if err != nil {
			return fmt.Errorf("retry gateway send: %w", err)
		}
		result.SuccessCount += r.SuccessCount
		result.FailureCount += r.FailureCount
		result.Failures = append(result.Failures, r.Failures...)
	}

	failed := make(map[string]bool, len(result.Failures))
	gatewayFailures := make([]domain.GatewayFailure, len(result.Failures))
	for i, f := range result.Failures {
		failed[f.Token] = true
		gatewayFailures[i] = domain.GatewayFailure{Token: f.Token, ErrorCode: f.ErrorCode}
	}
	retryable, permanent := domain.PartitionFailures(gatewayFailures)

	now := time.Now().UTC()
	logs := make([]*domain.NotificationLog, 0, len(payload.Recipients))
	for _, r := range payload.Recipients {
		status := domain.LogSent
		if failed[r.Token] {
			status = domain.LogFailed
		}
		logs = append(logs, &domain.NotificationLog{
			ID: p.idgen.NewID(), UserID: r.UserID, ScheduleID: job.ScheduleID,
			Title: payload.Title, Message: payload.Body, Category: payload.Category,
			Status: status, SentAt: now, DeviceToken: r.Token,
		})
	}
	if err := p.logRepo.InsertMany(ctx, logs); err != nil {
		return fmt.Errorf("insert retry logs: %w", err)
	}

	for _, f := range permanent {
		if r, ok := byToken[f.Token]; ok {
			if err := p.userRepo.ClearToken(ctx, r.UserID); err != nil {
				p.logger.Warn("retry: failed to clear permanently failed token",
					zap.String("user_id", r.UserID), zap.Error(err))
			}
		}
	}

	// Every recipient on this job was already counted failed by the firing
	// that spawned it. Recoveries flip that verdict: +success, -failure.
	// Still-failing recipients (retryable or now-permanent) stay counted as
	// they were; clearing a permanent token is that verdict's only new
	// durable effect.
	successDelta := len(payload.Recipients) - len(result.Failures)
	failureDelta := -successDelta
	if err := p.scheduleRepo.AdjustCounters(ctx, job.ScheduleID, successDelta, failureDelta); err != nil {
		p.logger.Warn("retry: failed to adjust schedule counters", zap.Error(err))
	}
	if p.metrics != nil {
		p.metrics.RecipientsSent.Add(float64(successDelta))
		p.metrics.RecipientsFailed.Add(float64(len(permanent)))
	}

	if len(retryable) == 0 {
		return nil
	}
	if payload.Attempt >= MaxAttempts {
		p.logger.Info("retry: max attempts reached, surrendering",
			zap.String("schedule_id", job.ScheduleID), zap.Int("recipients", len(retryable)))
		if p.metrics != nil {
			p.metrics.RecipientsFailed.Add(float64(len(retryable)))
		}
		return nil
	}

	next := make([]Recipient, len(retryable))
	for i, f := range retryable {
		next[i] = byToken[f.Token]
	}
	return p.enqueueAttempt(ctx, job.ScheduleID, next, payload.Attempt+1, payload.Title, payload.Body, payload.Category)
}
