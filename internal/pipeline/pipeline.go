// Package pipeline drives inbound usage updates through crossing detection,
// history persistence and mail notification.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quotamail/quotamail/internal/detector"
	"github.com/quotamail/quotamail/internal/logging"
	"github.com/quotamail/quotamail/internal/mailer"
	"github.com/quotamail/quotamail/internal/metrics"
	"github.com/quotamail/quotamail/internal/models"
	"github.com/quotamail/quotamail/internal/opsalert"
	"github.com/quotamail/quotamail/internal/store"
)

// Pipeline processes usage updates for all tracked dimensions. Updates for
// the same user are serialized; updates for different users run concurrently.
type Pipeline struct {
	store    store.HistoryStore
	updater  *detector.HistoryUpdater
	notifier *mailer.Notifier
	logger   *logging.Logger
	metrics  *metrics.Metrics
	alerter  *opsalert.Alerter
	now      func() time.Time

	cfgMu       sync.RWMutex
	thresholds  models.ThresholdSet
	gracePeriod time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option is a functional option for Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithAlerter sets the operator alerter for pipeline failures.
func WithAlerter(a *opsalert.Alerter) Option {
	return func(p *Pipeline) {
		p.alerter = a
	}
}

// WithNow overrides the clock. Tests use this to pin detection time.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a pipeline over the given store and notifier.
func New(s store.HistoryStore, notifier *mailer.Notifier, thresholds models.ThresholdSet, gracePeriod time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       s,
		updater:     detector.NewHistoryUpdater(s),
		notifier:    notifier,
		logger:      logging.NewLogger(),
		thresholds:  thresholds,
		gracePeriod: gracePeriod,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reconfigure atomically swaps the threshold set and grace period. Updates
// already past the snapshot point finish with the old values.
func (p *Pipeline) Reconfigure(thresholds models.ThresholdSet, gracePeriod time.Duration) {
	p.cfgMu.Lock()
	p.thresholds = thresholds
	p.gracePeriod = gracePeriod
	p.cfgMu.Unlock()

	p.logger.Info("pipeline reconfigured",
		"thresholds", thresholds.Size(),
		"grace_period", gracePeriod.String(),
	)
}

// Result is the outcome of processing one usage update.
type Result struct {
	// Crossings holds the per-dimension crossing decision.
	Crossings map[models.Dimension]models.Crossing
	// Notified reports whether a notification email was sent.
	Notified bool
}

// dimensionResult carries one dimension's detection output across the
// parallel phase.
type dimensionResult struct {
	crossing models.Crossing
	updated  models.ThresholdHistory
	err      error
}

// OnUsageUpdate runs the full pipeline for one update: detect crossings for
// every dimension against a single observation time, persist the history
// changes, then send at most one notification covering all notifiable
// dimensions. History persistence failures abort before any mail is sent.
func (p *Pipeline) OnUsageUpdate(ctx context.Context, update models.UsageUpdate) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		p.recordUpdate("rejected")
		return nil, fmt.Errorf("invalid usage update: %w", err)
	}

	lock := p.userLock(update.User)
	lock.Lock()
	defer lock.Unlock()

	p.cfgMu.RLock()
	thresholds := p.thresholds
	gracePeriod := p.gracePeriod
	p.cfgMu.RUnlock()

	now := p.now()

	// Both dimensions are detected against the same clock reading so one
	// update cannot straddle a grace period boundary.
	results := make([]dimensionResult, len(models.Dimensions))
	var wg sync.WaitGroup
	for i, dim := range models.Dimensions {
		wg.Add(1)
		go func(i int, dim models.Dimension) {
			defer wg.Done()
			results[i] = p.detectDimension(dim, update, thresholds, gracePeriod, now)
		}(i, dim)
	}
	wg.Wait()

	crossings := make(map[models.Dimension]models.Crossing, len(models.Dimensions))
	for i, dim := range models.Dimensions {
		if err := results[i].err; err != nil {
			p.fail(ctx, update.User, string(dim), "history_read", err)
			return nil, err
		}
		crossings[dim] = results[i].crossing
	}

	// Persist before composing. A crossing that cannot be durably recorded
	// must not produce mail, or a restart would notify the user again.
	for i, dim := range models.Dimensions {
		if err := p.persistDimension(dim, update.User, results[i]); err != nil {
			p.fail(ctx, update.User, string(dim), "history_write", err)
			return nil, err
		}
	}

	result := &Result{Crossings: crossings}

	body, ok := mailer.Compose(update, crossings[models.DimensionSize], crossings[models.DimensionCount])
	if !ok {
		p.recordUpdate("no_notification")
		return result, nil
	}

	if err := p.notifier.Notify(update.Root(), body); err != nil {
		p.fail(ctx, update.User, "", "delivery", err)
		return result, err
	}

	result.Notified = true
	p.recordUpdate("notified")
	if p.metrics != nil {
		p.metrics.RecordNotificationSent()
	}

	event := logging.NewAuditEvent(logging.NotificationSent, "notify", logging.StatusSuccess).
		WithUser(update.User).
		WithSeverity(logging.SeverityInfo)
	p.logger.InfoWithContext(ctx, "audit", "event", event.ToJSON())

	return result, nil
}

// detectDimension reads one key's history and classifies the update against
// it. The result carries the updated history for the persistence phase.
func (p *Pipeline) detectDimension(dim models.Dimension, update models.UsageUpdate, thresholds models.ThresholdSet, gracePeriod time.Duration, now time.Time) dimensionResult {
	start := time.Now()
	history, err := p.store.Retrieve(update.User, dim)
	if p.metrics != nil {
		p.metrics.RecordStoreLatency("retrieve", time.Since(start).Seconds())
	}
	if err != nil {
		return dimensionResult{err: err}
	}

	crossing, updated := detector.Detect(dim, update, thresholds, gracePeriod, history, now)
	if p.metrics != nil {
		p.metrics.RecordCrossing(string(dim), string(crossing.Outcome))
	}
	if crossing.Outcome != models.OutcomeNoChange {
		p.logger.Info("threshold change",
			"user", update.User,
			"dimension", string(dim),
			"outcome", string(crossing.Outcome),
			"threshold", crossing.Threshold.String(),
		)
		event := logging.NewAuditEvent(logging.ThresholdCrossing, string(crossing.Outcome), logging.StatusSuccess).
			WithUser(update.User).
			WithDimension(string(dim)).
			WithSeverity(logging.SeverityInfo)
		p.logger.Info("audit", "event", event.ToJSON())
	}
	return dimensionResult{crossing: crossing, updated: updated}
}

// persistDimension writes the appended history entry, if any, for one
// dimension.
func (p *Pipeline) persistDimension(dim models.Dimension, user string, r dimensionResult) error {
	start := time.Now()
	err := p.updater.Apply(user, dim, r.crossing, r.updated)
	if p.metrics != nil && r.crossing.Outcome != models.OutcomeNoChange {
		p.metrics.RecordStoreLatency("append", time.Since(start).Seconds())
	}
	return err
}

// fail records a pipeline stage failure across the logger, metrics, audit
// trail and the operator alert channel.
func (p *Pipeline) fail(ctx context.Context, user, dimension, stage string, err error) {
	p.logger.ErrorWithContext(ctx, "pipeline stage failed",
		"user", user,
		"stage", stage,
		"error", err.Error(),
	)
	p.recordUpdate("failed")
	if p.metrics != nil {
		p.metrics.RecordNotificationFailure(stage)
	}

	event := logging.NewAuditEvent(logging.NotificationError, stage, logging.StatusFailure).
		WithUser(user).
		WithError(err.Error())
	if dimension != "" {
		event = event.WithDimension(dimension)
	}
	p.logger.ErrorWithContext(ctx, "audit", "event", event.ToJSON())

	if p.alerter != nil && p.alerter.Enabled() {
		p.alerter.PipelineFailure(user, stage, err)
	}
}

func (p *Pipeline) recordUpdate(result string) {
	if p.metrics != nil {
		p.metrics.RecordUsageUpdate(result)
	}
}

// userLock returns the mutex serializing updates for one user.
func (p *Pipeline) userLock(user string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	lock, ok := p.locks[user]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[user] = lock
	}
	return lock
}
