package event

import (
	"context"
	"sync"
	"time"

	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher delivers a single event and reports whether every handler
// accepted it. InMemoryEventBus implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event shared.DomainEvent) error
}

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessorConfigFrom derives processor settings from the event config,
// keeping defaults for unset values
func OutboxProcessorConfigFrom(cfg config.EventConfig) OutboxProcessorConfig {
	out := DefaultOutboxProcessorConfig()
	if cfg.BatchSize > 0 {
		out.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	out.CleanupEnabled = cfg.CleanupEnabled
	if cfg.CleanupRetention > 0 {
		out.CleanupRetention = cfg.CleanupRetention
	}
	return out
}

// BatchResult summarizes one processing pass
type BatchResult struct {
	Sent   int
	Failed int
	Dead   int
}

// OutboxProcessor polls the outbox and dispatches claimed entries
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	dispatcher Dispatcher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	dispatcher Dispatcher,
	serializer *EventSerializer,
	cfg OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		dispatcher: dispatcher,
		serializer: serializer,
		config:     cfg,
		logger:     logger,
	}
}

// Start launches the polling loop and, if enabled, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop cancels the loops and waits for them, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce runs a single pass over pending entries and failed entries
// that are due for retry
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		return result, err
	}
	if err := p.processEntries(ctx, pending, &result); err != nil {
		return result, err
	}

	retryable, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		return result, err
	}
	err = p.processEntries(ctx, retryable, &result)
	return result, err
}

func (p *OutboxProcessor) processEntries(ctx context.Context, entries []*shared.OutboxEntry, result *BatchResult) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		return err
	}

	for _, entry := range claimed {
		p.processEntry(ctx, entry, result)
	}
	return nil
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry *shared.OutboxEntry, result *BatchResult) {
	err := p.deliver(ctx, entry)
	if err == nil {
		entry.MarkSent()
		result.Sent++
		if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
			p.logger.Error("failed to mark outbox entry as sent",
				zap.String("event_id", entry.EventID.String()),
				zap.Error(updateErr),
			)
		}
		return
	}

	entry.MarkFailed(err.Error())
	if entry.IsDead() {
		result.Dead++
		p.logger.Warn("outbox entry dead-lettered",
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.String("last_error", entry.LastError),
		)
	} else {
		result.Failed++
		p.logger.Warn("outbox delivery failed",
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(err),
		)
	}
	if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
		p.logger.Error("failed to update outbox entry", zap.Error(updateErr))
	}
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return p.dispatcher.Dispatch(ctx, event)
}

func (p *OutboxProcessor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up sent outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
