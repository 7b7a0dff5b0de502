package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/segmentio/kafka-go"
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher relays committed outbox rows to Kafka, one topic per event type.
type Publisher struct {
	pool      TxBeginner
	repo      *Repository
	logger    *slog.Logger
	metrics   *metrics.BookingMetrics
	brokers   []string
	pollEvery time.Duration
	batchSize int
	newWriter func(brokers []string) MessageWriter
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool TxBeginner, repo *Repository, logger *slog.Logger, m *metrics.BookingMetrics, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		metrics:   m,
		brokers:   brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		newWriter: func(brokers []string) MessageWriter {
			return &kafka.Writer{
				Addr:                   kafka.TCP(brokers...),
				Balancer:               &kafka.Hash{},
				RequiredAcks:           kafka.RequireAll,
				AllowAutoTopicCreation: true,
			}
		},
	}
}

func (p *Publisher) Enabled() bool { return len(p.brokers) > 0 }

// Run polls until ctx is done. It returns at once when no brokers are configured.
func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := p.newWriter(p.brokers)
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.publishBatch(ctx, writer)
			if err != nil {
				p.metrics.OutboxFailed()
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			p.metrics.OutboxPublished(n)
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, kafkax.Envelope{
			EventID:       r.EventID,
			EventType:     r.EventType,
			AggregateType: r.AggregateType,
			AggregateID:   r.AggregateID,
			Payload:       r.Payload,
		}.Message(r.Trace.Restore(ctx)))
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	return len(records), tx.Commit(ctx)
}
