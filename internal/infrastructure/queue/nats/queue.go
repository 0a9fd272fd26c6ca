package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// Workers share one queue group so each job id is delivered to a single
// worker process.
const workerGroup = "extraction-workers"

// Queue carries extraction job ids between the API and the workers. Only
// the id travels over NATS; the job itself lives in the cache.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	// FailFast disables retrying the initial connection.
	FailFast           bool
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func New(url, subject string, options Options) (*Queue, error) {
	opts := options.withDefaults()
	logger := opts.Logger.With("component", "job_queue", "subject", subject)

	conn, err := nats.Connect(url,
		nats.Name("cad2data-pipeline"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(!opts.FailFast),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("job_queue_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("job_queue_reconnected", "server", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("job_queue_closed")
		}),
	)
	if err != nil {
		return nil, queueError("nats connect", err)
	}
	return &Queue{conn: conn, subject: subject, executor: opts.ResilienceExecutor, logger: logger}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishJob announces a stored job by id.
func (q *Queue) PublishJob(ctx context.Context, jobID string) error {
	err := q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		return q.conn.Publish(q.subject, []byte(jobID))
	}, classifyPublishError)
	return queueError("nats publish", err)
}

// SubscribeJobs hands every announced job id to handler and blocks until ctx
// is done. Pending deliveries are drained before it returns.
func (q *Queue) SubscribeJobs(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		q.dispatch(ctx, msg, handler)
	})
	if err != nil {
		return queueError("nats subscribe", err)
	}
	if err := q.conn.Flush(); err != nil {
		return queueError("nats flush", err)
	}
	q.logger.Info("job_queue_subscribed", "group", workerGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain job subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, msg *nats.Msg, handler func(context.Context, string) error) {
	if ctx.Err() != nil {
		return
	}
	jobID := strings.TrimSpace(string(msg.Data))
	if jobID == "" {
		q.logger.Warn("job_message_empty")
		return
	}
	if err := handler(ctx, jobID); err != nil {
		q.logger.Error("job_handler_failed", "job_id", jobID, "error", err)
	}
}
