package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	commit  func(ctx context.Context, msgs ...kafka.Message) error
	workers int
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, commit: r.CommitMessages, workers: workers, log: log.With(zap.String("topic", topic), zap.String("group", group))}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	errs := make(chan error, c.workers)

	stop := c.startWorkers(ctx, jobs, errs, h)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}

		select {
		case e := <-errs:
			c.log.Warn("worker error", zap.Error(e))
			time.Sleep(200 * time.Millisecond)
		default:
		}
	}
}

// startWorkers runs the pool over jobs. stop closes jobs and waits for the
// workers; it never blocks on unread errors.
func (c *Consumer) startWorkers(ctx context.Context, jobs chan kafka.Message, errs chan<- error, h Handler) (stop func()) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					// Left uncommitted; the group redelivers it.
					continue
				}
				if err := h(ctx, m); err != nil {
					c.report(errs, err)
					continue
				}
				if err := c.commit(ctx, m); err != nil {
					c.report(errs, err)
				}
			}
		}()
	}
	return func() {
		close(jobs)
		wg.Wait()
	}
}

func (c *Consumer) report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
		c.log.Warn("worker error", zap.Error(err))
	}
}
