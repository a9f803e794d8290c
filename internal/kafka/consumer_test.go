package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConsumer(workers int, commit func(context.Context, ...kafka.Message) error) *Consumer {
	return &Consumer{commit: commit, workers: workers, log: zap.NewNop()}
}

func waitStopped(t *testing.T, stop func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestWorkersStopWithUnreadErrors(t *testing.T) {
	c := testConsumer(2, func(context.Context, ...kafka.Message) error { return nil })
	jobs := make(chan kafka.Message, 64)
	errs := make(chan error, 2)

	var handled atomic.Int32
	stop := c.startWorkers(context.Background(), jobs, errs, func(context.Context, kafka.Message) error {
		handled.Add(1)
		return errors.New("redis: connection refused")
	})
	for i := 0; i < 64; i++ {
		jobs <- kafka.Message{Offset: int64(i)}
	}

	waitStopped(t, stop)
	assert.Equal(t, int32(64), handled.Load())
	assert.Len(t, errs, 2)
}

func TestWorkersCommitOnlyHandled(t *testing.T) {
	var committed atomic.Int32
	c := testConsumer(3, func(_ context.Context, msgs ...kafka.Message) error {
		committed.Add(int32(len(msgs)))
		return nil
	})
	jobs := make(chan kafka.Message, 10)
	errs := make(chan error, 3)

	stop := c.startWorkers(context.Background(), jobs, errs, func(_ context.Context, m kafka.Message) error {
		if m.Offset%2 == 1 {
			return errors.New("retry later")
		}
		return nil
	})
	for i := 0; i < 10; i++ {
		jobs <- kafka.Message{Offset: int64(i)}
	}

	waitStopped(t, stop)
	assert.Equal(t, int32(5), committed.Load())
}

func TestWorkersSkipBacklogAfterCancel(t *testing.T) {
	c := testConsumer(1, func(context.Context, ...kafka.Message) error { return errors.New("context canceled") })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := make(chan kafka.Message, 100)
	errs := make(chan error, 1)

	var handled atomic.Int32
	stop := c.startWorkers(ctx, jobs, errs, func(context.Context, kafka.Message) error {
		handled.Add(1)
		return nil
	})
	for i := 0; i < 100; i++ {
		jobs <- kafka.Message{Offset: int64(i)}
	}

	waitStopped(t, stop)
	assert.Zero(t, handled.Load())
	assert.Empty(t, errs)
}
