package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestShutdown_RunsInReverseOrder(t *testing.T) {
	m := New(time.Second, zap.NewNop())

	var order []string
	m.Add("db", func(ctx context.Context) error { order = append(order, "db"); return nil })
	m.Add("workers", func(ctx context.Context) error { order = append(order, "workers"); return errors.New("stuck") })
	m.Add("http", func(ctx context.Context) error { order = append(order, "http"); return nil })

	failed := m.Shutdown()
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"http", "workers", "db"}, order)
}

func TestWait_ReturnsOnContextDone(t *testing.T) {
	m := New(time.Second, zap.NewNop())
	called := false
	m.Add("step", func(ctx context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Wait(ctx)
	assert.True(t, called)
}

func TestWaitGroup_Timeout(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, WaitGroup(&wg)(ctx), context.DeadlineExceeded)
}

type stubGRPC struct {
	block   chan struct{}
	stopped bool
}

func (s *stubGRPC) GracefulStop() { <-s.block }
func (s *stubGRPC) Stop()         { s.stopped = true; close(s.block) }

func TestShutdownGRPCServer_ForcesStop(t *testing.T) {
	srv := &stubGRPC{block: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, ShutdownGRPCServer(srv)(ctx))
	assert.True(t, srv.stopped)
}
