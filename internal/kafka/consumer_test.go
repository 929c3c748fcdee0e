package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubReader serves a fixed batch of messages, then blocks until the context
// is canceled.
type stubReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	commits int
	closed  bool
}

func (s *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits += len(msgs)
	return nil
}

func (s *stubReader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubReader) committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func TestStartWaitsForInflightHandlers(t *testing.T) {
	msgs := []kafka.Message{
		{Value: []byte("a")},
		{Value: []byte("b")},
	}
	r := &stubReader{msgs: msgs}
	c := &Consumer{r: r, workers: 2, log: zap.NewNop()}

	started := make(chan struct{}, len(msgs))
	release := make(chan struct{})
	var handled int32
	h := func(_ context.Context, _ kafka.Message) error {
		started <- struct{}{}
		<-release
		atomic.AddInt32(&handled, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, c.Start(ctx, h))
		close(done)
	}()

	// wait until both workers hold a message, then ask for shutdown
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("workers never picked up messages")
		}
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Start returned while handlers were still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after handlers finished")
	}

	require.Equal(t, int32(2), atomic.LoadInt32(&handled), "in-flight messages finish before Start returns")
	assert.Equal(t, 2, r.committed())
	assert.True(t, r.closed)
}

func TestStartCommitsOnlyOnSuccess(t *testing.T) {
	r := &stubReader{msgs: []kafka.Message{
		{Value: []byte("ok")},
		{Value: []byte("boom")},
	}}
	c := &Consumer{r: r, workers: 1, log: zap.NewNop()}

	processed := make(chan struct{}, 2)
	h := func(_ context.Context, m kafka.Message) error {
		defer func() { processed <- struct{}{} }()
		if string(m.Value) == "boom" {
			return context.DeadlineExceeded
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, c.Start(ctx, h))
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-processed:
		case <-time.After(2 * time.Second):
			t.Fatal("handler never ran")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	assert.Equal(t, 1, r.committed(), "failed message must stay uncommitted")
}
