package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/stability"
	"github.com/kibbyd/rps-adaptive/internal/vision"
)

// #region fakes

// fakeSource yields frames until limit is reached (limit < 0 means forever).
type fakeSource struct {
	frame  gocv.Mat
	limit  int
	delay  time.Duration
	reads  atomic.Int64
	closed atomic.Bool
}

func newFakeSource(t *testing.T, limit int, delay time.Duration) *fakeSource {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 8, 8, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &fakeSource{frame: m, limit: limit, delay: delay}
}

func (s *fakeSource) Read(dst *gocv.Mat) bool {
	n := s.reads.Add(1)
	if s.limit >= 0 && n > int64(s.limit) {
		return false
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.frame.CopyTo(dst)
	return true
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

// scripted returns moves from script in order; zero entries mean "no hand".
func scripted(script []move.Move) vision.Classifier {
	var i atomic.Int64
	return vision.ClassifierFunc(func(context.Context, gocv.Mat) (move.Move, bool) {
		n := int(i.Add(1)) - 1
		if n >= len(script) || script[n] == 0 {
			return 0, false
		}
		return script[n], true
	})
}

func newTestWorker(src Source, clf vision.Classifier) (*Worker, *Mailbox[stability.Sample], *Mailbox[move.Move]) {
	latest := NewMailbox[stability.Sample]()
	pending := NewMailbox[move.Move]()
	w := NewWorker(src, clf, DefaultWorkerConfig(), latest, pending, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		clock = clock.Add(33 * time.Millisecond)
		return clock
	}
	return w, latest, pending
}

func repeatMove(m move.Move, n int) []move.Move {
	out := make([]move.Move, n)
	for i := range out {
		out[i] = m
	}
	return out
}

// #endregion fakes

// #region worker-tests

func TestWorker_ConfirmsOnceAfterDropout(t *testing.T) {
	script := append(repeatMove(move.Rock, 5), 0)
	script = append(script, repeatMove(move.Rock, 6)...)
	src := newFakeSource(t, len(script), 0)
	w, latest, pending := newTestWorker(src, scripted(script))

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
	assert.True(t, src.closed.Load())

	m, ok := pending.Take()
	require.True(t, ok)
	assert.Equal(t, move.Rock, m)
	_, ok = pending.Take()
	assert.False(t, ok, "confirmation is one-shot")

	s, ok := latest.Peek()
	require.True(t, ok)
	assert.True(t, s.Known)
	assert.Equal(t, move.Rock, s.Move)

	st := w.Stats()
	assert.Equal(t, uint64(12), st.Frames)
	assert.Equal(t, uint64(11), st.Recognized)
	assert.Equal(t, uint64(1), st.Confirmations)
}

func TestWorker_NoConfirmationForFlickeringGesture(t *testing.T) {
	var script []move.Move
	for i := 0; i < 30; i++ {
		script = append(script, move.All[i%3])
	}
	src := newFakeSource(t, len(script), 0)
	w, _, pending := newTestWorker(src, scripted(script))

	require.ErrorIs(t, w.Run(context.Background()), ErrSourceClosed)
	_, ok := pending.Peek()
	assert.False(t, ok)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	src := newFakeSource(t, -1, time.Millisecond)
	w, _, _ := newTestWorker(src, scripted(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.True(t, src.closed.Load())
	assert.Positive(t, w.Stats().Frames)
}

func TestWorker_ClassifierPanicCountsAsUnknown(t *testing.T) {
	src := newFakeSource(t, 3, 0)
	clf := vision.ClassifierFunc(func(context.Context, gocv.Mat) (move.Move, bool) {
		panic("bad frame")
	})
	w, latest, _ := newTestWorker(src, clf)

	err := w.Run(context.Background())
	assert.True(t, errors.Is(err, ErrSourceClosed))
	s, ok := latest.Peek()
	require.True(t, ok)
	assert.False(t, s.Known)
	assert.Equal(t, uint64(0), w.Stats().Recognized)
}

// #endregion worker-tests

// #region mailbox-tests

func TestMailbox_OverwriteAndTake(t *testing.T) {
	b := NewMailbox[move.Move]()
	_, ok := b.Take()
	assert.False(t, ok)

	b.Offer(move.Rock)
	b.Offer(move.Paper)
	assert.Equal(t, uint64(1), b.Drops())

	v, ok := b.Peek()
	assert.True(t, ok)
	assert.Equal(t, move.Paper, v)

	v, ok = b.Take()
	assert.True(t, ok)
	assert.Equal(t, move.Paper, v)
	_, ok = b.Take()
	assert.False(t, ok)
}

func TestMailbox_NotifyCoalesces(t *testing.T) {
	b := NewMailbox[int]()
	b.Offer(1)
	b.Offer(2)
	b.Offer(3)

	select {
	case <-b.Notify():
	default:
		t.Fatal("expected a notification")
	}
	select {
	case <-b.Notify():
		t.Fatal("notifications should coalesce")
	default:
	}
	v, _ := b.Take()
	assert.Equal(t, 3, v)
}

func TestMailbox_Clear(t *testing.T) {
	b := NewMailbox[string]()
	b.Offer("x")
	b.Clear()
	_, ok := b.Peek()
	assert.False(t, ok)
}

func TestMailbox_ConcurrentAccess(t *testing.T) {
	b := NewMailbox[int]()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Offer(i)
		}
	}()
	taken := 0
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if _, ok := b.Take(); ok {
				taken++
			}
		}
	}()
	wg.Wait()
	assert.LessOrEqual(t, taken, 1000)
}

// #endregion mailbox-tests
