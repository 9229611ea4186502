package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/monitoring"
	"github.com/banshee-data/huskylens/internal/serialport"
	"github.com/banshee-data/huskylens/internal/timeutil"
)

var epoch = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type pollResult struct {
	snap db.Snapshot
	err  error
}

type harness struct {
	rec    *Recorder
	port   *serialport.TestablePort
	clock  *timeutil.MockClock
	store  *db.DB
	polls  chan pollResult
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, configure func(*Recorder)) *harness {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "rec.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		port:  serialport.NewTestablePort(),
		clock: timeutil.NewMockClock(epoch),
		store: store,
		polls: make(chan pollResult, 8),
		done:  make(chan error, 1),
	}
	h.rec = &Recorder{
		Source:   huskylens.NewClient(h.port),
		Store:    store,
		Clock:    h.clock,
		Interval: time.Second,
		Kind:     db.KindBlocks,
		Logger:   zaptest.NewLogger(t),
		Metrics:  monitoring.NewMetrics(),
		OnPoll:   func(s db.Snapshot, err error) { h.polls <- pollResult{s, err} },
	}
	if configure != nil {
		configure(h.rec)
	}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.rec.Run(ctx) }()

	select {
	case <-h.clock.TickerCreated():
	case err := <-h.done:
		t.Fatalf("Run returned before polling: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("recorder never created its ticker")
	}
}

func (h *harness) tick(t *testing.T) pollResult {
	t.Helper()
	h.clock.Advance(h.rec.Interval)
	select {
	case r := <-h.polls:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no poll after tick")
		return pollResult{}
	}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func blockResponse(blocks ...huskylens.Block) []byte {
	n := byte(len(blocks))
	out := huskylens.Encode(huskylens.CommandReturnInfo, []byte{n, 0, n, 0, 1, 0})
	for _, b := range blocks {
		out = append(out, huskylens.Encode(0x2A, []byte{
			byte(b.X), 0, byte(b.Y), 0, byte(b.Width), 0, byte(b.Height), 0, byte(b.ID), 0,
		})...)
	}
	return out
}

func TestRecorder_PollsAndStores(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.port.QueueResponse(blockResponse(
		huskylens.Block{X: 100, Y: 120, Width: 30, Height: 40, ID: 1},
		huskylens.Block{X: 10, Y: 20, Width: 5, Height: 5},
	))
	r := h.tick(t)
	require.NoError(t, r.err)
	assert.Len(t, r.snap.Detections, 2)
	assert.True(t, r.snap.TakenAt.Equal(epoch.Add(time.Second)))

	// No response queued: the poll fails, the loop continues.
	r = h.tick(t)
	var lengthErr *huskylens.ResponseLengthError
	assert.True(t, errors.As(r.err, &lengthErr), "got %v", r.err)

	h.port.QueueResponse(blockResponse())
	r = h.tick(t)
	require.NoError(t, r.err)
	assert.Empty(t, r.snap.Detections)

	h.stop(t)

	snaps, err := h.store.RecentSnapshots(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	m := h.rec.Metrics
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Snapshots.WithLabelValues(db.KindBlocks, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Snapshots.WithLabelValues(db.KindBlocks, "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Detections.WithLabelValues(db.KindBlocks)))
	assert.False(t, h.port.Closed)
}

func TestRecorder_LearnedArrowsWithAlgorithm(t *testing.T) {
	h := newHarness(t, func(r *Recorder) {
		r.Kind = db.KindArrows
		r.Learned = true
		r.Algorithm = huskylens.LineTracking
		r.SetAlgorithm = true
	})
	h.port.QueueResponse(huskylens.Encode(huskylens.CommandReturnOK, nil))
	h.start(t)

	n := byte(1)
	h.port.QueueResponse(
		huskylens.Encode(huskylens.CommandReturnInfo, []byte{n, 0, n, 0, 1, 0}),
		huskylens.Encode(0x2B, []byte{1, 0, 2, 0, 3, 0, 4, 0, 9, 0}),
	)
	r := h.tick(t)
	require.NoError(t, r.err)
	h.stop(t)

	writes := h.port.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, huskylens.Encode(huskylens.CommandRequestAlgorithm, []byte{byte(huskylens.LineTracking), 0}), writes[0])
	assert.Equal(t, huskylens.Encode(huskylens.CommandRequestArrowsLearned, nil), writes[1])

	assert.Equal(t, db.KindArrows, r.snap.Kind)
	assert.Equal(t, "line-tracking", r.snap.Algorithm)
	assert.Equal(t, huskylens.Arrow{XTail: 1, YTail: 2, XHead: 3, YHead: 4, ID: 9}, r.snap.Detections[0].Arrow())
}

func TestRecorder_AlgorithmRejected(t *testing.T) {
	h := newHarness(t, func(r *Recorder) {
		r.Algorithm = huskylens.FaceRecognition
		r.SetAlgorithm = true
	})
	h.port.QueueResponse(huskylens.Encode(huskylens.CommandReturnInfo, []byte{0}))

	err := h.rec.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlgorithmRejected)
}

func TestRecorder_InvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		interval time.Duration
	}{
		{"unknown kind", "faces", time.Second},
		{"zero interval", db.KindBlocks, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(r *Recorder) {
				r.Kind = tt.kind
				r.Interval = tt.interval
			})
			assert.Error(t, h.rec.Run(context.Background()))
			assert.Zero(t, h.port.WriteCalls)
		})
	}
}
