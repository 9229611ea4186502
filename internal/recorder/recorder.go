// Package recorder polls the device on a fixed interval and stores each
// record list it reports.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/monitoring"
	"github.com/banshee-data/huskylens/internal/timeutil"
)

// Source is the part of huskylens.Client the recorder drives.
type Source interface {
	SetAlgorithm(huskylens.Algorithm) (bool, error)
	Blocks() ([]huskylens.Block, error)
	BlocksLearned() ([]huskylens.Block, error)
	Arrows() ([]huskylens.Arrow, error)
	ArrowsLearned() ([]huskylens.Arrow, error)
}

// Store persists snapshots.
type Store interface {
	RecordBlocks(ctx context.Context, takenAt time.Time, algorithm string, learnedOnly bool, blocks []huskylens.Block) (db.Snapshot, error)
	RecordArrows(ctx context.Context, takenAt time.Time, algorithm string, learnedOnly bool, arrows []huskylens.Arrow) (db.Snapshot, error)
}

// ErrAlgorithmRejected is returned by Run when the device does not
// acknowledge the algorithm switch.
var ErrAlgorithmRejected = errors.New("device rejected algorithm")

// Recorder is single-owner: Run must not be called concurrently with other
// use of Source.
type Recorder struct {
	Source   Source
	Store    Store
	Clock    timeutil.Clock
	Interval time.Duration
	Kind     string // db.KindBlocks or db.KindArrows
	Learned  bool

	// Algorithm is switched to before polling starts when SetAlgorithm is true.
	Algorithm    huskylens.Algorithm
	SetAlgorithm bool

	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	// OnPoll, if set, is called after every poll with the stored snapshot or
	// the error that prevented it.
	OnPoll func(db.Snapshot, error)
}

// Run polls until ctx is cancelled. A failed poll is logged and counted and
// the loop carries on. Run returns nil on cancellation.
func (r *Recorder) Run(ctx context.Context) error {
	if r.Kind != db.KindBlocks && r.Kind != db.KindArrows {
		return fmt.Errorf("%w: %q", db.ErrUnknownKind, r.Kind)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("recorder interval must be positive, got %s", r.Interval)
	}
	log := r.logger()

	if r.SetAlgorithm {
		ok, err := r.Source.SetAlgorithm(r.Algorithm)
		if err != nil {
			return fmt.Errorf("set algorithm %s: %w", r.Algorithm, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrAlgorithmRejected, r.Algorithm)
		}
		log.Info("algorithm set", zap.Stringer("algorithm", r.Algorithm))
	}

	ticker := r.Clock.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Info("recording",
		zap.String("kind", r.Kind),
		zap.Bool("learned", r.Learned),
		zap.Duration("interval", r.Interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("recorder stopped")
			return nil
		case <-ticker.C():
			snap, err := r.poll(ctx)
			if err != nil {
				log.Warn("poll failed", zap.String("kind", r.Kind), zap.Error(err))
			} else {
				log.Debug("snapshot stored", zap.String("id", snap.ID), zap.Int("records", len(snap.Detections)))
			}
			if r.Metrics != nil {
				r.Metrics.ObserveSnapshot(r.Kind, len(snap.Detections), err)
			}
			if r.OnPoll != nil {
				r.OnPoll(snap, err)
			}
		}
	}
}

func (r *Recorder) poll(ctx context.Context) (db.Snapshot, error) {
	// Timestamp with the clock, not the store, so snapshots line up with ticks.
	now := r.Clock.Now()
	alg := ""
	if r.SetAlgorithm {
		alg = r.Algorithm.String()
	}

	if r.Kind == db.KindArrows {
		fetch := r.Source.Arrows
		if r.Learned {
			fetch = r.Source.ArrowsLearned
		}
		arrows, err := fetch()
		if err != nil {
			return db.Snapshot{}, fmt.Errorf("fetch arrows: %w", err)
		}
		return r.Store.RecordArrows(ctx, now, alg, r.Learned, arrows)
	}

	fetch := r.Source.Blocks
	if r.Learned {
		fetch = r.Source.BlocksLearned
	}
	blocks, err := fetch()
	if err != nil {
		return db.Snapshot{}, fmt.Errorf("fetch blocks: %w", err)
	}
	return r.Store.RecordBlocks(ctx, now, alg, r.Learned, blocks)
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger.Named("recorder")
}
