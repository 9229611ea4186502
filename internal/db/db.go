// Package db stores recorded device snapshots in sqlite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/huskylens/internal/huskylens"
)

// Snapshot kinds.
const (
	KindBlocks = "blocks"
	KindArrows = "arrows"
)

// ErrUnknownKind is returned for a kind other than blocks or arrows.
var ErrUnknownKind = errors.New("unknown snapshot kind")

type DB struct {
	*sql.DB
	log *zap.Logger
}

// Snapshot is one record-list response as stored.
type Snapshot struct {
	ID          string
	TakenAt     time.Time
	Algorithm   string
	Kind        string
	LearnedOnly bool
	Detections  []Detection
}

// Detection is one stored record. Blocks keep their center in X0/Y0 and
// their size in X1/Y1; arrows keep the tail in X0/Y0 and the head in X1/Y1.
type Detection struct {
	Index  int
	X0, Y0 int
	X1, Y1 int
	ID     int
}

// Block converts a detection recorded from a blocks snapshot.
func (d Detection) Block() huskylens.Block {
	return huskylens.Block{X: d.X0, Y: d.Y0, Width: d.X1, Height: d.Y1, ID: d.ID}
}

// Arrow converts a detection recorded from an arrows snapshot.
func (d Detection) Arrow() huskylens.Arrow {
	return huskylens.Arrow{XTail: d.X0, YTail: d.Y0, XHead: d.X1, YHead: d.Y1, ID: d.ID}
}

// NewDB opens the database at path and applies pending migrations. A nil
// logger discards migration output.
func NewDB(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, log: logger.Named("db")}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RecordBlocks stores blocks as a new snapshot.
func (db *DB) RecordBlocks(ctx context.Context, takenAt time.Time, algorithm string, learnedOnly bool, blocks []huskylens.Block) (Snapshot, error) {
	dets := make([]Detection, len(blocks))
	for i, b := range blocks {
		dets[i] = Detection{Index: i, X0: b.X, Y0: b.Y, X1: b.Width, Y1: b.Height, ID: b.ID}
	}
	return db.record(ctx, Snapshot{TakenAt: takenAt, Algorithm: algorithm, Kind: KindBlocks, LearnedOnly: learnedOnly, Detections: dets})
}

// RecordArrows stores arrows as a new snapshot.
func (db *DB) RecordArrows(ctx context.Context, takenAt time.Time, algorithm string, learnedOnly bool, arrows []huskylens.Arrow) (Snapshot, error) {
	dets := make([]Detection, len(arrows))
	for i, a := range arrows {
		dets[i] = Detection{Index: i, X0: a.XTail, Y0: a.YTail, X1: a.XHead, Y1: a.YHead, ID: a.ID}
	}
	return db.record(ctx, Snapshot{TakenAt: takenAt, Algorithm: algorithm, Kind: KindArrows, LearnedOnly: learnedOnly, Detections: dets})
}

func (db *DB) record(ctx context.Context, s Snapshot) (Snapshot, error) {
	s.ID = uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, taken_at_ns, algorithm, kind, learned_only) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.TakenAt.UnixNano(), s.Algorithm, s.Kind, s.LearnedOnly,
	); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if len(s.Detections) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO detections (snapshot_id, idx, x0, y0, x1, y1, object_id) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return Snapshot{}, err
		}
		defer stmt.Close()
		for _, d := range s.Detections {
			if _, err := stmt.ExecContext(ctx, s.ID, d.Index, d.X0, d.Y0, d.X1, d.Y1, d.ID); err != nil {
				return Snapshot{}, fmt.Errorf("insert detection %d: %w", d.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// RecentSnapshots returns up to limit snapshots, newest first, with their
// detections in device order.
func (db *DB) RecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT snapshot_id, taken_at_ns, algorithm, kind, learned_only
		   FROM snapshots
		  ORDER BY taken_at_ns DESC, rowid DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	index := make(map[string]int)
	for rows.Next() {
		var s Snapshot
		var takenAt int64
		if err := rows.Scan(&s.ID, &takenAt, &s.Algorithm, &s.Kind, &s.LearnedOnly); err != nil {
			return nil, err
		}
		s.TakenAt = time.Unix(0, takenAt).UTC()
		index[s.ID] = len(snaps)
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range snaps {
		dets, err := db.detections(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].Detections = dets
	}
	return snaps, nil
}

func (db *DB) detections(ctx context.Context, snapshotID string) ([]Detection, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT idx, x0, y0, x1, y1, object_id FROM detections WHERE snapshot_id = ? ORDER BY idx`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dets []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(&d.Index, &d.X0, &d.Y0, &d.X1, &d.Y1, &d.ID); err != nil {
			return nil, err
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}
