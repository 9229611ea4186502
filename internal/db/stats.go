package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// IDStats summarises the recorded positions of one object id. X and Y are
// the block center or the arrow tail.
type IDStats struct {
	ID    int
	Count int
	MeanX float64
	StdX  float64
	MeanY float64
	StdY  float64
}

// DetectionStats groups every detection of the given kind by object id.
// Results are ordered by id. Standard deviation is zero for a single sample.
func (db *DB) DetectionStats(ctx context.Context, kind string) ([]IDStats, error) {
	if kind != KindBlocks && kind != KindArrows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT d.object_id, d.x0, d.y0
		   FROM detections d
		   JOIN snapshots s ON s.snapshot_id = d.snapshot_id
		  WHERE s.kind = ?`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	xs := make(map[int][]float64)
	ys := make(map[int][]float64)
	for rows.Next() {
		var id, x, y int
		if err := rows.Scan(&id, &x, &y); err != nil {
			return nil, err
		}
		xs[id] = append(xs[id], float64(x))
		ys[id] = append(ys[id], float64(y))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]IDStats, 0, len(xs))
	for id, x := range xs {
		s := IDStats{ID: id, Count: len(x)}
		if len(x) > 1 {
			s.MeanX, s.StdX = stat.MeanStdDev(x, nil)
			s.MeanY, s.StdY = stat.MeanStdDev(ys[id], nil)
		} else {
			s.MeanX, s.MeanY = x[0], ys[id][0]
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Position is one recorded detection location.
type Position struct {
	ID      int
	X, Y    float64
	TakenAt time.Time
}

// RecentPositions returns the positions from the newest limit snapshots of
// the given kind, oldest first.
func (db *DB) RecentPositions(ctx context.Context, kind string, limit int) ([]Position, error) {
	if kind != KindBlocks && kind != KindArrows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT d.object_id, d.x0, d.y0, s.taken_at_ns
		   FROM detections d
		   JOIN (SELECT snapshot_id, taken_at_ns FROM snapshots
		          WHERE kind = ? ORDER BY taken_at_ns DESC LIMIT ?) s
		     ON s.snapshot_id = d.snapshot_id
		  ORDER BY s.taken_at_ns, d.idx`, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		var x, y int
		var ns int64
		if err := rows.Scan(&p.ID, &x, &y, &ns); err != nil {
			return nil, err
		}
		p.X, p.Y = float64(x), float64(y)
		p.TakenAt = time.Unix(0, ns).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
