// Package report renders recorded detection positions as an interactive
// echarts page or a static gonum plot.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
)

// PositionSource is the part of db.DB the chart handler reads.
type PositionSource interface {
	RecentPositions(ctx context.Context, kind string, limit int) ([]db.Position, error)
}

// groupByID splits positions into per-id series, ordered by id.
func groupByID(pos []db.Position) ([]int, map[int][]db.Position) {
	byID := make(map[int][]db.Position)
	for _, p := range pos {
		byID[p.ID] = append(byID[p.ID], p)
	}
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, byID
}

func seriesName(id int) string {
	if id == 0 {
		return "unlearned"
	}
	return "id " + strconv.Itoa(id)
}

// RenderChart writes an HTML scatter of pos on screen coordinates, one
// series per id.
func RenderChart(w io.Writer, title string, pos []db.Position) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "960px", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d", len(pos))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: huskylens.ScreenWidth, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: huskylens.ScreenHeight, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
	)

	ids, byID := groupByID(pos)
	for _, id := range ids {
		data := make([]opts.ScatterData, 0, len(byID[id]))
		for _, p := range byID[id] {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
		scatter.AddSeries(seriesName(id), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}
	return scatter.Render(w)
}

// ChartHandler serves RenderChart over the newest snapshots.
// Query: kind=blocks|arrows, limit=n snapshots (default 500).
func ChartHandler(src PositionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = db.KindBlocks
		}
		limit := 500
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		pos, err := src.RecentPositions(r.Context(), kind, limit)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, db.ErrUnknownKind) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		var buf bytes.Buffer
		if err := RenderChart(&buf, "HuskyLens "+kind, pos); err != nil {
			http.Error(w, fmt.Sprintf("render chart: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
