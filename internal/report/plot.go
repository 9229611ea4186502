package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
)

// SavePlot writes a scatter of pos to path. The image format follows the
// file extension (png, svg, pdf, ...).
func SavePlot(path, title string, pos []db.Position) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.X.Min, p.X.Max = 0, huskylens.ScreenWidth
	p.Y.Min, p.Y.Max = 0, huskylens.ScreenHeight
	p.Add(plotter.NewGrid())

	ids, byID := groupByID(pos)
	for i, id := range ids {
		xys := make(plotter.XYs, len(byID[id]))
		for j, pt := range byID[id] {
			xys[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("scatter for %s: %w", seriesName(id), err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = plotutil.Shape(i)
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(seriesName(id), s)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
