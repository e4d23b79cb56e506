package gwas

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// GenomeWideSignificance is the conventional p-value threshold drawn on Manhattan plots.
const GenomeWideSignificance = 5e-8

var chromColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 8, G: 48, B: 107, A: 255},
}

// chromRank orders chr1..chr22, X, Y, M and then everything else by name.
func chromRank(chrom string) (int, string) {
	c := strings.TrimPrefix(chrom, "chr")
	if n, err := strconv.Atoi(c); err == nil {
		return n, ""
	}
	switch c {
	case "X":
		return 1000, ""
	case "Y":
		return 1001, ""
	case "M", "MT":
		return 1002, ""
	}
	return 2000, c
}

// chromOrder returns the distinct chromosomes of results in natural order.
func chromOrder(results []Result) []string {
	seen := make(map[string]bool)
	var ans []string
	for i := range results {
		if !seen[results[i].Chrom] {
			seen[results[i].Chrom] = true
			ans = append(ans, results[i].Chrom)
		}
	}
	sort.SliceStable(ans, func(i, j int) bool {
		ri, si := chromRank(ans[i])
		rj, sj := chromRank(ans[j])
		if ri != rj {
			return ri < rj
		}
		return si < sj
	})
	return ans
}

// genomeLayout places each chromosome end to end using the largest tested position.
type genomeLayout struct {
	chroms []string
	offset map[string]float64
	length map[string]float64
	total  float64
}

func newGenomeLayout(results []Result) genomeLayout {
	l := genomeLayout{
		chroms: chromOrder(results),
		offset: make(map[string]float64),
		length: make(map[string]float64),
	}
	for i := range results {
		if p := float64(results[i].Pos); p > l.length[results[i].Chrom] {
			l.length[results[i].Chrom] = p
		}
	}
	for _, c := range l.chroms {
		l.offset[c] = l.total
		l.total += l.length[c]
	}
	return l
}

func (l genomeLayout) x(r Result) float64 {
	return l.offset[r.Chrom] + float64(r.Pos)
}

// chromTicks labels the middle of each chromosome.
type chromTicks genomeLayout

func (c chromTicks) Ticks(min, max float64) []plot.Tick {
	var ans []plot.Tick
	for _, chrom := range c.chroms {
		mid := c.offset[chrom] + c.length[chrom]/2
		if mid >= min && mid <= max {
			ans = append(ans, plot.Tick{Value: mid, Label: strings.TrimPrefix(chrom, "chr")})
		}
	}
	return ans
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PlotManhattan saves a Manhattan plot of results. The image format follows the
// extension of file. Variants with p == 0 cannot be placed and are left out.
func PlotManhattan(results []Result, file string) error {
	if len(results) == 0 {
		return errors.New("no results to plot")
	}
	layout := newGenomeLayout(results)
	byChrom := make(map[string]plotter.XYs)
	maxY := -math.Log10(GenomeWideSignificance)
	for i := range results {
		y := results[i].NegLog10P()
		if !isFinite(y) {
			continue
		}
		byChrom[results[i].Chrom] = append(byChrom[results[i].Chrom], plotter.XY{X: layout.x(results[i]), Y: y})
		maxY = math.Max(maxY, y)
	}

	p := plot.New()
	p.X.Label.Text = "Chromosome"
	p.Y.Label.Text = "-log10(p)"
	p.X.Tick.Marker = chromTicks(layout)
	p.X.Min = 0
	p.X.Max = layout.total
	p.Y.Min = 0
	p.Y.Max = maxY * 1.05

	for i, chrom := range layout.chroms {
		if len(byChrom[chrom]) == 0 {
			continue
		}
		s, err := plotter.NewScatter(byChrom[chrom])
		if err != nil {
			return errors.Wrapf(err, "plotting %s", chrom)
		}
		s.GlyphStyle.Color = chromColors[i%len(chromColors)]
		s.GlyphStyle.Radius = vg.Points(1.2)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	sig, err := plotter.NewLine(plotter.XYs{
		{X: 0, Y: -math.Log10(GenomeWideSignificance)},
		{X: layout.total, Y: -math.Log10(GenomeWideSignificance)},
	})
	if err != nil {
		return errors.Wrap(err, "plotting significance line")
	}
	sig.LineStyle = draw.LineStyle{
		Color:  color.RGBA{R: 200, A: 255},
		Width:  vg.Points(0.8),
		Dashes: []vg.Length{vg.Millimeter * 1.4},
	}
	p.Add(sig)

	return errors.Wrapf(p.Save(30*vg.Centimeter, 12*vg.Centimeter, file), "saving %s", file)
}

// InflationFactor is the genomic control lambda: the median association
// chi-square statistic over its expected value under the null.
func InflationFactor(results []Result) float64 {
	chi := distuv.ChiSquared{K: 1}
	stats := make([]float64, 0, len(results))
	for i := range results {
		if results[i].P < 0 || results[i].P > 1 {
			continue
		}
		if s := chi.Quantile(1 - results[i].P); isFinite(s) {
			stats = append(stats, s)
		}
	}
	if len(stats) == 0 {
		return math.NaN()
	}
	sort.Float64s(stats)
	return stat.Quantile(0.5, stat.Empirical, stats, nil) / chi.Quantile(0.5)
}

// qqPoints pairs observed -log10(p), largest first, with the expected values
// -log10((i+0.5)/n) under a uniform null.
func qqPoints(results []Result) plotter.XYs {
	observed := make([]float64, 0, len(results))
	for i := range results {
		if y := results[i].NegLog10P(); isFinite(y) {
			observed = append(observed, y)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(observed)))
	n := float64(len(observed))
	pts := make(plotter.XYs, len(observed))
	for i := range observed {
		pts[i].X = -math.Log10((float64(i) + 0.5) / n)
		pts[i].Y = observed[i]
	}
	return pts
}

// PlotQQ saves a quantile-quantile plot of the observed p-values against a uniform null.
func PlotQQ(results []Result, file string) error {
	pts := qqPoints(results)
	if len(pts) == 0 {
		return errors.New("no results to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("lambda GC = %.3f", InflationFactor(results))
	p.X.Label.Text = "Expected -log10(p)"
	p.Y.Label.Text = "Observed -log10(p)"

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "plotting qq")
	}
	s.GlyphStyle.Color = chromColors[0]
	s.GlyphStyle.Radius = vg.Points(1.2)
	s.GlyphStyle.Shape = draw.CircleGlyph{}

	top := math.Max(pts[0].X, pts[0].Y)
	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: top, Y: top}})
	if err != nil {
		return errors.Wrap(err, "plotting qq diagonal")
	}
	diag.LineStyle = draw.LineStyle{Color: color.Black, Width: vg.Points(0.5)}
	p.Add(diag, s)

	return errors.Wrapf(p.Save(15*vg.Centimeter, 15*vg.Centimeter, file), "saving %s", file)
}
