package gwas

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
)

// AsciiManhattan renders a terminal preview of results: the genome is cut into
// width bins and each bin shows its strongest -log10(p).
func AsciiManhattan(results []Result, width int) string {
	if len(results) == 0 || width < 1 {
		return ""
	}
	layout := newGenomeLayout(results)
	bins := make([]float64, width)
	var best float64
	var bestIdx int
	for i := range results {
		y := results[i].NegLog10P()
		if !isFinite(y) {
			continue
		}
		b := 0
		if layout.total > 0 {
			b = int(layout.x(results[i]) / layout.total * float64(width-1))
		}
		bins[b] = math.Max(bins[b], y)
		if y > best {
			best, bestIdx = y, i
		}
	}
	top := results[bestIdx]
	return asciigraph.Plot(bins,
		asciigraph.Height(10),
		asciigraph.Precision(1),
		asciigraph.Caption(fmt.Sprintf("max -log10(p) per bin, top hit %s:%d (%.2f)", top.Chrom, top.Pos, best)))
}
