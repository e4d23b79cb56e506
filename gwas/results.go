package gwas

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Result is the association test of a single variant.
type Result struct {
	Chrom  string
	Pos    int
	Beta   float64
	StdErr float64
	P      float64
}

// NegLog10P is -log10 of the p-value.
func (r Result) NegLog10P() float64 {
	return -math.Log10(r.P)
}

// resultColumns names the columns of an engine's output table.
type resultColumns struct {
	chrom, pos, beta, se, p string
}

// readResults reads an engine's tab-separated output. Rows whose p-value is not
// a number (e.g. NA for a failed fit) are skipped and counted.
func readResults(file string, cols resultColumns) (ans []Result, skipped int, err error) {
	if _, err = os.Stat(file); err != nil {
		return nil, 0, errors.Wrap(err, "reading association results")
	}
	in := fileio.EasyOpen(file)
	defer func() {
		closeErr := in.Close()
		exception.PanicOnErr(closeErr)
	}()

	header, done := fileio.EasyNextLine(in)
	if done {
		return nil, 0, errors.Errorf("%s is empty", file)
	}
	idx := make(map[string]int)
	for i, name := range strings.Split(header, "\t") {
		idx[name] = i
	}
	var want [5]int
	for i, name := range []string{cols.chrom, cols.pos, cols.beta, cols.se, cols.p} {
		j, ok := idx[name]
		if !ok {
			return nil, 0, errors.Errorf("%s: missing column %s", file, name)
		}
		want[i] = j
	}

	var line string
	var words []string
	var r Result
	lineNum := 1
	for line, done = fileio.EasyNextLine(in); !done; line, done = fileio.EasyNextLine(in) {
		lineNum++
		if line == "" {
			continue
		}
		words = strings.Split(line, "\t")
		if len(words) != len(idx) {
			return nil, 0, errors.Errorf("%s line %d: expected %d fields, found %d", file, lineNum, len(idx), len(words))
		}
		r.P, err = strconv.ParseFloat(words[want[4]], 64)
		if err != nil || math.IsNaN(r.P) {
			skipped++
			continue
		}
		r.Chrom = words[want[0]]
		if r.Pos, err = strconv.Atoi(words[want[1]]); err != nil {
			return nil, 0, errors.Wrapf(err, "%s line %d: bad position", file, lineNum)
		}
		r.Beta = parseFloatOrNaN(words[want[2]])
		r.StdErr = parseFloatOrNaN(words[want[3]])
		ans = append(ans, r)
	}
	return ans, skipped, nil
}

func parseFloatOrNaN(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteResults writes the results table. The first two lines record the
// command that produced it and the covariates used.
func WriteResults(file, cmdline string, covars []string, results []Result) {
	out := fileio.EasyCreate(file)
	fmt.Fprintf(out, "#%s\n", cmdline)
	fmt.Fprintf(out, "# covars: %s\n", strings.Join(covars, ","))
	fmt.Fprintln(out, "chrom\tpos\tbeta\tstandard_error\t-log10pvalue")
	for _, r := range results {
		fmt.Fprintf(out, "%s\t%d\t%s\t%s\t%s\n", r.Chrom, r.Pos,
			formatFloat(r.Beta), formatFloat(r.StdErr), formatFloat(r.NegLog10P()))
	}
	err := out.Close()
	exception.PanicOnErr(err)
}
