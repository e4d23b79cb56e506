package gwas

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dasnellings/aouTools/config"
	"github.com/dasnellings/aouTools/shell"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Job is the input to an association engine.
type Job struct {
	Data      dataframe.DataFrame // merged phenotype and covariates, one row per subject
	Covars    []string
	Region    string
	Filters   Filters
	Genotypes string // plink2 pfile prefix
	Prefix    string // engine inputs and outputs are written as Prefix.*
}

// Engine runs the per-variant association test. All filtering and regression
// happens inside the external program.
type Engine interface {
	Name() string
	Association(job Job) ([]Result, error)
}

// NewEngine returns the engine for method.
func NewEngine(method string, cfg config.Config, sh *shell.Runner) (Engine, error) {
	switch method {
	case "hail":
		return &hailEngine{python: cfg.Python, script: cfg.HailScript, matrixTable: cfg.HailMatrixTable, sh: sh}, nil
	case "plink2":
		return &plinkEngine{plink: cfg.Plink2, sh: sh}, nil
	default:
		return nil, errors.Errorf("GWAS method %s not implemented", method)
	}
}

type hailEngine struct {
	python      string
	script      string
	matrixTable string
	sh          *shell.Runner
}

func (h *hailEngine) Name() string { return "hail" }

func (h *hailEngine) Association(job Job) ([]Result, error) {
	if h.matrixTable == "" {
		return nil, errors.New("no hail matrix table: set WGS_ACAF_THRESHOLD_SPLIT_HAIL_PATH or hail_mt_path")
	}
	input := job.Prefix + ".phenocovar.tsv"
	output := job.Prefix + ".hail.tsv"
	WriteEngineTable(input, IDColumn, job.Data, job.Covars)

	args := []string{h.script,
		"--phenocovar", input,
		"--covars", strings.Join(job.Covars, ","),
		"--mt", h.matrixTable,
		"--sample-call-rate", formatFloat(job.Filters.SampleCallRate),
		"--variant-call-rate", formatFloat(job.Filters.VariantCallRate),
		"--maf", formatFloat(job.Filters.MAF),
		"--hwe", formatFloat(job.Filters.HWE),
		"--gq", strconv.Itoa(job.Filters.GQ),
		"--out", output,
	}
	if job.Region != "" {
		args = append(args, "--region", job.Region)
	}
	if err := h.sh.Run(h.python, args...); err != nil {
		return nil, errors.Wrap(err, "hail association")
	}

	results, skipped, err := readResults(output, resultColumns{
		chrom: "chrom", pos: "pos", beta: "beta", se: "standard_error", p: "p_value",
	})
	if skipped > 0 {
		log.Printf("hail: skipped %d variants without a p-value", skipped)
	}
	return results, err
}

type plinkEngine struct {
	plink string
	sh    *shell.Runner
}

func (p *plinkEngine) Name() string { return "plink2" }

func (p *plinkEngine) Association(job Job) ([]Result, error) {
	if job.Genotypes == "" {
		return nil, errors.New("plink2 requires a pfile prefix for the genotypes")
	}
	input := job.Prefix + ".phenocovar.tsv"
	WriteEngineTable(input, "#IID", job.Data, job.Covars)

	args := []string{
		"--pfile", job.Genotypes,
		"--pheno", input,
		"--pheno-name", PhenotypeColumn,
	}
	if len(job.Covars) > 0 {
		args = append(args, "--covar", input, "--covar-name", strings.Join(job.Covars, ","), "--glm", "hide-covar")
	} else {
		args = append(args, "--glm", "allow-no-covars")
	}
	args = append(args,
		"--maf", formatFloat(job.Filters.MAF),
		"--hwe", formatFloat(job.Filters.HWE),
		"--geno", formatFloat(missingRate(job.Filters.VariantCallRate)),
		"--mind", formatFloat(missingRate(job.Filters.SampleCallRate)),
	)
	if job.Region != "" {
		r, err := ParseRegion(job.Region)
		if err != nil {
			return nil, err
		}
		args = append(args, "--chr", r.Chrom, "--from-bp", strconv.Itoa(r.Start), "--to-bp", strconv.Itoa(r.End))
	}
	args = append(args, "--out", job.Prefix)
	log.Printf("plink2: genotype quality filter (GQ >= %d) does not apply to hard calls and is ignored", job.Filters.GQ)

	if err := p.sh.Run(p.plink, args...); err != nil {
		return nil, errors.Wrap(err, "plink2 association")
	}

	results, skipped, err := readResults(job.Prefix+"."+PhenotypeColumn+".glm.linear", resultColumns{
		chrom: "#CHROM", pos: "POS", beta: "BETA", se: "SE", p: "P",
	})
	if skipped > 0 {
		log.Printf("plink2: skipped %d variants without a p-value", skipped)
	}
	return results, err
}

// missingRate converts a minimum call rate to plink's maximum missing rate.
func missingRate(callRate float64) float64 {
	return math.Round((1-callRate)*1e12) / 1e12
}

// WriteEngineTable writes the id, phenotype and covariate columns of data as a
// tsv. Each column is written once even if it is listed twice in covars.
func WriteEngineTable(file, idHeader string, data dataframe.DataFrame, covars []string) {
	cols := []string{PhenotypeColumn}
	seen := map[string]bool{PhenotypeColumn: true}
	for _, c := range covars {
		if !seen[c] {
			cols = append(cols, c)
			seen[c] = true
		}
	}

	out := fileio.EasyCreate(file)
	fmt.Fprintf(out, "%s\t%s\n", idHeader, strings.Join(cols, "\t"))
	ids := data.Col(IDColumn).Records()
	values := make([][]string, len(cols))
	for i, c := range cols {
		values[i] = columnStrings(data.Col(c))
	}
	s := new(strings.Builder)
	for row := range ids {
		s.Reset()
		s.WriteString(ids[row])
		for i := range cols {
			s.WriteByte('\t')
			s.WriteString(values[i][row])
		}
		fmt.Fprintln(out, s.String())
	}
	err := out.Close()
	exception.PanicOnErr(err)
}

// columnStrings formats numeric columns at full precision with NA for missing values.
func columnStrings(s series.Series) []string {
	switch s.Type() {
	case series.Float, series.Int:
		f := s.Float()
		ans := make([]string, len(f))
		for i := range f {
			if math.IsNaN(f[i]) {
				ans[i] = "NA"
			} else {
				ans[i] = strconv.FormatFloat(f[i], 'g', -1, 64)
			}
		}
		return ans
	default:
		return s.Records()
	}
}
