package gwas

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dasnellings/aouTools/cloud"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// MaxPCs is the number of ancestry principal components available as covariates.
const MaxPCs = 10

// Methods are the supported association engines.
var Methods = []string{"hail", "plink2"}

// NormMethods are the supported phenotype normalizations.
var NormMethods = []string{"quantile", "zscore"}

// SexColumn is the 0/1 indicator used to stratify normalization.
const SexColumn = "sex_at_birth_Male"

var regionRegexp = regexp.MustCompile(`^\w+:\d+-\d+$`)

// Filters are the quality thresholds passed through to the association engine.
type Filters struct {
	SampleCallRate  float64
	VariantCallRate float64
	MAF             float64
	HWE             float64
	GQ              int
}

// DefaultFilters are the thresholds used when none are given.
var DefaultFilters = Filters{
	SampleCallRate:  0.90,
	VariantCallRate: 0.90,
	MAF:             0.01,
	HWE:             1e-15,
	GQ:              20,
}

// Options configures a single GWAS run.
type Options struct {
	Phenotype    string // phenotype csv path, or a phenotype name in the workspace bucket
	Method       string
	Samples      string // csv of person_id (and optionally sex) to keep
	Region       string // chr:start-end, empty for genome-wide
	NumPCs       int
	PtCovars     []string
	SharedCovars []string
	Norm         string
	NormBySex    bool
	Filters      Filters
	Genotypes    string // plink2 pfile prefix

	Plot      bool
	AsciiPlot bool

	WorkDir     string // downloads and outputs are written here
	CommandLine string // recorded in the results header
}

// Validate checks the options before any data is read.
func (o Options) Validate() error {
	if !slices.Contains(Methods, o.Method) {
		return errors.Errorf("method must be one of: %s", strings.Join(Methods, ","))
	}
	if !CheckRegion(o.Region) {
		return errors.Errorf("invalid region %s", o.Region)
	}
	if o.NumPCs > MaxPCs {
		return errors.Errorf("specify a maximum of %d PCs", MaxPCs)
	}
	if o.NumPCs < 0 {
		return errors.Errorf("number of PCs must not be negative, got %d", o.NumPCs)
	}
	if o.Norm != "" && !slices.Contains(NormMethods, o.Norm) {
		return errors.Errorf("norm must be one of: %s", strings.Join(NormMethods, ","))
	}
	if o.NormBySex && o.Norm == "" {
		return errors.New("normalizing by sex requires a normalization method")
	}
	if o.Method == "plink2" && o.Genotypes == "" {
		return errors.New("plink2 requires a pfile prefix for the genotypes")
	}
	return nil
}

// CheckRegion reports whether region is empty or of the form chr:start-end.
func CheckRegion(region string) bool {
	if region == "" {
		return true
	}
	return regionRegexp.MatchString(region)
}

// Region is a parsed chr:start-end string.
type Region struct {
	Chrom string
	Start int
	End   int
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// ParseRegion splits a region string validated by CheckRegion.
func ParseRegion(region string) (Region, error) {
	var r Region
	if region == "" || !regionRegexp.MatchString(region) {
		return r, errors.Errorf("invalid region %s", region)
	}
	colon := strings.LastIndexByte(region, ':')
	r.Chrom = region[:colon]
	coords := strings.SplitN(region[colon+1:], "-", 2)
	var err error
	if r.Start, err = strconv.Atoi(coords[0]); err != nil {
		return r, errors.Wrapf(err, "invalid region start in %s", region)
	}
	if r.End, err = strconv.Atoi(coords[1]); err != nil {
		return r, errors.Wrapf(err, "invalid region end in %s", region)
	}
	return r, nil
}

// SplitList splits a comma-separated flag value, dropping empty items.
func SplitList(s string) []string {
	var ans []string
	for _, item := range strings.Split(s, ",") {
		if item != "" {
			ans = append(ans, item)
		}
	}
	return ans
}

// PCColumns returns PC_1 through PC_n.
func PCColumns(n int) []string {
	ans := make([]string, n)
	for i := range ans {
		ans[i] = fmt.Sprintf("PC_%d", i+1)
	}
	return ans
}

// Covariates is the PCs followed by the phenotype-specific and shared covariates.
// Duplicates are kept.
func Covariates(numPCs int, ptCovars, sharedCovars []string) []string {
	ans := PCColumns(numPCs)
	ans = append(ans, ptCovars...)
	ans = append(ans, sharedCovars...)
	return ans
}

// PhenotypePath returns the phenotype file itself if it is a csv, and otherwise
// the conventional location of the named phenotype in the workspace bucket.
func PhenotypePath(phenotype, bucket string) string {
	if strings.HasSuffix(phenotype, ".csv") {
		return phenotype
	}
	return cloud.Join(bucket, "phenotypes", phenotype+"_phenocovar.csv")
}

// OutPrefix names the outputs of a run, e.g. ALT_hail_chr11_119206339_119308149.gwas
func OutPrefix(phenotype, method, region string) string {
	name := phenotype
	if strings.HasSuffix(name, ".csv") {
		name = strings.TrimSuffix(path.Base(name), ".csv")
	}
	prefix := name + "_" + method
	if region != "" {
		prefix += "_" + strings.NewReplacer(":", "_", "-", "_").Replace(region)
	}
	return prefix + ".gwas"
}
