package gwas

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
	"golang.org/x/exp/slices"
)

// IDColumn identifies a subject in every table.
const IDColumn = "person_id"

// PhenotypeColumn holds the trait being tested.
const PhenotypeColumn = "phenotype"

const (
	ancestryIDColumn = "research_id"
	pcaColumn        = "pca_features"
)

// ReadTable reads a delimited file with a header line. ID columns are always strings.
func ReadTable(file string, delimiter rune) (dataframe.DataFrame, error) {
	if _, err := os.Stat(file); err != nil {
		return dataframe.DataFrame{}, errors.Wrap(err, "reading table")
	}
	in := fileio.EasyOpen(file)
	df := dataframe.ReadCSV(in,
		dataframe.WithDelimiter(delimiter),
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			IDColumn:         series.String,
			ancestryIDColumn: series.String,
			pcaColumn:        series.String,
		}))
	err := in.Close()
	exception.PanicOnErr(err)
	if df.Err != nil {
		return df, errors.Wrapf(df.Err, "parsing %s", file)
	}
	return df, nil
}

// LoadPhenotypes reads the phenotype/covariate csv.
func LoadPhenotypes(file string) (dataframe.DataFrame, error) {
	df, err := ReadTable(file, ',')
	if err != nil {
		return df, err
	}
	if err = RequireColumns(df, []string{IDColumn, PhenotypeColumn}); err != nil {
		return df, errors.Wrapf(err, "in %s", file)
	}
	return df, nil
}

// LoadSamples reads the sample inclusion csv.
func LoadSamples(file string) (dataframe.DataFrame, error) {
	df, err := ReadTable(file, ',')
	if err != nil {
		return df, err
	}
	if err = RequireColumns(df, []string{IDColumn}); err != nil {
		return df, errors.Wrapf(err, "in %s", file)
	}
	return df, nil
}

// LoadAncestry reads the ancestry prediction tsv and expands pca_features into
// PC_1..PC_N columns. N is taken from the first row.
func LoadAncestry(file string) (dataframe.DataFrame, error) {
	raw, err := ReadTable(file, '\t')
	if err != nil {
		return raw, err
	}
	if err = RequireColumns(raw, []string{ancestryIDColumn, pcaColumn}); err != nil {
		return raw, errors.Wrapf(err, "in %s", file)
	}
	features := raw.Col(pcaColumn).Records()
	if len(features) == 0 {
		return raw, errors.Errorf("no records in %s", file)
	}

	numPCs := len(strings.Split(features[0], ","))
	pcs := make([][]float64, numPCs)
	for i := range pcs {
		pcs[i] = make([]float64, len(features))
	}
	for row := range features {
		vals, err := parsePCs(features[row])
		if err != nil {
			return raw, errors.Wrapf(err, "%s line %d", file, row+2)
		}
		if len(vals) != numPCs {
			return raw, errors.Errorf("%s line %d: expected %d PCs, found %d", file, row+2, numPCs, len(vals))
		}
		for i := range vals {
			pcs[i][row] = vals[i]
		}
	}

	cols := make([]series.Series, 0, numPCs+1)
	cols = append(cols, series.New(raw.Col(ancestryIDColumn).Records(), series.String, IDColumn))
	for i, name := range PCColumns(numPCs) {
		cols = append(cols, series.New(pcs[i], series.Float, name))
	}
	df := dataframe.New(cols...)
	return df, df.Err
}

// parsePCs parses "[0.12, -0.03, ...]".
func parsePCs(s string) ([]float64, error) {
	s = strings.NewReplacer("[", "", "]", "").Replace(s)
	words := strings.Split(s, ",")
	ans := make([]float64, len(words))
	var err error
	for i := range words {
		ans[i], err = strconv.ParseFloat(strings.TrimSpace(words[i]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed %s value %q", pcaColumn, words[i])
		}
	}
	return ans, nil
}

// RequireColumns returns an error naming the first column of cols missing from df.
func RequireColumns(df dataframe.DataFrame, cols []string) error {
	names := df.Names()
	for _, c := range cols {
		if !slices.Contains(names, c) {
			return errors.Errorf("required column %s not found", c)
		}
	}
	return nil
}

// MergeAncestry adds the requested PCs to data, keeping only subjects present in both.
func MergeAncestry(data, ancestry dataframe.DataFrame, pcols []string) (dataframe.DataFrame, error) {
	available := ancestry.Ncol() - 1
	for _, p := range pcols {
		if !slices.Contains(ancestry.Names(), p) {
			return data, errors.Errorf("%s requested but the ancestry table only has %d PCs", p, available)
		}
	}
	keep := append([]string{IDColumn}, pcols...)
	sub := ancestry.Select(keep)
	if sub.Err != nil {
		return data, errors.Wrap(sub.Err, "selecting PCs")
	}
	return InnerJoin(data, sub, IDColumn)
}

// MergeSamples keeps the subjects listed in samples, joining on every shared column.
func MergeSamples(data, samples dataframe.DataFrame) (dataframe.DataFrame, error) {
	var keys []string
	dataNames := data.Names()
	for _, name := range samples.Names() {
		if slices.Contains(dataNames, name) {
			keys = append(keys, name)
		}
	}
	if len(keys) == 0 {
		return data, errors.New("sample list shares no columns with the phenotype table")
	}
	return InnerJoin(data, samples, keys...)
}

// InnerJoin joins a and b on keys. Rows come out in the order of a, and for each
// row of a in the order of its matches in b. Numeric keys compare by value, so an
// integer 1 in one table matches a float 1.0 in the other. Missing keys never match.
func InnerJoin(a, b dataframe.DataFrame, keys ...string) (dataframe.DataFrame, error) {
	if err := RequireColumns(a, keys); err != nil {
		return a, errors.Wrap(err, "left side of join")
	}
	if err := RequireColumns(b, keys); err != nil {
		return a, errors.Wrap(err, "right side of join")
	}
	var rest []string
	for _, name := range b.Names() {
		if !slices.Contains(keys, name) {
			rest = append(rest, name)
		}
	}

	index := make(map[string][]int, b.Nrow())
	bKeys := keyColumns(b, keys)
	for j := 0; j < b.Nrow(); j++ {
		if k, ok := joinKey(bKeys, j); ok {
			index[k] = append(index[k], j)
		}
	}

	var left, right []int
	aKeys := keyColumns(a, keys)
	for i := 0; i < a.Nrow(); i++ {
		k, ok := joinKey(aKeys, i)
		if !ok {
			continue
		}
		for _, j := range index[k] {
			left = append(left, i)
			right = append(right, j)
		}
	}

	if len(left) == 0 {
		return emptyJoin(a, b, rest), nil
	}
	ans := a.Subset(left)
	if len(rest) > 0 {
		ans = ans.CBind(b.Select(rest).Subset(right))
	}
	if ans.Err != nil {
		return ans, errors.Wrap(ans.Err, "joining tables")
	}
	return ans, nil
}

// emptyJoin has the columns of a join result and no rows.
func emptyJoin(a, b dataframe.DataFrame, rest []string) dataframe.DataFrame {
	var cols []series.Series
	for _, name := range a.Names() {
		cols = append(cols, a.Col(name).Empty())
	}
	for _, name := range rest {
		cols = append(cols, b.Col(name).Empty())
	}
	return dataframe.New(cols...)
}

func keyColumns(df dataframe.DataFrame, keys []string) []series.Series {
	ans := make([]series.Series, len(keys))
	for i := range keys {
		ans[i] = df.Col(keys[i])
	}
	return ans
}

func joinKey(cols []series.Series, row int) (string, bool) {
	s := new(strings.Builder)
	for i := range cols {
		if i > 0 {
			s.WriteByte('\x00')
		}
		e := cols[i].Elem(row)
		if e.IsNA() {
			return "", false
		}
		switch cols[i].Type() {
		case series.Int, series.Float, series.Bool:
			f := e.Float()
			if math.IsNaN(f) {
				return "", false
			}
			s.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		default:
			s.WriteString(e.String())
		}
	}
	return s.String(), true
}
