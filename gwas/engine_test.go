package gwas

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dasnellings/aouTools/config"
	"github.com/dasnellings/aouTools/shell"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script that records its arguments in
// <path>.args before running body.
func fakeTool(t *testing.T, dir, name, body string) string {
	p := filepath.Join(dir, name)
	script := "#!/bin/sh\necho \"$@\" > \"$0.args\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(p, []byte(script), 0755))
	return p
}

func toolArgs(t *testing.T, tool string) string {
	data, err := os.ReadFile(tool + ".args")
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

const fakePlink = `while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
f="$out.phenotype.glm.linear"
printf '#CHROM\tPOS\tID\tREF\tALT\tA1\tTEST\tOBS_CT\tBETA\tSE\tT_STAT\tP\n' > "$f"
printf 'chr1\t100\trs1\tA\tG\tG\tADD\t3\t0.5\t0.1\t5\t1e-06\n' >> "$f"
printf 'chr2\t200\trs2\tC\tT\tT\tADD\t3\tNA\tNA\tNA\tNA\n' >> "$f"
printf 'chr2\t300\trs3\tC\tT\tT\tADD\t3\t-0.2\t0.1\t-2\t0.04\n' >> "$f"`

const fakeHail = `while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
printf 'chrom\tpos\tbeta\tstandard_error\tp_value\n' > "$out"
printf 'chr11\t119206400\t0.3\t0.05\t2e-09\n' >> "$out"`

func quietRunner() *shell.Runner {
	return &shell.Runner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}
}

func engineTable() dataframe.DataFrame {
	return dataframe.New(
		series.New([]string{"1001", "1002", "1003"}, series.String, IDColumn),
		series.New([]float64{1.5, math.NaN(), 0.5}, series.Float, PhenotypeColumn),
		series.New([]int{40, 50, 60}, series.Int, "age"),
		series.New([]float64{0.1, 0.2, 0.3}, series.Float, "PC_1"),
	)
}

func TestNewEngine(t *testing.T) {
	for _, m := range Methods {
		e, err := NewEngine(m, config.Config{}, quietRunner())
		require.NoError(t, err)
		assert.Equal(t, m, e.Name())
	}
	_, err := NewEngine("regenie", config.Config{}, quietRunner())
	assert.Error(t, err)
}

func TestPlinkEngine(t *testing.T) {
	dir := t.TempDir()
	plink := fakeTool(t, dir, "plink2", fakePlink)
	e, err := NewEngine("plink2", config.Config{Plink2: plink}, quietRunner())
	require.NoError(t, err)

	prefix := filepath.Join(dir, "ALT_plink2.gwas")
	results, err := e.Association(Job{
		Data:      engineTable(),
		Covars:    []string{"PC_1", "age", "age"},
		Region:    "chr11:1-100",
		Filters:   DefaultFilters,
		Genotypes: "acaf/chr11",
		Prefix:    prefix,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{Chrom: "chr1", Pos: 100, Beta: 0.5, StdErr: 0.1, P: 1e-6}, results[0])
	assert.Equal(t, 300, results[1].Pos)

	input := prefix + ".phenocovar.tsv"
	assert.Equal(t, "--pfile acaf/chr11 --pheno "+input+" --pheno-name phenotype "+
		"--covar "+input+" --covar-name PC_1,age,age --glm hide-covar "+
		"--maf 0.01 --hwe 1e-15 --geno 0.1 --mind 0.1 "+
		"--chr chr11 --from-bp 1 --to-bp 100 --out "+prefix, toolArgs(t, plink))

	table, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "#IID\tphenotype\tPC_1\tage\n"+
		"1001\t1.5\t0.1\t40\n"+
		"1002\tNA\t0.2\t50\n"+
		"1003\t0.5\t0.3\t60\n", string(table))
}

func TestPlinkEngineNoCovars(t *testing.T) {
	dir := t.TempDir()
	plink := fakeTool(t, dir, "plink2", fakePlink)
	e, err := NewEngine("plink2", config.Config{Plink2: plink}, quietRunner())
	require.NoError(t, err)
	_, err = e.Association(Job{Data: engineTable(), Filters: DefaultFilters, Genotypes: "g", Prefix: filepath.Join(dir, "x")})
	require.NoError(t, err)
	assert.Contains(t, toolArgs(t, plink), "--glm allow-no-covars")
	assert.NotContains(t, toolArgs(t, plink), "--covar")
}

func TestPlinkEngineRequiresGenotypes(t *testing.T) {
	e, err := NewEngine("plink2", config.Config{Plink2: "plink2"}, quietRunner())
	require.NoError(t, err)
	_, err = e.Association(Job{Data: engineTable(), Prefix: filepath.Join(t.TempDir(), "x")})
	assert.ErrorContains(t, err, "pfile")
}

func TestPlinkEngineFailure(t *testing.T) {
	dir := t.TempDir()
	plink := fakeTool(t, dir, "plink2", "echo 'Error: bad pfile' >&2\nexit 3")
	e, err := NewEngine("plink2", config.Config{Plink2: plink}, quietRunner())
	require.NoError(t, err)
	_, err = e.Association(Job{Data: engineTable(), Genotypes: "g", Prefix: filepath.Join(dir, "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plink2 association")
	assert.Contains(t, err.Error(), "Error: bad pfile")
}

func TestHailEngine(t *testing.T) {
	dir := t.TempDir()
	python := fakeTool(t, dir, "python3", fakeHail)
	cfg := config.Config{Python: python, HailScript: "hail_gwas.py", HailMatrixTable: "gs://bucket/acaf.mt"}
	e, err := NewEngine("hail", cfg, quietRunner())
	require.NoError(t, err)

	prefix := filepath.Join(dir, "ALT_hail.gwas")
	results, err := e.Association(Job{
		Data:    engineTable(),
		Covars:  []string{"PC_1", "age"},
		Region:  "chr11:119206339-119308149",
		Filters: DefaultFilters,
		Prefix:  prefix,
	})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Chrom: "chr11", Pos: 119206400, Beta: 0.3, StdErr: 0.05, P: 2e-9}}, results)

	assert.Equal(t, "hail_gwas.py --phenocovar "+prefix+".phenocovar.tsv --covars PC_1,age "+
		"--mt gs://bucket/acaf.mt --sample-call-rate 0.9 --variant-call-rate 0.9 --maf 0.01 --hwe 1e-15 --gq 20 "+
		"--out "+prefix+".hail.tsv --region chr11:119206339-119308149", toolArgs(t, python))

	table, err := os.ReadFile(prefix + ".phenocovar.tsv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(table), "person_id\tphenotype\tPC_1\tage\n"))
}

func TestHailEngineNeedsMatrixTable(t *testing.T) {
	e, err := NewEngine("hail", config.Config{Python: "python3"}, quietRunner())
	require.NoError(t, err)
	_, err = e.Association(Job{Data: engineTable(), Prefix: filepath.Join(t.TempDir(), "x")})
	assert.ErrorContains(t, err, "WGS_ACAF_THRESHOLD_SPLIT_HAIL_PATH")
}
