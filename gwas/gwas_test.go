package gwas

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dasnellings/aouTools/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	pheno := writeFile(t, dir, "ALT.csv", testPhenotypes)
	samples := writeFile(t, dir, "samples.csv", testSamples)
	cfg := config.Config{
		Plink2:        fakeTool(t, dir, "plink2", fakePlink),
		AncestryPreds: ancestryFile(t, dir, 10, "1001", "1002", "1003", "1004"),
	}

	opts := validOptions()
	opts.Phenotype = pheno
	opts.Method = "plink2"
	opts.Samples = samples
	opts.NumPCs = 3
	opts.PtCovars = []string{"age"}
	opts.SharedCovars = []string{SexColumn}
	opts.Norm = "quantile"
	opts.NormBySex = true
	opts.Genotypes = "acaf/all"
	opts.Plot = true
	opts.WorkDir = dir
	opts.CommandLine = "aoutools gwas -phenotype ALT.csv -method plink2"

	outfile, err := Run(opts, cfg, quietRunner())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ALT_plink2.gwas.tab"), outfile)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#"+opts.CommandLine, lines[0])
	assert.Equal(t, "# covars: PC_1,PC_2,PC_3,age,sex_at_birth_Male", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "chr1\t100\t0.5\t0.1\t"))

	for _, suffix := range []string{".manhattan.png", ".qq.png", ".phenocovar.tsv"} {
		_, err = os.Stat(filepath.Join(dir, "ALT_plink2.gwas"+suffix))
		assert.NoError(t, err, suffix)
	}

	table, err := os.ReadFile(filepath.Join(dir, "ALT_plink2.gwas.phenocovar.tsv"))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(table)), "\n")
	assert.Equal(t, "#IID\tphenotype\tPC_1\tPC_2\tPC_3\tage\tsex_at_birth_Male", rows[0])
	assert.Len(t, rows, 4)
}

func TestRunValidatesFirst(t *testing.T) {
	opts := validOptions()
	opts.NumPCs = 11
	// nothing is read or run for invalid options
	_, err := Run(opts, config.Config{AncestryPreds: "/does/not/exist"}, quietRunner())
	assert.EqualError(t, err, "specify a maximum of 10 PCs")
}

func TestRunMissingCovariate(t *testing.T) {
	dir := t.TempDir()
	plink := fakeTool(t, dir, "plink2", fakePlink)
	cfg := config.Config{
		Plink2:        plink,
		AncestryPreds: ancestryFile(t, dir, 10, "1001", "1002", "1003"),
	}
	opts := validOptions()
	opts.Phenotype = writeFile(t, dir, "ALT.csv", testPhenotypes)
	opts.Samples = writeFile(t, dir, "samples.csv", testSamples)
	opts.Method = "plink2"
	opts.Genotypes = "acaf/all"
	opts.PtCovars = []string{"bmi"}
	opts.WorkDir = dir

	_, err := Run(opts, cfg, quietRunner())
	assert.EqualError(t, err, "required column bmi not found")
	_, err = os.Stat(plink + ".args")
	assert.True(t, os.IsNotExist(err), "engine must not run")
}

func TestRunNoVariants(t *testing.T) {
	dir := t.TempDir()
	empty := "while [ $# -gt 0 ]; do\n  if [ \"$1\" = \"--out\" ]; then out=\"$2\"; fi\n  shift\ndone\n" +
		"printf '#CHROM\\tPOS\\tID\\tREF\\tALT\\tA1\\tTEST\\tOBS_CT\\tBETA\\tSE\\tT_STAT\\tP\\n' > \"$out.phenotype.glm.linear\""
	cfg := config.Config{
		Plink2:        fakeTool(t, dir, "plink2", empty),
		AncestryPreds: ancestryFile(t, dir, 10, "1001", "1002", "1003"),
	}
	opts := validOptions()
	opts.Phenotype = writeFile(t, dir, "ALT.csv", testPhenotypes)
	opts.Samples = writeFile(t, dir, "samples.csv", testSamples)
	opts.Method = "plink2"
	opts.Genotypes = "acaf/all"
	opts.Region = "chr11:1-2"
	opts.Plot = true
	opts.AsciiPlot = true
	opts.WorkDir = dir

	outfile, err := Run(opts, cfg, quietRunner())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ALT_plink2_chr11_1_2.gwas.tab"), outfile)
	_, err = os.Stat(outfile)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ALT_plink2_chr11_1_2.gwas.manhattan.png"))
	assert.True(t, os.IsNotExist(err), "no plot for an empty result")
}
