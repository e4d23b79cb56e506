package main

import (
	"flag"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, f func()) string {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()
	f()
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestGwasUsageHailContract(t *testing.T) {
	out := captureStdout(t, func() { gwasUsage(flag.NewFlagSet("gwas", flag.ContinueOnError)) })
	for _, want := range []string{
		"--phenocovar <tsv>", "--covars <c1,c2,...>", "--mt <matrix table>",
		"--sample-call-rate", "--variant-call-rate", "--maf", "--hwe", "--gq",
		"--out <prefix>.hail.tsv", "[--region chr:start-end]",
		"chrom  pos  beta  standard_error  p_value",
	} {
		assert.Contains(t, out, want)
	}
}
