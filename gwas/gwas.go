// Package gwas prepares phenotype and covariate tables for a genome-wide
// association study, runs the association test with an external engine and
// writes the results.
package gwas

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dasnellings/aouTools/cloud"
	"github.com/dasnellings/aouTools/config"
	"github.com/dasnellings/aouTools/shell"
	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultSamples is the passing sample list in the workspace bucket.
func DefaultSamples(bucket string) string {
	return cloud.Join(bucket, "samples", "passing_samples_v7.csv")
}

// PrepareTable builds the table handed to the engine: phenotypes merged with
// the requested PCs, normalized, and restricted to the sample list. It fails if
// any of covars is missing from the result.
func PrepareTable(phenotypeFile, ancestryFile, samplesFile string, opts Options, covars []string) (dataframe.DataFrame, error) {
	data, err := LoadPhenotypes(phenotypeFile)
	if err != nil {
		return data, err
	}
	ancestry, err := LoadAncestry(ancestryFile)
	if err != nil {
		return data, err
	}
	if data, err = MergeAncestry(data, ancestry, PCColumns(opts.NumPCs)); err != nil {
		return data, err
	}
	log.Printf("%d subjects with phenotype and ancestry", data.Nrow())

	if opts.Norm != "" {
		if opts.NormBySex {
			data, err = NormalizeBySex(data, PhenotypeColumn, opts.Norm)
		} else {
			data, err = NormalizeColumn(data, PhenotypeColumn, opts.Norm)
		}
		if err != nil {
			return data, err
		}
	}

	samples, err := LoadSamples(samplesFile)
	if err != nil {
		return data, err
	}
	if data, err = MergeSamples(data, samples); err != nil {
		return data, err
	}
	log.Printf("%d subjects after applying the sample list", data.Nrow())

	if err = RequireColumns(data, append([]string{PhenotypeColumn}, covars...)); err != nil {
		return data, err
	}
	if data.Nrow() == 0 {
		return data, errors.New("no subjects left after merging phenotypes, ancestry and samples")
	}
	return data, nil
}

// Run performs a complete GWAS and returns the path of the results table.
func Run(opts Options, cfg config.Config, sh *shell.Runner) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	covars := Covariates(opts.NumPCs, opts.PtCovars, opts.SharedCovars)

	phenotypeFile, err := cloud.Cached(sh, cfg.Gsutil, cfg.GoogleProject, PhenotypePath(opts.Phenotype, cfg.WorkspaceBucket), opts.WorkDir)
	if err != nil {
		return "", err
	}
	ancestryFile, err := cloud.Cached(sh, cfg.Gsutil, cfg.GoogleProject, cfg.AncestryPreds, opts.WorkDir)
	if err != nil {
		return "", err
	}
	samples := opts.Samples
	if samples == "" {
		samples = DefaultSamples(cfg.WorkspaceBucket)
	}
	samplesFile, err := cloud.Cached(sh, cfg.Gsutil, cfg.GoogleProject, samples, opts.WorkDir)
	if err != nil {
		return "", err
	}

	data, err := PrepareTable(phenotypeFile, ancestryFile, samplesFile, opts, covars)
	if err != nil {
		return "", err
	}

	engine, err := NewEngine(opts.Method, cfg, sh)
	if err != nil {
		return "", err
	}
	prefix := filepath.Join(opts.WorkDir, OutPrefix(opts.Phenotype, opts.Method, opts.Region))
	log.WithFields(log.Fields{
		"engine":   engine.Name(),
		"subjects": data.Nrow(),
		"covars":   len(covars),
		"region":   opts.Region,
	}).Info("running association")
	results, err := engine.Association(Job{
		Data:      data,
		Covars:    covars,
		Region:    opts.Region,
		Filters:   opts.Filters,
		Genotypes: opts.Genotypes,
		Prefix:    prefix,
	})
	if err != nil {
		return "", err
	}
	log.Printf("%d variants tested", len(results))

	outfile := prefix + ".tab"
	WriteResults(outfile, opts.CommandLine, covars, results)

	if (opts.Plot || opts.AsciiPlot) && len(results) == 0 {
		log.Warn("no variants were tested, skipping plots")
		return outfile, nil
	}
	if opts.Plot {
		if err = PlotManhattan(results, prefix+".manhattan.png"); err != nil {
			return outfile, err
		}
		if err = PlotQQ(results, prefix+".qq.png"); err != nil {
			return outfile, err
		}
	}
	if opts.AsciiPlot {
		fmt.Fprintln(os.Stderr, AsciiManhattan(results, 100))
	}
	return outfile, nil
}
