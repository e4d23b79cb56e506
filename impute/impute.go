// Package impute launches the beagle reference-panel imputation workflow
// through cromshell.
package impute

import (
	"bytes"
	"encoding/json"
	"path/filepath"

	"github.com/dasnellings/aouTools/cloud"
	"github.com/dasnellings/aouTools/config"
	"github.com/dasnellings/aouTools/shell"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Default reference panel: chr21 SNPs merged with phased tandem repeats.
const (
	DefaultRefGenome      = "https://ensemble-tr.s3.us-east-2.amazonaws.com/additional-phased-trs/chr21_final_SNP_merged_additional_TRs.vcf.gz"
	DefaultRefGenomeIndex = DefaultRefGenome + ".tbi"
)

// DryRunToken is written in place of the access token when nothing is submitted.
const DryRunToken = "DRYRUN_NO_TOKEN"

// Inputs is the workflow input payload.
type Inputs struct {
	Vcf         string `json:"beagle.vcf"`
	Genome      string `json:"beagle.genome"`
	GenomeIndex string `json:"beagle.genome_index"`
	OutPrefix   string `json:"beagle.outprefix"`
	Project     string `json:"beagle.GOOGLE_PROJECT"`
	Token       string `json:"beagle.GCS_OAUTH_TOKEN"`
}

// NewInputs fills the workflow inputs of job name.
func NewInputs(name, vcf, genome, genomeIndex, project, token string) Inputs {
	return Inputs{
		Vcf:         vcf,
		Genome:      genome,
		GenomeIndex: genomeIndex,
		OutPrefix:   name,
		Project:     project,
		Token:       token,
	}
}

// Options is the cromwell workflow options payload. It is empty unless
// outputDir is set, in which case final outputs are copied there.
func Options(outputDir string) map[string]interface{} {
	ans := make(map[string]interface{})
	if outputDir != "" {
		ans["final_workflow_outputs_dir"] = outputDir
	}
	return ans
}

// WriteJSON writes v to file indented by four spaces. URLs are written as
// given, without escaping & < or >.
func WriteJSON(file string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encoding %s", file)
	}
	out := fileio.EasyCreate(file)
	_, err := out.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	exception.PanicOnErr(err)
	err = out.Close()
	exception.PanicOnErr(err)
	return nil
}

// InputsFile is the input payload of job name.
func InputsFile(name string) string { return name + ".aou.json" }

// OptionsFile is the workflow options payload of job name.
func OptionsFile(name string) string { return name + ".options.aou.json" }

// SubmitCommand is the cromshell invocation that submits the workflow.
func SubmitCommand(cromshell, wdl, inputs, options string) (string, []string) {
	return cromshell, []string{"submit", wdl, inputs, "-op", options}
}

// Job describes one imputation run.
type Job struct {
	Name           string // output prefix and workflow name
	Vcf            string
	RefGenome      string
	RefGenomeIndex string
	Wdl            string // defaults to the configured beagle wdl
	CopyOutputs    bool   // copy final outputs to $WORKSPACE_BUCKET/<name>
	Dir            string // payloads are written here, defaults to "."
}

// Launch writes the payloads for job and submits the workflow. A dry-run
// Runner prints the submit command and contacts no external service.
func Launch(job Job, cfg config.Config, sh *shell.Runner) error {
	if job.Name == "" {
		return errors.New("a job name is required")
	}
	if job.Vcf == "" {
		return errors.New("a genotype vcf is required")
	}
	if job.RefGenome == "" {
		job.RefGenome = DefaultRefGenome
	}
	if job.RefGenomeIndex == "" {
		job.RefGenomeIndex = DefaultRefGenomeIndex
	}
	if job.Wdl == "" {
		job.Wdl = cfg.BeagleWdl
	}
	if job.Dir == "" {
		job.Dir = "."
	}

	token := DryRunToken
	if !sh.DryRun {
		var err error
		if token, err = cloud.AccessToken(sh, cfg.Gcloud); err != nil {
			return err
		}
	}

	var outputDir string
	if job.CopyOutputs {
		outputDir = cloud.Join(cfg.WorkspaceBucket, job.Name)
	}

	inputs := filepath.Join(job.Dir, InputsFile(job.Name))
	options := filepath.Join(job.Dir, OptionsFile(job.Name))
	err := WriteJSON(inputs, NewInputs(job.Name, job.Vcf, job.RefGenome, job.RefGenomeIndex, cfg.GoogleProject, token))
	if err != nil {
		return err
	}
	if err = WriteJSON(options, Options(outputDir)); err != nil {
		return err
	}
	log.WithFields(log.Fields{"job": job.Name, "vcf": job.Vcf, "wdl": job.Wdl}).Info("submitting imputation")

	name, args := SubmitCommand(cfg.Cromshell, job.Wdl, inputs, options)
	return errors.Wrap(sh.Run(name, args...), "submitting workflow")
}
