package concat

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dasnellings/aouTools/cloud"
	"github.com/dasnellings/aouTools/config"
	"github.com/dasnellings/aouTools/shell"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Step names, in the order Plan returns them.
const (
	StepConcat      = "concat"
	StepIndex       = "index"
	StepUploadVcf   = "upload vcf"
	StepUploadIndex = "upload index"
	StepCleanup     = "cleanup"
)

// Step is one unit of work for a batch. It either runs Args as a command or,
// when Remove is set, deletes those local files.
type Step struct {
	Name   string
	Args   []string
	Remove []string
}

func (s Step) String() string {
	if len(s.Remove) > 0 {
		return shell.Format("rm", s.Remove...)
	}
	return shell.Format(s.Args[0], s.Args[1:]...)
}

// Tools are the executables the batch steps call.
type Tools struct {
	Bcftools string
	Tabix    string
	Gsutil   string
}

// OutputName is the merged vcf of a batch.
func OutputName(outprefix, batch string) string {
	return fmt.Sprintf("%s-%s.vcf.gz", outprefix, batch)
}

// Destination is where a merged file is uploaded.
func Destination(bucket, outprefix, file string) string {
	return cloud.Join(bucket, "acaf_batches", outprefix, file)
}

// Plan lists the steps that merge, index, upload and then delete the local
// copy of one batch.
func Plan(batch Batch, outprefix string, tools Tools, bucket string) ([]Step, error) {
	sorted, err := SortByCoordinate(batch.Vcfs)
	if err != nil {
		return nil, err
	}
	out := OutputName(outprefix, batch.Name)
	index := out + ".tbi"

	concat := append([]string{tools.Bcftools, "concat"}, sorted...)
	concat = append(concat, "-Oz", "-o", out)
	return []Step{
		{Name: StepConcat, Args: concat},
		{Name: StepIndex, Args: []string{tools.Tabix, "-p", "vcf", out}},
		{Name: StepUploadVcf, Args: []string{tools.Gsutil, "cp", out, Destination(bucket, outprefix, out)}},
		{Name: StepUploadIndex, Args: []string{tools.Gsutil, "cp", index, Destination(bucket, outprefix, index)}},
		{Name: StepCleanup, Remove: []string{out, index}},
	}, nil
}

// Options control one concatenation run.
type Options struct {
	Manifest  string
	OutPrefix string
	Bcftools  string
	Debug     bool     // print each batch's steps without running them
	Verify    bool     // check the merged vcf is coordinate sorted before uploading
	Only      []string // process only these batches
}

// Run processes every batch of the manifest in turn and returns the batches
// that finished. A failing step stops the run; the returned list tells which
// batches no longer need to be redone.
func Run(opts Options, cfg config.Config, sh *shell.Runner) ([]string, error) {
	m, err := ReadManifest(opts.Manifest)
	if err != nil {
		return nil, err
	}
	batches, err := GroupBatches(m)
	if err != nil {
		return nil, err
	}
	if batches, err = selectBatches(batches, opts.Only); err != nil {
		return nil, err
	}
	tools := Tools{Bcftools: opts.Bcftools, Tabix: cfg.Tabix, Gsutil: cfg.Gsutil}

	out := sh.Stdout
	if out == nil {
		out = os.Stdout
	}
	sh.Setenv("GCS_REQUESTER_PAYS_PROJECT", cfg.GoogleProject)

	var done []string
	for _, b := range batches {
		fmt.Fprintf(out, "##### Processing %s ######\n", b.Name)
		log.WithFields(log.Fields{"batch": b.Name, "vcfs": len(b.Vcfs), "indexes": len(b.Indexes)}).Debug("planning batch")
		steps, err := Plan(b, opts.OutPrefix, tools, cfg.WorkspaceBucket)
		if err != nil {
			return done, err
		}
		if opts.Debug {
			printSteps(out, steps)
			continue
		}
		if err = runBatch(steps, opts.Verify, cfg, sh); err != nil {
			return done, errors.Wrapf(err, "batch %s failed (completed: %s)", b.Name, strings.Join(done, ","))
		}
		done = append(done, b.Name)
		log.WithField("batch", b.Name).Info("batch uploaded")
	}
	return done, nil
}

func selectBatches(batches []Batch, only []string) ([]Batch, error) {
	if len(only) == 0 {
		return batches, nil
	}
	var ans []Batch
	for _, b := range batches {
		if slices.Contains(only, b.Name) {
			ans = append(ans, b)
		}
	}
	for _, name := range only {
		if slices.IndexFunc(batches, func(b Batch) bool { return b.Name == name }) < 0 {
			return nil, errors.Errorf("batch %s is not in the manifest", name)
		}
	}
	return ans, nil
}

func printSteps(w io.Writer, steps []Step) {
	for _, s := range steps {
		fmt.Fprintf(w, "%s: %s\n", s.Name, s)
	}
}

// runBatch refreshes the access token and runs the steps of one batch.
func runBatch(steps []Step, verify bool, cfg config.Config, sh *shell.Runner) error {
	if !sh.DryRun {
		token, err := cloud.AccessToken(sh, cfg.Gcloud)
		if err != nil {
			return err
		}
		sh.Setenv("GCS_OAUTH_TOKEN", token)
	}
	for _, s := range steps {
		if err := runStep(s, sh); err != nil {
			return errors.Wrapf(err, "step %s", s.Name)
		}
		if verify && s.Name == StepConcat && !sh.DryRun {
			if err := Verify(s.Args[len(s.Args)-1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func runStep(s Step, sh *shell.Runner) error {
	if len(s.Remove) == 0 {
		return sh.Run(s.Args[0], s.Args[1:]...)
	}
	if sh.DryRun {
		return sh.Run("rm", s.Remove...)
	}
	for _, f := range s.Remove {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}
