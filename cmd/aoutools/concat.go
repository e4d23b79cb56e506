package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dasnellings/aouTools/concat"
	"github.com/dasnellings/aouTools/shell"
	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/exception"
)

func concatUsage(concatFlags *flag.FlagSet) {
	fmt.Print(
		"concat - concatenate the vcf shards of each batch, index, and upload to\n" +
			"\t$WORKSPACE_BUCKET/acaf_batches/<outprefix>/. Batches are processed one at a time\n" +
			"\tand local copies are removed after upload.\n\n" +
			"Usage:\n" +
			"  aoutools concat [options] <cromshell_job_output.json> <outprefix> <bcftools>\n\n" +
			"Options:\n")
	concatFlags.PrintDefaults()
}

func runConcat(args []string) {
	var err error
	concatFlags := flag.NewFlagSet("concat", flag.ExitOnError)

	debug := concatFlags.Bool("debug", false, "Print the commands for each batch without running them.")
	verify := concatFlags.Bool("verify", false, "Check each merged vcf is coordinate sorted before uploading.")
	only := concatFlags.String("only", "", "Comma-separated list of batches to process. Default: all.")
	verbose := concatFlags.Bool("v", false, "Verbose logging.")

	err = concatFlags.Parse(args)
	exception.PanicOnErr(err)
	concatFlags.Usage = func() { concatUsage(concatFlags) }

	if concatFlags.NArg() != 3 {
		concatFlags.Usage()
		errExit(fmt.Sprintf("\nERROR: expecting 3 arguments, got %d", concatFlags.NArg()))
	}

	cfg := workspace(*verbose)
	opts := concat.Options{
		Manifest:  concatFlags.Arg(0),
		OutPrefix: concatFlags.Arg(1),
		Bcftools:  concatFlags.Arg(2),
		Debug:     *debug,
		Verify:    *verify,
		Only:      strings.FieldsFunc(*only, func(r rune) bool { return r == ',' }),
	}
	if !opts.Debug {
		if err = shell.LookPath(opts.Bcftools, cfg.Tabix, cfg.Gsutil, cfg.Gcloud); err != nil {
			errExit("ERROR: " + err.Error())
		}
	}
	done, err := concat.Run(opts, cfg, shell.New(false))
	if err != nil {
		errExit("ERROR: " + err.Error())
	}
	if !opts.Debug {
		log.Printf("uploaded %d batches: %s", len(done), strings.Join(done, ","))
	}
}
