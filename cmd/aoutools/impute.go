package main

import (
	"flag"
	"fmt"

	"github.com/dasnellings/aouTools/impute"
	"github.com/dasnellings/aouTools/shell"
	"github.com/vertgenlab/gonomics/exception"
)

func imputeUsage(imputeFlags *flag.FlagSet) {
	fmt.Print(
		"impute - launch beagle imputation against a tandem repeat reference panel\n" +
			"\tWrites <name>.aou.json and <name>.options.aou.json and submits them with cromshell.\n\n" +
			"Usage:\n" +
			"  aoutools impute [options] -name CBL -vcf gs://bucket/CBL.vcf.gz\n\n" +
			"Options:\n")
	imputeFlags.PrintDefaults()
}

func runImpute(args []string) {
	var err error
	imputeFlags := flag.NewFlagSet("impute", flag.ExitOnError)

	name := imputeFlags.String("name", "", "Name of the imputation job. Used as the output prefix.")
	vcf := imputeFlags.String("vcf", "", "Genotype vcf to impute.")
	refGenome := imputeFlags.String("refGenome", impute.DefaultRefGenome, "Reference panel vcf.")
	refGenomeIndex := imputeFlags.String("refGenomeIndex", impute.DefaultRefGenomeIndex, "Index of the reference panel vcf.")
	wdl := imputeFlags.String("wdl", "", "Beagle workflow. Default: beagle_wdl from aoutools.yaml, or ../wdl/beagle.wdl")
	copyOutputs := imputeFlags.Bool("copyOutputs", false, "Copy final workflow outputs to $WORKSPACE_BUCKET/<name>.")
	dryrun := imputeFlags.Bool("dryrun", false, "Write the json files and print the submit command without running it.")
	verbose := imputeFlags.Bool("v", false, "Verbose logging.")

	err = imputeFlags.Parse(args)
	exception.PanicOnErr(err)
	imputeFlags.Usage = func() { imputeUsage(imputeFlags) }

	if *name == "" || *vcf == "" {
		imputeFlags.Usage()
		errExit("\nERROR: must have inputs for -name and -vcf")
	}

	cfg := workspace(*verbose)
	job := impute.Job{
		Name:           *name,
		Vcf:            *vcf,
		RefGenome:      *refGenome,
		RefGenomeIndex: *refGenomeIndex,
		Wdl:            *wdl,
		CopyOutputs:    *copyOutputs,
	}
	if !*dryrun {
		if err = shell.LookPath(cfg.Cromshell, cfg.Gcloud); err != nil {
			errExit("ERROR: " + err.Error())
		}
	}
	if err = impute.Launch(job, cfg, shell.New(*dryrun)); err != nil {
		errExit("ERROR: " + err.Error())
	}
}
