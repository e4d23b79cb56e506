package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dasnellings/aouTools/gwas"
	"github.com/dasnellings/aouTools/shell"
	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/exception"
)

func gwasUsage(gwasFlags *flag.FlagSet) {
	fmt.Print(
		"gwas - run a GWAS on a phenotype from the workspace bucket or a local csv\n" +
			"\tPCs and samples are merged in, the phenotype is optionally normalized,\n" +
			"\tand the association test is run by hail or plink2.\n\n" +
			"Usage:\n" +
			"  aoutools gwas [options] -phenotype ALT\n" +
			"  aoutools gwas [options] -phenotype mydata/ldl.csv -method plink2 -genotypes acaf/chr11\n\n" +
			"Hail:\n" +
			"  -method hail runs the python script set by hail_script in aoutools.yaml\n" +
			"  (default hail_gwas.py) as:\n" +
			"    python3 <script> --phenocovar <tsv> --covars <c1,c2,...> --mt <matrix table>\n" +
			"      --sample-call-rate <f> --variant-call-rate <f> --maf <f> --hwe <f> --gq <n>\n" +
			"      --out <prefix>.hail.tsv [--region chr:start-end]\n" +
			"  The phenocovar tsv has person_id, phenotype and the covariate columns.\n" +
			"  The script must write a tab-separated table with the header\n" +
			"    chrom  pos  beta  standard_error  p_value\n" +
			"  Rows with a non-numeric p_value are skipped.\n\n" +
			"Options:\n")
	gwasFlags.PrintDefaults()
}

func runGwas(args []string) {
	var err error
	gwasFlags := flag.NewFlagSet("gwas", flag.ExitOnError)

	phenotype := gwasFlags.String("phenotype", "", "Phenotype csv with person_id and phenotype columns, or the name of a phenotype in $WORKSPACE_BUCKET/phenotypes.")
	method := gwasFlags.String("method", "hail", "GWAS method. Options: "+strings.Join(gwas.Methods, ","))
	samples := gwasFlags.String("samples", "", "Csv of sample IDs (and optionally sex) to keep. Default: $WORKSPACE_BUCKET/samples/passing_samples_v7.csv")
	region := gwasFlags.String("region", "", "chr:start-end to restrict to. Default is genome-wide.")
	numPCs := gwasFlags.Int("numPCs", gwas.MaxPCs, "Number of PCs to use as covariates.")
	ptCovars := gwasFlags.String("ptcovars", "age", "Comma-separated list of phenotype-specific covariates.")
	sharedCovars := gwasFlags.String("sharedcovars", gwas.SexColumn, "Comma-separated list of shared covariates (besides PCs).")
	plot := gwasFlags.Bool("plot", false, "Save Manhattan and QQ plots next to the results.")
	asciiPlot := gwasFlags.Bool("asciiPlot", false, "Print a Manhattan plot to the terminal.")
	norm := gwasFlags.String("norm", "", "Normalize the phenotype. Options: "+strings.Join(gwas.NormMethods, ","))
	normBySex := gwasFlags.Bool("normBySex", false, "Apply the normalization within each sex separately.")
	sampleCallRate := gwasFlags.Float64("sampleCallRate", gwas.DefaultFilters.SampleCallRate, "Minimum sample call rate.")
	variantCallRate := gwasFlags.Float64("variantCallRate", gwas.DefaultFilters.VariantCallRate, "Minimum variant call rate.")
	maf := gwasFlags.Float64("maf", gwas.DefaultFilters.MAF, "Minimum minor allele frequency.")
	hwe := gwasFlags.Float64("hwe", gwas.DefaultFilters.HWE, "Hardy-Weinberg equilibrium p-value cutoff.")
	gq := gwasFlags.Int("gq", gwas.DefaultFilters.GQ, "Minimum genotype quality (hail only).")
	genotypes := gwasFlags.String("genotypes", "", "plink2 pfile prefix. Required for -method plink2.")
	outDir := gwasFlags.String("o", ".", "Directory for downloads and outputs.")
	verbose := gwasFlags.Bool("v", false, "Verbose logging.")

	err = gwasFlags.Parse(args)
	exception.PanicOnErr(err)
	gwasFlags.Usage = func() { gwasUsage(gwasFlags) }

	if *phenotype == "" {
		gwasFlags.Usage()
		errExit("\nERROR: must have input for -phenotype")
	}

	opts := gwas.Options{
		Phenotype:    *phenotype,
		Method:       *method,
		Samples:      *samples,
		Region:       *region,
		NumPCs:       *numPCs,
		PtCovars:     gwas.SplitList(*ptCovars),
		SharedCovars: gwas.SplitList(*sharedCovars),
		Norm:         *norm,
		NormBySex:    *normBySex,
		Filters: gwas.Filters{
			SampleCallRate:  *sampleCallRate,
			VariantCallRate: *variantCallRate,
			MAF:             *maf,
			HWE:             *hwe,
			GQ:              *gq,
		},
		Genotypes:   *genotypes,
		Plot:        *plot,
		AsciiPlot:   *asciiPlot,
		WorkDir:     *outDir,
		CommandLine: strings.Join(os.Args, " "),
	}
	if err = opts.Validate(); err != nil {
		errExit("ERROR: " + err.Error())
	}

	cfg := workspace(*verbose)
	engineExec := cfg.Python
	if opts.Method == "plink2" {
		engineExec = cfg.Plink2
	}
	if err = shell.LookPath(engineExec, cfg.Gsutil); err != nil {
		errExit("ERROR: " + err.Error())
	}
	outfile, err := gwas.Run(opts, cfg, shell.New(false))
	if err != nil {
		errExit("ERROR: " + err.Error())
	}
	log.Printf("results written to %s", outfile)
}
