package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dasnellings/aouTools/config"
	log "github.com/sirupsen/logrus"
)

const version string = "0.0.1"
const gonomicsVersion string = "1.0.1-0.20240426183757-e6c6ab634c20"

type subcommand struct {
	name     string
	function func(args []string)
	blurb    string
}

// SubCommands contains all valid subcommands.
var SubCommands = []*subcommand{
	{"gwas", runGwas, "run a GWAS on a workbench phenotype"},
	{"impute", runImpute, "launch beagle imputation with cromshell"},
	{"concat", runConcat, "merge and upload per-batch vcf shards"},
}

func usage() {
	s := new(strings.Builder)
	s.WriteString(
		"Program: aoutools (tools for running analyses on the All of Us workbench)\n" +
			"Version: " + version + " (gonomics " + gonomicsVersion + ")\n" +
			"\nUsage:\taoutools <command> [options]\n\n" +
			"Commands:\n")

	w := tabwriter.NewWriter(s, 0, 8, 5, '\t', tabwriter.AlignRight)
	for i := range SubCommands {
		fmt.Fprintf(w, "\t%s\t%s\n", SubCommands[i].name, SubCommands[i].blurb)
	}
	w.Flush()
	s.WriteString("\nEnvironment:\n" +
		"\tWORKSPACE_BUCKET and GOOGLE_PROJECT must be set. Executable paths may be\n" +
		"\toverridden in ./aoutools.yaml or ~/.config/aoutools.yaml.\n")
	fmt.Print(s.String())
}

// commandMap builds a map of possible subcommands keyed on the name of the subcommand
func commandMap() map[string]func(args []string) {
	m := make(map[string]func(args []string))
	for i := range SubCommands {
		m[SubCommands[i].name] = SubCommands[i].function
	}
	return m
}

func main() {
	flag.Usage = usage
	flag.Parse()

	command := commandMap()[flag.Arg(0)]

	if command == nil {
		flag.Usage()
		return
	}

	command(flag.Args()[1:])
}

func errExit(err string) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// workspace loads the configuration and exits unless the workbench environment is set.
func workspace(verbose bool) config.Config {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	cfg, err := config.Load()
	if err != nil {
		errExit("ERROR: " + err.Error())
	}
	if err = cfg.RequireWorkspace(); err != nil {
		errExit("ERROR: " + err.Error())
	}
	log.Debugf("workspace bucket %s, project %s", cfg.WorkspaceBucket, cfg.GoogleProject)
	return cfg
}
