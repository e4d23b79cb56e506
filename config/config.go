// Package config gathers the workspace environment and the locations of the
// external programs used by aoutools.
//
// Values are read, lowest priority first, from built-in defaults, an optional
// aoutools.yaml in the working directory or $HOME/.config/, and the
// workbench environment variables.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// AncestryPredPath is the controlled-tier location of the v7 ancestry predictions.
const AncestryPredPath = "gs://fc-aou-datasets-controlled/v7/wgs/short_read/snpindel/aux/ancestry/ancestry_preds.tsv"

// Config holds everything the tools need from the environment.
type Config struct {
	WorkspaceBucket string // WORKSPACE_BUCKET
	GoogleProject   string // GOOGLE_PROJECT

	Gsutil    string
	Gcloud    string
	Cromshell string
	Tabix     string
	Python    string
	Plink2    string

	HailScript      string // python entry point that runs the hail association test
	HailMatrixTable string // WGS_ACAF_THRESHOLD_SPLIT_HAIL_PATH
	AncestryPreds   string
	BeagleWdl       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gsutil_exec", "gsutil")
	v.SetDefault("gcloud_exec", "gcloud")
	v.SetDefault("cromshell_exec", "cromshell")
	v.SetDefault("tabix_exec", "tabix")
	v.SetDefault("python_exec", "python3")
	v.SetDefault("plink2_exec", "plink2")
	v.SetDefault("hail_script", "hail_gwas.py")
	v.SetDefault("ancestry_preds", AncestryPredPath)
	v.SetDefault("beagle_wdl", "../wdl/beagle.wdl")
}

// Load reads the configuration. A missing aoutools.yaml is not an error.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("aoutools")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")              // working directory first
	v.AddConfigPath("$HOME/.config/") // then ~/.config
	setDefaults(v)

	// BindEnv only errors when called without a key.
	_ = v.BindEnv("workspace_bucket", "WORKSPACE_BUCKET")
	_ = v.BindEnv("google_project", "GOOGLE_PROJECT")
	_ = v.BindEnv("hail_mt_path", "WGS_ACAF_THRESHOLD_SPLIT_HAIL_PATH")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, errors.Wrap(err, "reading aoutools config")
		}
	}

	return Config{
		WorkspaceBucket: v.GetString("workspace_bucket"),
		GoogleProject:   v.GetString("google_project"),
		Gsutil:          v.GetString("gsutil_exec"),
		Gcloud:          v.GetString("gcloud_exec"),
		Cromshell:       v.GetString("cromshell_exec"),
		Tabix:           v.GetString("tabix_exec"),
		Python:          v.GetString("python_exec"),
		Plink2:          v.GetString("plink2_exec"),
		HailScript:      v.GetString("hail_script"),
		HailMatrixTable: v.GetString("hail_mt_path"),
		AncestryPreds:   v.GetString("ancestry_preds"),
		BeagleWdl:       v.GetString("beagle_wdl"),
	}, nil
}

// RequireWorkspace checks that the workbench environment is present.
func (c Config) RequireWorkspace() error {
	if c.WorkspaceBucket == "" {
		return errors.New("WORKSPACE_BUCKET is not set")
	}
	if c.GoogleProject == "" {
		return errors.New("GOOGLE_PROJECT is not set")
	}
	return nil
}
