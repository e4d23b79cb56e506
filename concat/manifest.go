// Package concat merges the per-region VCF shards of a batch subsetting job
// into one indexed VCF per batch and uploads the results.
package concat

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Manifest keys holding the VCF shards and their indexes.
const (
	VcfArrayKey   = "subset_vcf.vcf_output_array"
	IndexArrayKey = "subset_vcf.vcf_index_array"
)

// Manifest is the outputs json written by cromshell for a finished job. Each
// output array holds one list of files per region.
type Manifest map[string]json.RawMessage

// ReadManifest reads a manifest from a local (optionally gzipped) json file.
func ReadManifest(file string) (Manifest, error) {
	if _, err := os.Stat(file); err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}
	in := fileio.EasyOpen(file)
	var m Manifest
	err := json.NewDecoder(in).Decode(&m)
	closeErr := in.Close()
	exception.PanicOnErr(closeErr)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", file)
	}
	return m, nil
}

// Files flattens the output array stored under key.
func (m Manifest) Files(key string) ([]string, error) {
	raw, ok := m[key]
	if !ok {
		return nil, errors.Errorf("manifest has no %s", key)
	}
	var regions [][]string
	if err := json.Unmarshal(raw, &regions); err != nil {
		return nil, errors.Wrapf(err, "manifest %s is not a list of file lists", key)
	}
	var ans []string
	for _, files := range regions {
		ans = append(ans, files...)
	}
	return ans, nil
}

// nameFields splits a shard name like batch99-chr11-50000000-60000000.vcf.gz on dashes.
func nameFields(file string) []string {
	return strings.Split(path.Base(file), "-")
}

// BatchName is the batch a shard belongs to: the first dash-delimited field of its basename.
func BatchName(file string) string {
	return nameFields(file)[0]
}

// StartCoordinate is the region start encoded in a shard name.
func StartCoordinate(file string) (int, error) {
	fields := nameFields(file)
	if len(fields) < 4 {
		return 0, errors.Errorf("malformed shard name %s: expected batch-chrom-start-end.vcf.gz", file)
	}
	start, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, errors.Errorf("malformed shard name %s: start coordinate %q is not an integer", file, fields[2])
	}
	return start, nil
}

// Batch is every shard of one batch.
type Batch struct {
	Name    string
	Vcfs    []string
	Indexes []string
}

// GroupBatches groups the manifest shards by batch, in the order each batch
// first appears. Every shard name is checked here so a malformed one fails
// before any work is done.
func GroupBatches(m Manifest) ([]Batch, error) {
	vcfs, err := m.Files(VcfArrayKey)
	if err != nil {
		return nil, err
	}
	indexes, err := m.Files(IndexArrayKey)
	if err != nil {
		return nil, err
	}

	var ans []Batch
	pos := make(map[string]int)
	for _, f := range vcfs {
		if _, err = StartCoordinate(f); err != nil {
			return nil, err
		}
		name := BatchName(f)
		i, ok := pos[name]
		if !ok {
			i = len(ans)
			pos[name] = i
			ans = append(ans, Batch{Name: name})
		}
		ans[i].Vcfs = append(ans[i].Vcfs, f)
	}
	for _, f := range indexes {
		i, ok := pos[BatchName(f)]
		if !ok {
			return nil, errors.Errorf("index %s belongs to batch %s, which has no vcfs", f, BatchName(f))
		}
		ans[i].Indexes = append(ans[i].Indexes, f)
	}
	return ans, nil
}

// SortByCoordinate orders shards by their start coordinate. Shards with the
// same start keep their input order.
func SortByCoordinate(files []string) ([]string, error) {
	starts := make(map[string]int, len(files))
	for _, f := range files {
		s, err := StartCoordinate(f)
		if err != nil {
			return nil, err
		}
		starts[f] = s
	}
	ans := append([]string(nil), files...)
	sort.SliceStable(ans, func(i, j int) bool {
		return starts[ans[i]] < starts[ans[j]]
	})
	return ans, nil
}
