package concat

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/vcf"
)

// VerifySummary describes a merged vcf that passed Verify.
type VerifySummary struct {
	Samples int
	Records int
	Chroms  []string
}

// Check reads a merged vcf and reports an error if the records of a
// chromosome are not contiguous or not sorted by position.
func Check(file string) (VerifySummary, error) {
	var ans VerifySummary
	if _, err := os.Stat(file); err != nil {
		return ans, errors.Wrap(err, "verifying merged vcf")
	}
	records, header := vcf.GoReadToChan(file)
	ans.Samples = len(header.Samples)

	var err error
	seen := make(map[string]bool)
	var chrom string
	var last int
	for v := range records {
		if err != nil {
			continue // drain so the reader can finish
		}
		ans.Records++
		if v.Chr != chrom {
			if seen[v.Chr] {
				err = errors.Errorf("%s: %s records are split by other chromosomes (at %s:%d)", file, v.Chr, v.Chr, v.Pos)
				continue
			}
			seen[v.Chr] = true
			ans.Chroms = append(ans.Chroms, v.Chr)
			chrom, last = v.Chr, v.Pos
			continue
		}
		if v.Pos < last {
			err = errors.Errorf("%s: %s:%d comes after %s:%d", file, v.Chr, v.Pos, chrom, last)
			continue
		}
		last = v.Pos
	}
	return ans, err
}

// Verify is Check with the summary logged.
func Verify(file string) error {
	sum, err := Check(file)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file":    file,
		"samples": sum.Samples,
		"records": sum.Records,
		"chroms":  len(sum.Chroms),
	}).Info("merged vcf is sorted")
	return nil
}
