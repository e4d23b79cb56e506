package gwas

import (
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxQuantiles    = 1000
	boundsThreshold = 1e-7
	machineEpsilon  = 2.220446049250313e-16
)

// Normalize returns a normalized copy of values. NaN entries stay NaN and are
// left out of the statistics.
//
// "quantile" maps each value through its empirical quantile onto a standard
// normal distribution using at most 1000 reference quantiles; tied values get
// the same output and the extremes are clipped to the normal quantiles of 1e-7
// and 1-1e-7.
//
// "zscore" subtracts the mean and divides by the population standard deviation.
func Normalize(values []float64, method string) ([]float64, error) {
	switch method {
	case "":
		return append([]float64(nil), values...), nil
	case "quantile":
		return quantileNormal(values), nil
	case "zscore":
		return zscore(values), nil
	default:
		return nil, errors.Errorf("unknown normalization %q", method)
	}
}

func finite(values []float64) []float64 {
	ans := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			ans = append(ans, v)
		}
	}
	return ans
}

func zscore(values []float64) []float64 {
	ans := make([]float64, len(values))
	mean, std := stat.PopMeanStdDev(finite(values), nil)
	for i, v := range values {
		ans[i] = (v - mean) / std
	}
	return ans
}

func quantileNormal(values []float64) []float64 {
	ans := make([]float64, len(values))
	sorted := finite(values)
	if len(sorted) == 0 {
		copy(ans, values)
		return ans
	}
	sort.Float64s(sorted)

	n := len(sorted)
	if n > maxQuantiles {
		n = maxQuantiles
	}
	refs := make([]float64, n)
	quantiles := make([]float64, n)
	for i := range refs {
		if n > 1 {
			refs[i] = float64(i) / float64(n-1)
		}
		quantiles[i] = percentile(sorted, refs[i])
		if i > 0 && quantiles[i] < quantiles[i-1] {
			quantiles[i] = quantiles[i-1]
		}
	}

	// interpolating from both ends and averaging puts ties at the middle of their run
	negQuantiles := make([]float64, n)
	negRefs := make([]float64, n)
	for i := range quantiles {
		negQuantiles[i] = -quantiles[n-1-i]
		negRefs[i] = -refs[n-1-i]
	}

	lower, upper := quantiles[0], quantiles[n-1]
	clipLo := distuv.UnitNormal.Quantile(boundsThreshold - machineEpsilon)
	clipHi := distuv.UnitNormal.Quantile(1 - (boundsThreshold - machineEpsilon))
	for i, v := range values {
		if math.IsNaN(v) {
			ans[i] = v
			continue
		}
		p := 0.5 * (interp(v, quantiles, refs) - interp(-v, negQuantiles, negRefs))
		if v+boundsThreshold > upper {
			p = 1
		}
		if v-boundsThreshold < lower {
			p = 0
		}
		z := distuv.UnitNormal.Quantile(p)
		ans[i] = math.Max(clipLo, math.Min(clipHi, z))
	}
	return ans
}

// percentile linearly interpolates between the closest ranks of sorted data.
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// interp evaluates the piecewise linear function through (xp, fp) at x,
// holding the end values outside the range. xp must be non-decreasing.
func interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	j := sort.Search(n, func(i int) bool { return xp[i] > x }) - 1
	return fp[j] + (x-xp[j])*(fp[j+1]-fp[j])/(xp[j+1]-xp[j])
}

// NormalizeColumn replaces a numeric column of df with its normalized values.
func NormalizeColumn(df dataframe.DataFrame, col, method string) (dataframe.DataFrame, error) {
	values, err := floatColumn(df, col)
	if err != nil {
		return df, err
	}
	norm, err := Normalize(values, method)
	if err != nil {
		return df, err
	}
	return replaceColumn(df, col, norm)
}

// NormalizeBySex normalizes col separately within each value of the sex
// indicator. Rows keep their original positions.
func NormalizeBySex(df dataframe.DataFrame, col, method string) (dataframe.DataFrame, error) {
	values, err := floatColumn(df, col)
	if err != nil {
		return df, err
	}
	sex, err := floatColumn(df, SexColumn)
	if err != nil {
		return df, errors.Wrap(err, "normalizing by sex")
	}

	strata := map[float64][]int{0: nil, 1: nil}
	for i, s := range sex {
		if _, ok := strata[s]; !ok {
			return df, errors.Errorf("%s must be 0 or 1 to normalize by sex, found %v for %s",
				SexColumn, s, df.Col(IDColumn).Elem(i).String())
		}
		strata[s] = append(strata[s], i)
	}

	ans := make([]float64, len(values))
	for _, rows := range strata {
		sub := make([]float64, len(rows))
		for i, r := range rows {
			sub[i] = values[r]
		}
		norm, err := Normalize(sub, method)
		if err != nil {
			return df, err
		}
		for i, r := range rows {
			ans[r] = norm[i]
		}
	}
	return replaceColumn(df, col, ans)
}

func floatColumn(df dataframe.DataFrame, col string) ([]float64, error) {
	if err := RequireColumns(df, []string{col}); err != nil {
		return nil, err
	}
	s := df.Col(col)
	if t := s.Type(); t != series.Float && t != series.Int {
		return nil, errors.Errorf("column %s is not numeric", col)
	}
	return s.Float(), nil
}

func replaceColumn(df dataframe.DataFrame, col string, values []float64) (dataframe.DataFrame, error) {
	ans := df.Mutate(series.New(values, series.Float, col))
	if ans.Err != nil {
		return df, errors.Wrapf(ans.Err, "replacing %s", col)
	}
	return ans, nil
}
