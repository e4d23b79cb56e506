package gwas

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestZscore(t *testing.T) {
	values := []float64{12.1, 15.3, 9.8, 22.4, 18.0, 11.7, 14.2}
	norm, err := Normalize(values, "zscore")
	require.NoError(t, err)
	mean, std := stat.PopMeanStdDev(norm, nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, std, 1e-12)

	// input is untouched
	assert.Equal(t, 12.1, values[0])
}

func TestZscoreNaN(t *testing.T) {
	norm, err := Normalize([]float64{1, math.NaN(), 3}, "zscore")
	require.NoError(t, err)
	assert.InDelta(t, -1, norm[0], 1e-12)
	assert.True(t, math.IsNaN(norm[1]))
	assert.InDelta(t, 1, norm[2], 1e-12)
}

func TestQuantile(t *testing.T) {
	norm, err := Normalize([]float64{3, 1, 2}, "quantile")
	require.NoError(t, err)
	assert.InDelta(t, 0, norm[2], 1e-9)
	assert.Greater(t, norm[0], 5.0)
	assert.Less(t, norm[1], -5.0)
	assert.InDelta(t, norm[0], -norm[1], 1e-6)
}

func TestQuantileTies(t *testing.T) {
	norm, err := Normalize([]float64{2, 1, 2, 3}, "quantile")
	require.NoError(t, err)
	assert.InDelta(t, 0, norm[0], 1e-9)
	assert.InDelta(t, 0, norm[2], 1e-9)
	assert.Less(t, norm[1], norm[0])
	assert.Greater(t, norm[3], norm[0])
}

func TestQuantileMonotonic(t *testing.T) {
	values := make([]float64, 2500)
	for i := range values {
		values[i] = math.Exp(float64(i%997) / 100)
	}
	values[17] = math.NaN()
	norm, err := Normalize(values, "quantile")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(norm[17]))
	for i := range values {
		for _, j := range []int{i + 1, i + 501} {
			if j >= len(values) || i == 17 || j == 17 {
				continue
			}
			if values[i] < values[j] {
				assert.LessOrEqual(t, norm[i], norm[j])
			}
		}
	}
}

// TestQuantileReference checks 1200 values, so 1000 interpolated reference
// quantiles, with a run of twelve ties at 50. Expected values follow
// sklearn's quantile_transform(output_distribution="normal").
func TestQuantileReference(t *testing.T) {
	values := make([]float64, 1200)
	for i := range values {
		values[i] = float64(i*7919%1201) / 10
	}
	for i := 3; i < len(values); i += 100 {
		values[i] = 50
	}
	norm, err := Normalize(values, "quantile")
	require.NoError(t, err)

	tests := []struct {
		idx  int
		want float64
	}{
		{1, 0.25032596366105514},
		{2, -0.8927769224326502},
		{3, -0.20722283341214084},
		{10, 1.54050954967151},
		{500, 0.9870808548824297},
		{777, -0.5796730619662167},
		{1199, 0.899022767319454},
	}
	for _, test := range tests {
		assert.InDelta(t, test.want, norm[test.idx], 1e-9, "value %g", values[test.idx])
	}
	for i := 3; i < len(values); i += 100 {
		assert.Equal(t, norm[3], norm[i], "tied value at %d", i)
	}
	// minimum and maximum land on the clipping bounds
	assert.InDelta(t, -5.199337582605575, norm[0], 1e-6)
	assert.InDelta(t, 5.19933758270342, norm[411], 1e-6)
}

func TestNormalizeUnknown(t *testing.T) {
	_, err := Normalize([]float64{1}, "rank")
	assert.Error(t, err)
	same, err := Normalize([]float64{1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, same)
}

func sexTable() dataframe.DataFrame {
	return dataframe.New(
		series.New([]string{"a", "b", "c", "d", "e", "f"}, series.String, IDColumn),
		series.New([]float64{10, 1, 20, 2, 30, 3}, series.Float, PhenotypeColumn),
		series.New([]int{1, 0, 1, 0, 1, 0}, series.Int, SexColumn),
	)
}

func TestNormalizeBySex(t *testing.T) {
	df := sexTable()
	norm, err := NormalizeBySex(df, PhenotypeColumn, "zscore")
	require.NoError(t, err)

	assert.Equal(t, df.Nrow(), norm.Nrow())
	assert.Equal(t, df.Col(IDColumn).Records(), norm.Col(IDColumn).Records())
	assert.Equal(t, df.Col(SexColumn).Records(), norm.Col(SexColumn).Records())

	got := norm.Col(PhenotypeColumn).Float()
	want := []float64{-1.224744871391589, -1.224744871391589, 0, 0, 1.224744871391589, 1.224744871391589}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "row %d", i)
	}
}

func TestNormalizeBySexBadIndicator(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b"}, series.String, IDColumn),
		series.New([]float64{1, 2}, series.Float, PhenotypeColumn),
		series.New([]float64{1, 2}, series.Float, SexColumn),
	)
	_, err := NormalizeBySex(df, PhenotypeColumn, "zscore")
	assert.EqualError(t, err, "sex_at_birth_Male must be 0 or 1 to normalize by sex, found 2 for b")

	noSex := df.Drop(SexColumn)
	_, err = NormalizeBySex(noSex, PhenotypeColumn, "zscore")
	assert.EqualError(t, err, "normalizing by sex: required column sex_at_birth_Male not found")
}

func TestNormalizeColumn(t *testing.T) {
	df := sexTable()
	norm, err := NormalizeColumn(df, PhenotypeColumn, "quantile")
	require.NoError(t, err)
	assert.Equal(t, df.Names(), norm.Names())
	got := norm.Col(PhenotypeColumn).Float()
	// 1 < 2 < 3 < 10 < 20 < 30
	assert.Less(t, got[1], got[3])
	assert.Less(t, got[3], got[5])
	assert.Less(t, got[5], got[0])
	assert.Less(t, got[0], got[2])
	assert.Less(t, got[2], got[4])

	_, err = NormalizeColumn(df, IDColumn, "zscore")
	assert.EqualError(t, err, "column person_id is not numeric")
}
