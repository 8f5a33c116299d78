package deliberation

import (
	"testing"

	"github.com/BaSui01/boardflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positionsWithSupports(supports ...float64) []ParticipantPosition {
	out := make([]ParticipantPosition, len(supports))
	for i, s := range supports {
		out[i] = ParticipantPosition{
			ParticipantID: string(rune('a' + i)),
			Support:       s,
		}
	}
	return out
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		supports []float64
		want     float64
		band     Band
	}{
		{"identical supports", []float64{0.7, 0.7, 0.7}, 1.0, BandFullAgreement},
		{"two parties", []float64{0.5, 0.9}, 0.6, BandWeak},
		{"maximal disagreement", []float64{0.0, 1.0}, 0.0, BandDeadlock},
		{"three spread", []float64{0.2, 0.5, 0.8}, 0.6, BandWeak},
		{"tight cluster", []float64{0.80, 0.85, 0.90}, 1.0 - (0.05+0.10+0.05)/3, BandStrong},
		{"contested middle", []float64{0.3, 0.8}, 0.5, BandContested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			metric, err := Score(positionsWithSupports(tt.supports...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, metric.Score, 1e-9)
			assert.Equal(t, tt.band, metric.Band)
		})
	}
}

func TestScore_InsufficientParticipants(t *testing.T) {
	t.Parallel()

	for _, supports := range [][]float64{{}, {0.5}} {
		_, err := Score(positionsWithSupports(supports...))
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrInsufficientParticipants))
	}
}

func TestClassifyBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		band  Band
	}{
		{1.0, BandFullAgreement},
		{0.95, BandStrong},
		{0.8, BandStrong},
		{0.79, BandWeak},
		{0.6, BandWeak},
		{0.59, BandContested},
		{0.41, BandContested},
		{0.4, BandDeadlock},
		{0.0, BandDeadlock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, classify(tt.score), "score %v", tt.score)
	}
}

func TestDispersionHelpers(t *testing.T) {
	t.Parallel()

	positions := positionsWithSupports(0.2, 0.4, 0.6)
	assert.InDelta(t, 0.4, MeanSupport(positions), 1e-9)
	assert.InDelta(t, 0.1632993162, SupportStdDev(positions), 1e-9)

	assert.Zero(t, MeanSupport(nil))
	assert.Zero(t, SupportStdDev(positionsWithSupports(0.5)))
}

func TestSupportDistances(t *testing.T) {
	t.Parallel()

	distances := SupportDistances(positionsWithSupports(0.2, 0.4, 0.6))
	require.Len(t, distances, 3)
	assert.InDelta(t, 0.2, distances["a"], 1e-9)
	assert.InDelta(t, 0.0, distances["b"], 1e-9)
	assert.InDelta(t, 0.2, distances["c"], 1e-9)

	assert.Empty(t, SupportDistances(nil))
}
