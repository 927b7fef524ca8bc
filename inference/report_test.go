package inference

import (
	"bytes"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStatisticsKnownDistribution(t *testing.T) {
	times := []float64{10.0, 20.0, 30.0, 40.0, 50.0}

	var buf bytes.Buffer
	require.NoError(t, ReportStatistics(&buf, times, 4))

	expected := "\nprocessing time for all iterations\n" +
		"average time: 30.00 ms; average speed: 133.33 fps\n" +
		"median time: 30.00 ms; median speed: 133.33 fps\n" +
		"max time: 50.00 ms; min speed: 80.00 fps\n" +
		"min time: 10.00 ms; max speed: 400.00 fps\n" +
		"time percentile 90: 46.00 ms; speed percentile 90: 86.96 fps\n" +
		"time percentile 50: 30.00 ms; speed percentile 50: 133.33 fps\n" +
		"time standard deviation: 14.14\n" +
		"time variance: 200.00\n"
	assert.Equal(t, expected, buf.String())
}

func TestReportStatisticsInputOrderIrrelevant(t *testing.T) {
	var inOrder, shuffled bytes.Buffer

	require.NoError(t, ReportStatistics(&inOrder, []float64{10, 20, 30, 40, 50}, 4))
	require.NoError(t, ReportStatistics(&shuffled, []float64{40, 10, 50, 30, 20}, 4))

	assert.Equal(t, inOrder.String(), shuffled.String())
}

func TestPercentile50MatchesMedian(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{1, 2, 3, 10, 101, 1000} {
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.Float64() * 500
		}

		group := newStatGroup(uint64(n))
		for _, v := range values {
			group.push(v, false)
		}
		sorted := group.samples()
		sort.Float64s(sorted)

		assert.InDelta(t, medianOf(sorted), percentileOf(sorted, 50), 1e-9, "n=%d", n)
		assert.InDelta(t, group.median(), percentileOf(sorted, 50), 1e-9, "n=%d", n)
	}
}

func TestThroughputMonotonicInTime(t *testing.T) {
	// higher latency must always mean lower derived throughput
	batchSize := 8
	prev := 1000 * float64(batchSize) / 1.0
	for _, timeMs := range []float64{2.0, 5.5, 17.3, 100.0, 2500.0} {
		speed := 1000 * float64(batchSize) / timeMs
		assert.Less(t, speed, prev, "time %.1f", timeMs)
		prev = speed
	}
}

func TestReportStatisticsEmptySamples(t *testing.T) {
	var buf bytes.Buffer

	err := ReportStatistics(&buf, nil, 4)
	require.ErrorIs(t, err, ErrNoSamples)
	assert.Zero(t, buf.Len(), "no partial report on error")
}

func TestReportStatisticsBadBatchSize(t *testing.T) {
	var buf bytes.Buffer

	err := ReportStatistics(&buf, []float64{1.0}, 0)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

type countingWriter struct {
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("sink closed")
}

func TestReportStatisticsSingleWrite(t *testing.T) {
	// the report goes out in one Write so a failing sink never sees a
	// partial report
	w := &countingWriter{}

	err := ReportStatistics(w, []float64{5, 6, 7}, 1)
	require.Error(t, err)
	assert.Equal(t, 1, w.writes)
}
