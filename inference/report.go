package inference

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

var (
	// ErrNoSamples means statistics were requested over an empty sample set.
	ErrNoSamples = errors.New("no latency samples collected")

	errBadBatchSize = errors.New("batch size must be positive")
)

// ReportStatistics writes the standard per-run latency summary for a set of
// processing times (milliseconds) and the batch size used per request.
//
// The label strings and the ms/fps pairing are a log-scraping contract and
// must not change. Note the inversion: max time pairs with min speed and
// min time with max speed, since higher latency means lower throughput.
// Every displayed value is rounded to 2 digits independently; speeds are
// derived from the unrounded time statistic so rounding error never
// compounds. The whole report is formatted before a single byte is written,
// so a failure never produces a partial report.
func ReportStatistics(w io.Writer, processingTimes []float64, batchSize int) error {
	if len(processingTimes) == 0 {
		return ErrNoSamples
	}
	if batchSize <= 0 {
		return errBadBatchSize
	}

	sorted := make([]float64, len(processingTimes))
	copy(sorted, processingTimes)
	sort.Float64s(sorted)

	avg := meanOf(sorted)
	med := medianOf(sorted)
	maxT := sorted[len(sorted)-1]
	minT := sorted[0]
	p90 := percentileOf(sorted, 90)
	p50 := percentileOf(sorted, 50)
	stdDev, variance := populationSpread(sorted, avg)

	speed := func(timeMs float64) float64 {
		return 1000 * float64(batchSize) / timeMs
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\nprocessing time for all iterations\n")
	fmt.Fprintf(&buf, "average time: %.2f ms; average speed: %.2f fps\n", avg, speed(avg))
	fmt.Fprintf(&buf, "median time: %.2f ms; median speed: %.2f fps\n", med, speed(med))
	fmt.Fprintf(&buf, "max time: %.2f ms; min speed: %.2f fps\n", maxT, speed(maxT))
	fmt.Fprintf(&buf, "min time: %.2f ms; max speed: %.2f fps\n", minT, speed(minT))
	fmt.Fprintf(&buf, "time percentile 90: %.2f ms; speed percentile 90: %.2f fps\n", p90, speed(p90))
	fmt.Fprintf(&buf, "time percentile 50: %.2f ms; speed percentile 50: %.2f fps\n", p50, speed(p50))
	fmt.Fprintf(&buf, "time standard deviation: %.2f\n", stdDev)
	fmt.Fprintf(&buf, "time variance: %.2f\n", variance)

	_, err := w.Write(buf.Bytes())
	return err
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// medianOf expects values to be sorted.
func medianOf(values []float64) float64 {
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2.0
	}
	return values[n/2]
}

// percentileOf expects values to be sorted and interpolates linearly
// between closest ranks, so percentileOf(v, 50) == medianOf(v).
func percentileOf(values []float64, p float64) float64 {
	n := len(values)
	if n == 1 {
		return values[0]
	}

	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	if lower >= n-1 {
		return values[n-1]
	}
	frac := rank - float64(lower)
	return values[lower] + frac*(values[lower+1]-values[lower])
}

// populationSpread returns the population (ddof = 0) standard deviation and
// variance around the given mean.
func populationSpread(values []float64, mean float64) (stdDev, variance float64) {
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance), variance
}
