package inference

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/VividCortex/gohistogram"
)

// Stat represents one statistical measurement, typically used to store the
// latency of a single inference round trip.
type Stat struct {
	label    []byte
	value    float64
	timedOut bool
}

var statPool = &sync.Pool{
	New: func() interface{} {
		return &Stat{
			label:    make([]byte, 0, 256),
			value:    0.0,
			timedOut: false,
		}
	},
}

// GetStat returns a Stat for use from a pool
func GetStat() *Stat {
	return statPool.Get().(*Stat).reset()
}

// Init safely initializes a Stat while minimizing heap allocations.
func (s *Stat) Init(label []byte, value float64, timedOut bool) *Stat {
	s.label = s.label[:0] // clear
	s.label = append(s.label, label...)
	s.value = value
	s.timedOut = timedOut
	return s
}

func (s *Stat) reset() *Stat {
	s.label = s.label[:0]
	s.value = 0.0
	s.timedOut = false
	return s
}

// statGroup collects simple streaming statistics plus the full value set,
// so exact order statistics stay available for the final report.
type statGroup struct {
	min  float64
	max  float64
	mean float64
	sum  float64

	values []float64

	// used for stddev calculations
	m      float64
	s      float64
	stdDev float64

	count         int64
	timedOutCount int64

	latencySketch *gohistogram.NumericHistogram
}

// newStatGroup returns a new statGroup with an initial size
func newStatGroup(size uint64) *statGroup {
	return &statGroup{
		values:        make([]float64, size),
		count:         0,
		timedOutCount: 0,
		latencySketch: gohistogram.NewHistogram(1000),
	}
}

// push updates a statGroup with a new value.
func (s *statGroup) push(n float64, timedOut bool) {
	s.latencySketch.Add(n)
	if timedOut {
		s.timedOutCount++
	}
	if s.count == 0 {
		s.min = n
		s.max = n
		s.mean = n
		s.count = 1
		s.sum = n

		s.m = n
		s.s = 0.0
		s.stdDev = 0.0
		if len(s.values) > 0 {
			s.values[0] = n
		} else {
			s.values = append(s.values, n)
		}
		return
	}

	if n < s.min {
		s.min = n
	}
	if n > s.max {
		s.max = n
	}

	s.sum += n

	// constant-space mean update:
	sum := s.mean*float64(s.count) + n
	s.mean = sum / float64(s.count+1)
	if int(s.count) == len(s.values) {
		s.values = append(s.values, n)
	} else {
		s.values[s.count] = n
	}

	s.count++

	oldM := s.m
	s.m += (n - oldM) / float64(s.count)
	s.s += (n - oldM) * (n - s.m)
	s.stdDev = math.Sqrt(s.s / (float64(s.count) - 1.0))
}

// median returns the median value of the statGroup
func (s *statGroup) median() float64 {
	sort.Float64s(s.values[:s.count])
	if s.count == 0 {
		return 0
	} else if s.count%2 == 0 {
		idx := s.count / 2
		return (s.values[idx] + s.values[idx-1]) / 2.0
	} else {
		return s.values[s.count/2]
	}
}

// samples returns a copy of the collected values.
func (s *statGroup) samples() []float64 {
	out := make([]float64, s.count)
	copy(out, s.values[:s.count])
	return out
}

// stringLatencyStatistical makes a simple description of a statGroup.
func (s *statGroup) stringLatencyStatistical() string {
	return fmt.Sprintf("+ Inference execution latency (statistical histogram):\n\tmin: %8.2f ms,  mean: %8.2f ms, q25: %8.2f ms, med(q50): %8.2f ms, q75: %8.2f ms, q99: %8.2f ms, max: %8.2f ms, stddev: %8.2fms, sum: %5.3f sec, count: %d, timedOut count: %d\n",
		s.min, s.mean, s.latencySketch.Quantile(0.25), s.latencySketch.Quantile(0.50), s.latencySketch.Quantile(0.75), s.latencySketch.Quantile(0.99), s.max, s.stdDev, s.sum/1e3, s.count, s.timedOutCount)
}

func (s *statGroup) write(w io.Writer) error {
	_, err := fmt.Fprintln(w, s.stringLatencyStatistical())
	return err
}

// writeStatGroupMap writes a map of statGroups in an ordered fashion by
// key that they are stored by
func writeStatGroupMap(w io.Writer, statGroups map[string]*statGroup) error {
	maxKeyLength := 0
	keys := make([]string, 0, len(statGroups))
	for k := range statGroups {
		if len(k) > maxKeyLength {
			maxKeyLength = len(k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := statGroups[k]
		paddedKey := k
		for len(paddedKey) < maxKeyLength {
			paddedKey += " "
		}

		_, err := fmt.Fprintf(w, "%s:\n", paddedKey)
		if err != nil {
			return err
		}

		err = v.write(w)
		if err != nil {
			return err
		}
	}
	return nil
}
