package inference

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatGroupPush(t *testing.T) {
	g := newStatGroup(4)
	for _, v := range []float64{12.0, 4.0, 8.0, 16.0} {
		g.push(v, false)
	}

	assert.Equal(t, int64(4), g.count)
	assert.Equal(t, 4.0, g.min)
	assert.Equal(t, 16.0, g.max)
	assert.InDelta(t, 10.0, g.mean, 1e-9)
	assert.InDelta(t, 40.0, g.sum, 1e-9)
	assert.Equal(t, int64(0), g.timedOutCount)
}

func TestStatGroupMedian(t *testing.T) {
	odd := newStatGroup(3)
	for _, v := range []float64{30, 10, 20} {
		odd.push(v, false)
	}
	assert.Equal(t, 20.0, odd.median())

	even := newStatGroup(4)
	for _, v := range []float64{40, 10, 30, 20} {
		even.push(v, false)
	}
	assert.Equal(t, 25.0, even.median())
}

func TestStatGroupTimedOutCount(t *testing.T) {
	g := newStatGroup(3)
	g.push(1.0, false)
	g.push(2.0, true)
	g.push(3.0, true)

	assert.Equal(t, int64(2), g.timedOutCount)
	assert.Equal(t, int64(3), g.count)
}

func TestStatGroupGrowsPastInitialSize(t *testing.T) {
	g := newStatGroup(1)
	for i := 0; i < 10; i++ {
		g.push(float64(i), false)
	}

	assert.Equal(t, int64(10), g.count)
	assert.Len(t, g.samples(), 10)
}

func TestWriteStatGroupMapOrdersKeys(t *testing.T) {
	groups := map[string]*statGroup{}
	for _, k := range []string{"zeta", "alpha", "mid"} {
		g := newStatGroup(1)
		g.push(1.0, false)
		groups[k] = g
	}

	var buf bytes.Buffer
	require.NoError(t, writeStatGroupMap(&buf, groups))

	out := buf.String()
	assert.Less(t, indexOf(t, out, "alpha"), indexOf(t, out, "mid"))
	assert.Less(t, indexOf(t, out, "mid"), indexOf(t, out, "zeta"))
}

func indexOf(t *testing.T, s, sub string) int {
	idx := bytes.Index([]byte(s), []byte(sub))
	require.GreaterOrEqual(t, idx, 0, "expected %q in output", sub)
	return idx
}
