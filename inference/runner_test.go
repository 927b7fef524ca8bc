package inference

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserving/mvbench/serving"
	servinggrpc "github.com/aiserving/mvbench/serving/grpc"
	"github.com/aiserving/mvbench/serving/refserver"
)

// NewBenchmarkRunner registers command line flags, so it can only run once
// per test binary.
func TestBenchmarkRunnerAgainstMockEndpoint(t *testing.T) {
	srv := refserver.New()
	srv.AddModelVersion("bench_model", 1, refserver.ModelSpec{
		Inputs: map[string]serving.TensorMetadata{
			"input": {DataType: "DT_FLOAT", Shape: []int64{1, 4}},
		},
		Outputs: map[string]serving.TensorMetadata{
			"output": {DataType: "DT_FLOAT", Shape: []int64{1, 2}},
		},
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := srv.ServeGRPC(lis)
	t.Cleanup(gs.Stop)

	runner := NewBenchmarkRunner()
	runner.SetRequests(100)

	newClient := func() (serving.Client, error) {
		return servinggrpc.NewClient(lis.Addr().String(), nil, 5*time.Second)
	}
	request := &serving.InferRequest{
		Model:  "bench_model",
		Inputs: map[string]serving.Tensor{"input": {Shape: []int64{1, 4}, Values: []float32{1, 1, 1, 1}}},
	}
	newRequest := func(int, uint64) *serving.InferRequest { return request }

	require.NoError(t, runner.Run("RPC inference", newClient, newRequest))

	assert.Equal(t, uint64(100), atomic.LoadUint64(&runner.inferenceCount))
	assert.Len(t, runner.sp.allSamples(), 100)
}
