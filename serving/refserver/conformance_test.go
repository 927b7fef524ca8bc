package refserver_test

import (
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserving/mvbench/serving"
	servinggrpc "github.com/aiserving/mvbench/serving/grpc"
	"github.com/aiserving/mvbench/serving/refserver"
	servingrest "github.com/aiserving/mvbench/serving/rest"
)

const (
	modelName  = "face_detection_multi_version"
	inputName  = "data"
	outputName = "detection_out"

	callTimeout = 10 * time.Second
)

var (
	inputShape = []int64{1, 3, 300, 300}

	// distinct per-version output shapes make version resolution observable
	outputShapes = map[int64][]int64{
		1: {1, 1, 200, 7},
		2: {1, 1, 100, 7},
	}
)

func newFixtureServer() *refserver.Server {
	srv := refserver.New()
	for version, outShape := range outputShapes {
		srv.AddModelVersion(modelName, version, refserver.ModelSpec{
			Inputs: map[string]serving.TensorMetadata{
				inputName: {DataType: "DT_FLOAT", Shape: inputShape},
			},
			Outputs: map[string]serving.TensorMetadata{
				outputName: {DataType: "DT_FLOAT", Shape: outShape},
			},
		})
	}
	return srv
}

// startBindings serves one fixture server over both transports and returns
// a connected client per binding.
func startBindings(t *testing.T) map[string]serving.Client {
	t.Helper()

	srv := newFixtureServer()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := srv.ServeGRPC(lis)
	t.Cleanup(gs.Stop)

	grpcClient, err := servinggrpc.NewClient(lis.Addr().String(), nil, callTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = grpcClient.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	restClient := servingrest.NewClient(strings.TrimPrefix(ts.URL, "http://"), nil, callTimeout)
	t.Cleanup(func() { _ = restClient.Close() })

	return map[string]serving.Client{
		"grpc": grpcClient,
		"rest": restClient,
	}
}

func onesRequest(version *int64) *serving.InferRequest {
	input := serving.Tensor{Shape: inputShape}
	input.Values = make([]float32, input.NumElements())
	for i := range input.Values {
		input.Values[i] = 1
	}
	return &serving.InferRequest{
		Model:   modelName,
		Version: version,
		Inputs:  map[string]serving.Tensor{inputName: input},
	}
}

// versionCases covers explicit versions and the default selection. With no
// version specified the endpoint must resolve to the highest AVAILABLE
// version, which is 2 in this fixture.
func versionCases() []struct {
	name     string
	version  *int64
	resolved int64
} {
	return []struct {
		name     string
		version  *int64
		resolved int64
	}{
		{"version 1", serving.Version(1), 1},
		{"version 2", serving.Version(2), 2},
		{"no version specified", nil, 2},
	}
}

func TestRunInference(t *testing.T) {
	clients := startBindings(t)

	for binding, client := range clients {
		for _, tc := range versionCases() {
			t.Run(binding+"/"+tc.name, func(t *testing.T) {
				resp, err := client.Infer(context.Background(), onesRequest(tc.version))
				require.NoError(t, err)

				assert.Equal(t, modelName, resp.Model)
				assert.Equal(t, tc.resolved, resp.Version)

				out, ok := resp.Outputs[outputName]
				require.True(t, ok)
				assert.Equal(t, outputShapes[tc.resolved], out.Shape)
				assert.Len(t, out.Values, int(out.NumElements()))
			})
		}
	}
}

func TestGetModelMetadata(t *testing.T) {
	clients := startBindings(t)

	for binding, client := range clients {
		for _, tc := range versionCases() {
			t.Run(binding+"/"+tc.name, func(t *testing.T) {
				meta, err := client.Metadata(context.Background(), modelName, tc.version)
				require.NoError(t, err)

				assert.Equal(t, modelName, meta.Name)
				assert.Equal(t, tc.resolved, meta.Version)
				assert.Equal(t, inputShape, meta.Inputs[inputName].Shape)
				assert.Equal(t, "DT_FLOAT", meta.Inputs[inputName].DataType)
				assert.Equal(t, outputShapes[tc.resolved], meta.Outputs[outputName].Shape)
			})
		}
	}
}

func TestGetModelStatus(t *testing.T) {
	clients := startBindings(t)

	for binding, client := range clients {
		for _, tc := range versionCases() {
			t.Run(binding+"/"+tc.name, func(t *testing.T) {
				statuses, err := client.Status(context.Background(), modelName, tc.version)
				require.NoError(t, err)

				if tc.version == nil {
					// unlike inference and metadata, an unversioned status
					// request reports every tracked version
					require.Len(t, statuses, 2)
				} else {
					require.Len(t, statuses, 1)
					assert.Equal(t, *tc.version, statuses[0].Version)
				}

				for _, vs := range statuses {
					assert.Equal(t, serving.StateAvailable, vs.State)
					assert.Equal(t, serving.ErrorCodeOK, vs.Status.ErrorCode)
					assert.Equal(t, serving.StateOKMessage, vs.Status.ErrorMessage)
				}
			})
		}
	}
}

func TestNonExistentVersion(t *testing.T) {
	clients := startBindings(t)
	missing := serving.Version(99)

	for binding, client := range clients {
		t.Run(binding, func(t *testing.T) {
			_, err := client.Infer(context.Background(), onesRequest(missing))
			assert.ErrorIs(t, err, serving.ErrVersionNotFound, "inference")

			_, err = client.Metadata(context.Background(), modelName, missing)
			assert.ErrorIs(t, err, serving.ErrVersionNotFound, "metadata")

			_, err = client.Status(context.Background(), modelName, missing)
			assert.ErrorIs(t, err, serving.ErrVersionNotFound, "status")
		})
	}
}

func TestUnknownModel(t *testing.T) {
	clients := startBindings(t)

	for binding, client := range clients {
		t.Run(binding, func(t *testing.T) {
			req := onesRequest(nil)
			req.Model = "no_such_model"

			_, err := client.Infer(context.Background(), req)
			assert.ErrorIs(t, err, serving.ErrVersionNotFound)
		})
	}
}

// TestTransportEquivalence checks that both bindings produce observably
// identical results for the same logical request: resolved version, output
// shape, and status fields.
func TestTransportEquivalence(t *testing.T) {
	clients := startBindings(t)
	grpcClient, restClient := clients["grpc"], clients["rest"]

	for _, tc := range versionCases() {
		t.Run(tc.name, func(t *testing.T) {
			grpcInfer, err := grpcClient.Infer(context.Background(), onesRequest(tc.version))
			require.NoError(t, err)
			restInfer, err := restClient.Infer(context.Background(), onesRequest(tc.version))
			require.NoError(t, err)

			assert.Equal(t, grpcInfer.Version, restInfer.Version)
			assert.Equal(t, grpcInfer.Outputs[outputName].Shape, restInfer.Outputs[outputName].Shape)

			grpcMeta, err := grpcClient.Metadata(context.Background(), modelName, tc.version)
			require.NoError(t, err)
			restMeta, err := restClient.Metadata(context.Background(), modelName, tc.version)
			require.NoError(t, err)

			assert.Equal(t, grpcMeta, restMeta)

			grpcStatus, err := grpcClient.Status(context.Background(), modelName, tc.version)
			require.NoError(t, err)
			restStatus, err := restClient.Status(context.Background(), modelName, tc.version)
			require.NoError(t, err)

			assert.Equal(t, grpcStatus, restStatus)
		})
	}
}

// TestStatusReflectsLifecycle stages a LOADING version and checks it shows
// up in unversioned status without becoming eligible for default
// resolution.
func TestStatusReflectsLifecycle(t *testing.T) {
	srv := newFixtureServer()
	srv.Registry().Add(modelName, 3, serving.StateLoading)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := servingrest.NewClient(strings.TrimPrefix(ts.URL, "http://"), nil, callTimeout)
	t.Cleanup(func() { _ = client.Close() })

	statuses, err := client.Status(context.Background(), modelName, nil)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, serving.StateLoading, statuses[2].State)

	resp, err := client.Infer(context.Background(), onesRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Version, "LOADING version must not win default resolution")
}

func ExamplePredictURI() {
	fmt.Println(servingrest.PredictURI(modelName, nil))
	fmt.Println(servingrest.PredictURI(modelName, serving.Version(1)))
	// Output:
	// /v1/models/face_detection_multi_version:predict
	// /v1/models/face_detection_multi_version/versions/1:predict
}
