// Package serving holds the request/response contract spoken to a
// multi-version model-serving endpoint, independent of transport.
package serving

// ModelVersionState is the lifecycle state of one loaded model version.
type ModelVersionState string

const (
	StateLoading    ModelVersionState = "LOADING"
	StateAvailable  ModelVersionState = "AVAILABLE"
	StateUnloading  ModelVersionState = "UNLOADING"
	StateEnd        ModelVersionState = "END"
	StateLoadFailed ModelVersionState = "LOAD_FAILED"
)

// ErrorCode qualifies a version status entry.
type ErrorCode string

const (
	ErrorCodeOK      ErrorCode = "OK"
	ErrorCodeUnknown ErrorCode = "UNKNOWN"
)

// StateOKMessage is the exact error message an endpoint reports for an
// AVAILABLE version with error code OK. Log scrapers match on it, so it is
// a contract constant rather than free text.
const StateOKMessage = "OK"

// StatusDetail carries the error code and message of a version status entry.
type StatusDetail struct {
	ErrorCode    ErrorCode `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// VersionStatus describes the serving readiness of one model version.
type VersionStatus struct {
	Version int64             `json:"version"`
	State   ModelVersionState `json:"state"`
	Status  StatusDetail      `json:"status"`
}

// TensorMetadata describes one named input or output tensor.
type TensorMetadata struct {
	DataType string  `json:"dtype"`
	Shape    []int64 `json:"shape"`
}

// ModelMetadata is the signature of one resolved model version.
type ModelMetadata struct {
	Name    string                    `json:"name"`
	Version int64                     `json:"version"`
	Inputs  map[string]TensorMetadata `json:"inputs"`
	Outputs map[string]TensorMetadata `json:"outputs"`
}

// Tensor is a dense float tensor in row-major order.
type Tensor struct {
	Shape  []int64   `json:"shape"`
	Values []float32 `json:"values"`
}

// NumElements returns the element count implied by the tensor shape.
func (t Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// InferRequest asks one model (version, or the default version when the
// Version pointer is nil) to run inference over the named input tensors.
type InferRequest struct {
	Model   string            `json:"model"`
	Version *int64            `json:"version,omitempty"`
	Inputs  map[string]Tensor `json:"inputs"`
}

// InferResponse carries the resolved version and the output tensors.
type InferResponse struct {
	Model   string            `json:"model"`
	Version int64             `json:"model_version"`
	Outputs map[string]Tensor `json:"outputs"`
}

// MetadataRequest asks for the signature of one model version (nil Version
// selects the default version).
type MetadataRequest struct {
	Model   string `json:"model"`
	Version *int64 `json:"version,omitempty"`
}

// StatusRequest asks for version statuses. Unlike metadata and inference,
// a nil Version does not resolve to the default version: it selects ALL
// tracked versions of the model.
type StatusRequest struct {
	Model   string `json:"model"`
	Version *int64 `json:"version,omitempty"`
}

// StatusResponse lists status entries, ordered by ascending version.
type StatusResponse struct {
	Model    string          `json:"model"`
	Versions []VersionStatus `json:"model_version_status"`
}

// Version returns a pointer suitable for the optional version fields.
func Version(v int64) *int64 { return &v }
