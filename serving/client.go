package serving

import "context"

// Client is one transport binding of the model-serving contract. Both
// bindings must produce observably equivalent results for the same logical
// request.
type Client interface {
	// Infer runs inference on the requested (or default) model version.
	Infer(ctx context.Context, req *InferRequest) (*InferResponse, error)

	// Metadata fetches the signature of the requested (or default) version.
	Metadata(ctx context.Context, model string, version *int64) (*ModelMetadata, error)

	// Status fetches status entries. With a nil version it returns one entry
	// per tracked version, not just the default one.
	Status(ctx context.Context, model string, version *int64) ([]VersionStatus, error)

	Close() error
}

// ModelServer is the server side of the same contract, implemented by the
// reference server and exposed through each transport binding.
type ModelServer interface {
	Infer(ctx context.Context, req *InferRequest) (*InferResponse, error)
	GetModelMetadata(ctx context.Context, req *MetadataRequest) (*ModelMetadata, error)
	GetModelStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}
