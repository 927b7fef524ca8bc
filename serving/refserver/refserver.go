// Package refserver is an in-process stand-in for a model-serving
// endpoint. It serves the contract over both transport bindings from the
// same registry state, which is what makes transport equivalence testable.
// It performs no real inference: outputs are zero tensors of the declared
// output shape.
package refserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	googlegrpc "google.golang.org/grpc"

	"github.com/aiserving/mvbench/serving"
	servinggrpc "github.com/aiserving/mvbench/serving/grpc"
	servingrest "github.com/aiserving/mvbench/serving/rest"
)

// ModelSpec declares the signature of one model version.
type ModelSpec struct {
	Inputs  map[string]serving.TensorMetadata
	Outputs map[string]serving.TensorMetadata
}

// Server implements serving.ModelServer backed by a version registry.
type Server struct {
	mu    sync.RWMutex
	reg   *serving.Registry
	specs map[string]map[int64]ModelSpec
}

// New returns a Server with an empty registry.
func New() *Server {
	return &Server{
		reg:   serving.NewRegistry(),
		specs: map[string]map[int64]ModelSpec{},
	}
}

// AddModelVersion tracks a version as AVAILABLE with the given signature.
func (s *Server) AddModelVersion(model string, version int64, spec ModelSpec) {
	s.mu.Lock()
	if s.specs[model] == nil {
		s.specs[model] = map[int64]ModelSpec{}
	}
	s.specs[model][version] = spec
	s.mu.Unlock()

	s.reg.Add(model, version, serving.StateAvailable)
}

// Registry exposes the backing registry, e.g. to stage LOADING or
// LOAD_FAILED versions in tests.
func (s *Server) Registry() *serving.Registry {
	return s.reg
}

func (s *Server) spec(model string, version int64) (ModelSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[model][version]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %s version %d", serving.ErrVersionNotFound, model, version)
	}
	return spec, nil
}

func (s *Server) resolve(model string, version *int64) (int64, error) {
	if version != nil {
		return s.reg.ResolveExplicit(model, *version)
	}
	return s.reg.ResolveDefault(model)
}

// Infer implements serving.ModelServer.
func (s *Server) Infer(_ context.Context, req *serving.InferRequest) (*serving.InferResponse, error) {
	version, err := s.resolve(req.Model, req.Version)
	if err != nil {
		return nil, err
	}

	spec, err := s.spec(req.Model, version)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]serving.Tensor, len(spec.Outputs))
	for name, meta := range spec.Outputs {
		t := serving.Tensor{Shape: append([]int64(nil), meta.Shape...)}
		t.Values = make([]float32, t.NumElements())
		outputs[name] = t
	}

	return &serving.InferResponse{
		Model:   req.Model,
		Version: version,
		Outputs: outputs,
	}, nil
}

// GetModelMetadata implements serving.ModelServer.
func (s *Server) GetModelMetadata(_ context.Context, req *serving.MetadataRequest) (*serving.ModelMetadata, error) {
	version, err := s.resolve(req.Model, req.Version)
	if err != nil {
		return nil, err
	}

	spec, err := s.spec(req.Model, version)
	if err != nil {
		return nil, err
	}

	return &serving.ModelMetadata{
		Name:    req.Model,
		Version: version,
		Inputs:  spec.Inputs,
		Outputs: spec.Outputs,
	}, nil
}

// GetModelStatus implements serving.ModelServer. Note: no default-version
// resolution here, an unversioned request reports every tracked version.
func (s *Server) GetModelStatus(_ context.Context, req *serving.StatusRequest) (*serving.StatusResponse, error) {
	statuses, err := s.reg.Statuses(req.Model, req.Version)
	if err != nil {
		return nil, err
	}
	return &serving.StatusResponse{Model: req.Model, Versions: statuses}, nil
}

// ServeGRPC serves the RPC binding on the listener until Stop is called on
// the returned server or the listener fails.
func (s *Server) ServeGRPC(lis net.Listener, opts ...googlegrpc.ServerOption) *googlegrpc.Server {
	gs := googlegrpc.NewServer(opts...)
	servinggrpc.RegisterModelServer(gs, s)
	go func() {
		_ = gs.Serve(lis)
	}()
	return gs
}

// Handler returns the REST binding handler.
func (s *Server) Handler() http.Handler {
	return servingrest.NewHandler(s)
}
