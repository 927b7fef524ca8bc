package serving

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks the version set of each served model name. Versions
// transition LOADING -> AVAILABLE | LOAD_FAILED independently and stay
// queryable for status until removed.
type Registry struct {
	mu     sync.RWMutex
	models map[string]map[int64]VersionStatus
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: map[string]map[int64]VersionStatus{}}
}

// Add starts tracking a version in the given state. An AVAILABLE version
// gets the fixed OK status detail.
func (r *Registry) Add(model string, version int64, state ModelVersionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.models[model] == nil {
		r.models[model] = map[int64]VersionStatus{}
	}
	r.models[model][version] = VersionStatus{
		Version: version,
		State:   state,
		Status:  detailFor(state),
	}
}

// SetState transitions a tracked version and records its status detail.
func (r *Registry) SetState(model string, version int64, state ModelVersionState, code ErrorCode, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.models[model]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, model)
	}
	if _, ok := versions[version]; !ok {
		return fmt.Errorf("%w: %s version %d", ErrVersionNotFound, model, version)
	}
	versions[version] = VersionStatus{
		Version: version,
		State:   state,
		Status:  StatusDetail{ErrorCode: code, ErrorMessage: message},
	}
	return nil
}

func detailFor(state ModelVersionState) StatusDetail {
	if state == StateAvailable {
		return StatusDetail{ErrorCode: ErrorCodeOK, ErrorMessage: StateOKMessage}
	}
	return StatusDetail{ErrorCode: ErrorCodeOK, ErrorMessage: ""}
}

// ResolveExplicit resolves an explicitly requested version: it must be
// tracked and AVAILABLE, anything else is ErrVersionNotFound.
func (r *Registry) ResolveExplicit(model string, version int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs, ok := r.models[model][version]
	if !ok || vs.State != StateAvailable {
		return 0, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, model, version)
	}
	return version, nil
}

// ResolveDefault resolves the default selection: the highest-numbered
// AVAILABLE version of the model.
//
// Kept separate from ResolveExplicit on purpose; the two rules differ and
// collapsing them into one parameterized function has hidden bugs before.
func (r *Registry) ResolveDefault(model string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := int64(-1)
	for v, vs := range r.models[model] {
		if vs.State == StateAvailable && v > best {
			best = v
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: %s has no available version", ErrVersionNotFound, model)
	}
	return best, nil
}

// Statuses returns status entries for a model. With an explicit version it
// returns that single tracked version in whatever state it is in. With a
// nil version it returns ALL tracked versions ordered by version number —
// status deliberately does not collapse to the default version the way
// metadata and inference do.
func (r *Registry) Statuses(model string, version *int64) ([]VersionStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.models[model]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, model)
	}

	if version != nil {
		vs, ok := versions[*version]
		if !ok {
			return nil, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, model, *version)
		}
		return []VersionStatus{vs}, nil
	}

	out := make([]VersionStatus, 0, len(versions))
	for _, vs := range versions {
		out = append(out, vs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
