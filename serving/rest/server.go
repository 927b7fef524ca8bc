package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aiserving/mvbench/serving"
)

// NewHandler exposes a ModelServer implementation over the REST URL scheme.
func NewHandler(impl serving.ModelServer) http.Handler {
	h := &handler{impl: impl}

	r := mux.NewRouter()
	r.HandleFunc("/v1/models/{model:[^/:]+}:predict", h.predict).Methods(http.MethodPost)
	r.HandleFunc("/v1/models/{model}/versions/{version:[0-9]+}:predict", h.predict).Methods(http.MethodPost)
	r.HandleFunc("/v1/models/{model}/metadata", h.metadata).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/versions/{version:[0-9]+}/metadata", h.metadata).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}", h.status).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/versions/{version:[0-9]+}", h.status).Methods(http.MethodGet)

	return r
}

type handler struct {
	impl serving.ModelServer
}

func requestTarget(r *http.Request) (model string, version *int64, err error) {
	vars := mux.Vars(r)
	model = vars["model"]
	if raw, ok := vars["version"]; ok {
		v, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return "", nil, parseErr
		}
		version = &v
	}
	return model, version, nil
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	model, version, err := requestTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var body predictBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.impl.Infer(r.Context(), &serving.InferRequest{
		Model:   model,
		Version: version,
		Inputs:  body.Inputs,
	})
	if err != nil {
		writeServingError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *handler) metadata(w http.ResponseWriter, r *http.Request) {
	model, version, err := requestTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.impl.GetModelMetadata(r.Context(), &serving.MetadataRequest{Model: model, Version: version})
	if err != nil {
		writeServingError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	model, version, err := requestTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.impl.GetModelStatus(r.Context(), &serving.StatusRequest{Model: model, Version: version})
	if err != nil {
		writeServingError(w, err)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeServingError(w http.ResponseWriter, err error) {
	if errors.Is(err, serving.ErrVersionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}
