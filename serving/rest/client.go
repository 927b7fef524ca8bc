// Package rest is the HTTP/JSON transport binding of the model-serving
// contract, with TensorFlow-Serving-shaped URLs.
package rest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aiserving/mvbench/serving"
)

var (
	strGet  = []byte("GET")
	strPost = []byte("POST")

	strContentTypeJSON = []byte("application/json")
)

// errorBody is the JSON error document returned by the endpoint.
type errorBody struct {
	Error string `json:"error"`
}

// predictBody is the request document for :predict; model and version ride
// in the URL.
type predictBody struct {
	Inputs map[string]serving.Tensor `json:"inputs"`
}

// Client is the REST binding of serving.Client.
type Client struct {
	scheme  string
	host    string
	hc      *fasthttp.HostClient
	timeout time.Duration
}

// NewClient builds a client for a host:port. A nil tlsConfig means plain
// HTTP. The timeout bounds every request round trip.
func NewClient(host string, tlsConfig *tls.Config, timeout time.Duration) *Client {
	scheme := "http"
	if tlsConfig != nil {
		scheme = "https"
	}

	return &Client{
		scheme: scheme,
		host:   host,
		hc: &fasthttp.HostClient{
			Addr:                host,
			IsTLS:               tlsConfig != nil,
			TLSConfig:           tlsConfig,
			ReadTimeout:         timeout,
			MaxIdleConnDuration: timeout,
			Dial: func(addr string) (net.Conn, error) {
				return fasthttp.DialTimeout(addr, timeout)
			},
		},
		timeout: timeout,
	}
}

// PredictURI returns the :predict URI for a model version (nil = default).
func PredictURI(model string, version *int64) string {
	return modelURI(model, version) + ":predict"
}

// MetadataURI returns the metadata URI for a model version (nil = default).
func MetadataURI(model string, version *int64) string {
	return modelURI(model, version) + "/metadata"
}

// StatusURI returns the status URI for a model version (nil = all versions).
func StatusURI(model string, version *int64) string {
	return modelURI(model, version)
}

func modelURI(model string, version *int64) string {
	uri := "/v1/models/" + model
	if version != nil {
		uri += "/versions/" + strconv.FormatInt(*version, 10)
	}
	return uri
}

// Infer implements serving.Client.
func (c *Client) Infer(ctx context.Context, req *serving.InferRequest) (*serving.InferResponse, error) {
	body, err := json.Marshal(predictBody{Inputs: req.Inputs})
	if err != nil {
		return nil, err
	}

	out := new(serving.InferResponse)
	if err := c.do(ctx, strPost, PredictURI(req.Model, req.Version), body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Metadata implements serving.Client.
func (c *Client) Metadata(ctx context.Context, model string, version *int64) (*serving.ModelMetadata, error) {
	out := new(serving.ModelMetadata)
	if err := c.do(ctx, strGet, MetadataURI(model, version), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status implements serving.Client.
func (c *Client) Status(ctx context.Context, model string, version *int64) ([]serving.VersionStatus, error) {
	out := new(serving.StatusResponse)
	if err := c.do(ctx, strGet, StatusURI(model, version), nil, out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// Close implements serving.Client.
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method []byte, uri string, body []byte, out interface{}) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("%w: %w", serving.ErrTransport, context.DeadlineExceeded)
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.Header.SetMethodBytes(method)
	req.SetRequestURI(c.scheme + "://" + c.host + uri)
	if body != nil {
		req.Header.SetContentTypeBytes(strContentTypeJSON)
		req.SetBody(body)
	}

	if err := c.hc.DoTimeout(req, res, timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return fmt.Errorf("%w: %w", serving.ErrTransport, context.DeadlineExceeded)
		}
		return fmt.Errorf("%w: %w", serving.ErrTransport, err)
	}

	switch code := res.StatusCode(); {
	case code == fasthttp.StatusOK:
		return json.Unmarshal(res.Body(), out)
	case code == fasthttp.StatusNotFound:
		var eb errorBody
		_ = json.Unmarshal(res.Body(), &eb)
		return fmt.Errorf("%w: %s", serving.ErrVersionNotFound, eb.Error)
	default:
		return fmt.Errorf("unexpected inference response status code: expected %d, got %d: %s",
			fasthttp.StatusOK, code, res.Body())
	}
}
