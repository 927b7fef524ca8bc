package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/aiserving/mvbench/serving"
)

const (
	grpcKeepAliveTime    = 10 * time.Second
	grpcKeepAliveTimeout = 5 * time.Second
)

// Client is the gRPC binding of serving.Client.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewClient dials a serving endpoint. Nil creds means a plaintext channel.
// The timeout applies per call when the caller's context carries no
// deadline of its own.
func NewClient(addr string, creds credentials.TransportCredentials, timeout time.Duration) (*Client, error) {
	if creds == nil {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                grpcKeepAliveTime,
			Timeout:             grpcKeepAliveTimeout,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", serving.ErrTransport, addr, err)
	}

	return &Client{conn: conn, timeout: timeout}, nil
}

// Infer implements serving.Client.
func (c *Client) Infer(ctx context.Context, req *serving.InferRequest) (*serving.InferResponse, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	out := new(serving.InferResponse)
	if err := c.conn.Invoke(ctx, methodInfer, req, out); err != nil {
		return nil, mapClientErr(err)
	}
	return out, nil
}

// Metadata implements serving.Client.
func (c *Client) Metadata(ctx context.Context, model string, version *int64) (*serving.ModelMetadata, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	out := new(serving.ModelMetadata)
	req := &serving.MetadataRequest{Model: model, Version: version}
	if err := c.conn.Invoke(ctx, methodMetadata, req, out); err != nil {
		return nil, mapClientErr(err)
	}
	return out, nil
}

// Status implements serving.Client.
func (c *Client) Status(ctx context.Context, model string, version *int64) ([]serving.VersionStatus, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	out := new(serving.StatusResponse)
	req := &serving.StatusRequest{Model: model, Version: version}
	if err := c.conn.Invoke(ctx, methodStatus, req, out); err != nil {
		return nil, mapClientErr(err)
	}
	return out.Versions, nil
}

// Close implements serving.Client.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// mapClientErr folds gRPC failures into the serving error taxonomy:
// NotFound stays an application-level version error, everything at the
// channel level becomes a transport failure.
func mapClientErr(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", serving.ErrTransport, err)
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", serving.ErrVersionNotFound, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", serving.ErrTransport, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%w: %w", serving.ErrTransport, context.Canceled)
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", serving.ErrTransport, st.Message())
	default:
		return errors.New(st.Message())
	}
}
