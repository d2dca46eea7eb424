package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/storage"
)

// Client implements storage.Backend over a gRPC connection to an rpc.Server,
// so a remote.Branch's upstream handle is just another storage.Backend —
// Branch itself never imports this package's types directly.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr and returns a Client. TLS credentials should be
// passed via opts (grpc.WithTransportCredentials); with none given, Dial
// falls back to an insecure connection, suitable only for tests and
// loopback development backends.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	}, opts...)
	if len(opts) == 0 {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dialog: remote: rpc: dial %q: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error { return c.conn.Close() }

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	err := c.conn.Invoke(ctx, fullMethod(method), req, resp)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RemoteRPCRequestsTotal.WithLabelValues(method, status).Inc()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, storage.Edition, error) {
	resp, err := invoke[getRequest, getResponse](ctx, c, "Get", &getRequest{Key: key})
	if err != nil {
		return nil, storage.Edition{}, err
	}
	if werr := resp.Err.decode(); werr != nil {
		return nil, storage.Edition{}, werr
	}
	return resp.Value, resp.Edition, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) (storage.Edition, error) {
	resp, err := invoke[setRequest, setResponse](ctx, c, "Set", &setRequest{Key: key, Value: value})
	if err != nil {
		return storage.Edition{}, err
	}
	return resp.Edition, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := invoke[deleteRequest, deleteResponse](ctx, c, "Delete", &deleteRequest{Key: key})
	return err
}

func (c *Client) List(ctx context.Context, prefix, cursor string) (storage.Page, error) {
	resp, err := invoke[listRequest, listResponse](ctx, c, "List", &listRequest{Prefix: prefix, Cursor: cursor})
	if err != nil {
		return storage.Page{}, err
	}
	return resp.Page, nil
}

func (c *Client) Resolve(ctx context.Context, key string) (storage.Edition, error) {
	resp, err := invoke[resolveRequest, resolveResponse](ctx, c, "Resolve", &resolveRequest{Key: key})
	if err != nil {
		return storage.Edition{}, err
	}
	if werr := resp.Err.decode(); werr != nil {
		return storage.Edition{}, werr
	}
	return resp.Edition, nil
}

func (c *Client) Replace(ctx context.Context, key string, when storage.Edition, value []byte) (storage.Edition, error) {
	resp, err := invoke[replaceRequest, replaceResponse](ctx, c, "Replace", &replaceRequest{Key: key, When: when, Value: value})
	if err != nil {
		return storage.Edition{}, err
	}
	if werr := resp.Err.decode(); werr != nil {
		// Replace's mismatch response still carries the backend's
		// actual current edition, the same contract storage.Backend
		// promises locally.
		return resp.Edition, werr
	}
	return resp.Edition, nil
}

func (c *Client) Read(ctx context.Context, prefix string) (<-chan storage.Entry, <-chan error) {
	entries := make(chan storage.Entry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Read"))
		if err != nil {
			errs <- fmt.Errorf("dialog: remote: rpc: read %q: %w", prefix, err)
			return
		}
		if err := stream.SendMsg(&readRequest{Prefix: prefix}); err != nil {
			errs <- err
			return
		}
		if err := stream.CloseSend(); err != nil {
			errs <- err
			return
		}
		for {
			resp := new(readResponse)
			if err := stream.RecvMsg(resp); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				errs <- err
				return
			}
			select {
			case entries <- resp.Entry:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return entries, errs
}

func (c *Client) Write(ctx context.Context, entries <-chan storage.Entry) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[1], fullMethod("Write"))
	if err != nil {
		return fmt.Errorf("dialog: remote: rpc: write: %w", err)
	}
	for entry := range entries {
		if err := stream.SendMsg(&writeRequest{Entry: entry}); err != nil {
			return err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	resp := new(writeResponse)
	if err := stream.RecvMsg(resp); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
