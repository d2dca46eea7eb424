package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"

	"github.com/cuemby/dialog/pkg/storage"
)

// Server exposes a local storage.Backend over gRPC, the remote side of a
// remote.Branch's upstream mirror.
type Server struct {
	backend storage.Backend
	grpc    *grpc.Server
}

// NewServer wraps backend as a gRPC service.
func NewServer(backend storage.Backend) *Server {
	return &Server{backend: backend}
}

// Listen starts the gRPC server on addr, forcing every call to use the
// CBOR codec, and blocks serving until the listener errors or the server
// is stopped.
func (s *Server) Listen(addr string, opts ...grpc.ServerOption) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dialog: remote: rpc: listen %q: %w", addr, err)
	}
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(cborCodec{})}, opts...)
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

func (s *Server) Get(ctx context.Context, req *getRequest) (*getResponse, error) {
	v, ed, err := s.backend.Get(ctx, req.Key)
	if wc := encodeErr(err); wc != wireErrNone {
		return &getResponse{Err: wc}, nil
	} else if err != nil {
		return nil, err
	}
	return &getResponse{Value: v, Edition: ed}, nil
}

func (s *Server) Set(ctx context.Context, req *setRequest) (*setResponse, error) {
	ed, err := s.backend.Set(ctx, req.Key, req.Value)
	if err != nil {
		return nil, err
	}
	return &setResponse{Edition: ed}, nil
}

func (s *Server) Delete(ctx context.Context, req *deleteRequest) (*deleteResponse, error) {
	if err := s.backend.Delete(ctx, req.Key); err != nil {
		return nil, err
	}
	return &deleteResponse{}, nil
}

func (s *Server) List(ctx context.Context, req *listRequest) (*listResponse, error) {
	page, err := s.backend.List(ctx, req.Prefix, req.Cursor)
	if err != nil {
		return nil, err
	}
	return &listResponse{Page: page}, nil
}

func (s *Server) Resolve(ctx context.Context, req *resolveRequest) (*resolveResponse, error) {
	ed, err := s.backend.Resolve(ctx, req.Key)
	if wc := encodeErr(err); wc != wireErrNone {
		return &resolveResponse{Err: wc}, nil
	} else if err != nil {
		return nil, err
	}
	return &resolveResponse{Edition: ed}, nil
}

func (s *Server) Replace(ctx context.Context, req *replaceRequest) (*replaceResponse, error) {
	ed, err := s.backend.Replace(ctx, req.Key, req.When, req.Value)
	if wc := encodeErr(err); wc != wireErrNone {
		// Replace returns the backend's actual current edition
		// alongside ErrEditionMismatch; carry it through so the
		// caller can rebase without a second round trip.
		return &replaceResponse{Edition: ed, Err: wc}, nil
	} else if err != nil {
		return nil, err
	}
	return &replaceResponse{Edition: ed}, nil
}

func (s *Server) Read(req *readRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	entries, errs := s.backend.Read(ctx, req.Prefix)
	for entry := range entries {
		if err := stream.SendMsg(&readResponse{Entry: entry}); err != nil {
			return err
		}
	}
	return <-errs
}

func (s *Server) Write(stream grpc.ServerStream) error {
	ctx := stream.Context()
	entries := make(chan storage.Entry)
	errCh := make(chan error, 1)
	go func() { errCh <- s.backend.Write(ctx, entries) }()

	for {
		req := new(writeRequest)
		if err := stream.RecvMsg(req); err != nil {
			close(entries)
			if errors.Is(err, io.EOF) {
				if werr := <-errCh; werr != nil {
					return werr
				}
				return stream.SendMsg(&writeResponse{})
			}
			return err
		}
		select {
		case entries <- req.Entry:
		case <-ctx.Done():
			close(entries)
			return ctx.Err()
		}
	}
}
