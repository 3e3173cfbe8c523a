package api

import (
	"context"
	"fmt"
	"net"

	"github.com/cuemby/glean/pkg/upload"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server implements the ingestion gRPC service on top of a Collector
type Server struct {
	collector *Collector
	grpc      *grpc.Server
}

// NewServer creates a gRPC ingestion server
func NewServer(collector *Collector) *Server {
	s := &Server{
		collector: collector,
		grpc:      grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor())),
	}
	upload.RegisterIngestionServer(s.grpc, s)
	return s
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// Submit receives one ping. The path and headers come from the metadata.
func (s *Server) Submit(ctx context.Context, body *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	var path string
	headers := make(map[string]string)
	for k, values := range md {
		if len(values) == 0 {
			continue
		}
		if k == upload.PathMetadataKey {
			path = values[0]
			continue
		}
		headers[k] = values[0]
	}

	code, err := s.collector.Receive("grpc", path, headers, body.GetValue())
	if err != nil {
		return nil, status.Error(upload.CodeFromHTTPStatus(code), err.Error())
	}
	return &emptypb.Empty{}, nil
}
