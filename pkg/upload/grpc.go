package upload

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cuemby/glean/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// IngestionServiceName is the gRPC service pings are submitted to
	IngestionServiceName = "glean.ingestion.v1.Ingestion"
	// SubmitMethod is the full method name of Submit
	SubmitMethod = "/" + IngestionServiceName + "/Submit"
	// PathMetadataKey carries the submission path of a ping
	PathMetadataKey = "x-glean-path"
)

// IngestionServer receives pings over gRPC. The request is the ping body
// and the submission path and headers travel as metadata.
type IngestionServer interface {
	Submit(ctx context.Context, body *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestionServiceDesc describes the ingestion service
var IngestionServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestionServiceName,
	HandlerType: (*IngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterIngestionServer registers srv on s
func RegisterIngestionServer(s grpc.ServiceRegistrar, srv IngestionServer) {
	s.RegisterService(&IngestionServiceDesc, srv)
}

// GRPCUploader submits pings to an ingestion gRPC service
type GRPCUploader struct {
	conn *grpc.ClientConn
}

// NewGRPCUploader dials target without transport security
func NewGRPCUploader(target string, opts ...grpc.DialOption) (*GRPCUploader, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &GRPCUploader{conn: conn}, nil
}

// Close closes the connection
func (u *GRPCUploader) Close() error {
	if u.conn != nil {
		return u.conn.Close()
	}
	return nil
}

// Post submits body. Only the path of url is sent; the connection target
// decides where it goes.
func (u *GRPCUploader) Post(ctx context.Context, url string, body []byte, headers map[string]string) (types.UploadResult, error) {
	md := metadata.Pairs(PathMetadataKey, submissionPath(url))
	for k, v := range headers {
		md.Append(strings.ToLower(k), v)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	err := u.conn.Invoke(ctx, SubmitMethod, wrapperspb.Bytes(body), new(emptypb.Empty))
	if err == nil {
		return ClassifyStatus(http.StatusOK), nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return types.UploadResult{Result: types.UploadResultRecoverableFailure}, err
	}
	result := ClassifyStatus(HTTPStatusFromCode(st.Code()))
	if st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded || st.Code() == codes.Canceled {
		return result, fmt.Errorf("failed to submit ping: %w", err)
	}
	return result, nil
}

func submissionPath(url string) string {
	if idx := strings.Index(url, "/submit/"); idx >= 0 {
		return url[idx:]
	}
	return url
}

// HTTPStatusFromCode maps a gRPC status code onto the HTTP status the
// ingestion server would have answered with
func HTTPStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusRequestEntityTooLarge
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromHTTPStatus is the inverse of HTTPStatusFromCode for the statuses
// an ingestion handler produces
func CodeFromHTTPStatus(statusCode int) codes.Code {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return codes.OK
	case statusCode == http.StatusNotFound:
		return codes.NotFound
	case statusCode == http.StatusRequestEntityTooLarge:
		return codes.ResourceExhausted
	case statusCode >= 400 && statusCode < 500:
		return codes.InvalidArgument
	case statusCode == http.StatusServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
