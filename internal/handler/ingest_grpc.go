package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"telecloud/internal/domain"
)

// JSONCodecName is the gRPC content subtype the ingest service speaks.
const JSONCodecName = "json"

const registerFileMethod = "/telecloud.ingest.v1.Ingest/RegisterFile"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return JSONCodecName }

// FileRegistrar creates file records for objects that arrived in the
// remote store.
type FileRegistrar interface {
	Create(ctx context.Context, in domain.NewFile) (*domain.File, error)
}

type RegisterFileRequest = domain.NewFile

type RegisterFileResponse struct {
	FileID    string `json:"file_id"`
	CreatedAt string `json:"created_at"`
}

type IngestServer interface {
	RegisterFile(ctx context.Context, req *RegisterFileRequest) (*RegisterFileResponse, error)
}

// IngestHandler lets an uploader service register objects it has already
// stored with the provider.
type IngestHandler struct {
	files FileRegistrar
}

func NewIngestHandler(files FileRegistrar) *IngestHandler {
	return &IngestHandler{files: files}
}

func (h *IngestHandler) RegisterFile(ctx context.Context, req *RegisterFileRequest) (*RegisterFileResponse, error) {
	log.Info().
		Str("owner_id", req.OwnerID).
		Str("kind", string(req.Kind)).
		Str("name", req.Name).
		Int64("size_bytes", req.SizeBytes).
		Msg("register file request")

	file, err := h.files.Create(ctx, *req)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", req.OwnerID).Msg("register file failed")
		return nil, grpcError(err)
	}

	log.Info().Str("file_id", file.ID.String()).Str("owner_id", file.OwnerID).Msg("file registered")

	return &RegisterFileResponse{
		FileID:    file.ID.String(),
		CreatedAt: file.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

// RegisterIngestServer attaches srv to s.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&ingestServiceDesc, srv)
}

func registerFileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).RegisterFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: registerFileMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).RegisterFile(ctx, req.(*RegisterFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ingestServiceDesc = grpc.ServiceDesc{
	ServiceName: "telecloud.ingest.v1.Ingest",
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RegisterFile",
			Handler:    registerFileHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "telecloud/ingest/v1/ingest.proto",
}

// RegisterFile calls the ingest service over cc.
func RegisterFile(ctx context.Context, cc grpc.ClientConnInterface, req *RegisterFileRequest) (*RegisterFileResponse, error) {
	out := new(RegisterFileResponse)
	if err := cc.Invoke(ctx, registerFileMethod, req, out, grpc.CallContentSubtype(JSONCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
