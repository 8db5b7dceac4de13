package handler

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"log"
	"quotedesk/internal/domain"
	"quotedesk/internal/service"
)

// The audit trail is exposed to other internal services over gRPC. Requests and
// responses are google.protobuf.Struct so callers need no generated stubs:
//
//	request:  {"quote_id": "...", "page_size": 50, "page_token": "", "order": "desc"}
//	response: {"entries": [...], "next_page_token": "..."}
const AuditGetLogsMethod = "/quotedesk.v1.QuoteAudit/GetAuditLogs"

type AuditServer interface {
	GetAuditLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AuditServiceDesc = grpc.ServiceDesc{
	ServiceName: "quotedesk.v1.QuoteAudit",
	HandlerType: (*AuditServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAuditLogs",
			Handler:    getAuditLogsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quotedesk/v1/audit.proto",
}

func getAuditLogsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServer).GetAuditLogs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AuditGetLogsMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuditServer).GetAuditLogs(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type AuditGRPCHandler struct {
	auditService *service.AuditService
}

func NewAuditGRPCHandler(auditService *service.AuditService) *AuditGRPCHandler {
	return &AuditGRPCHandler{auditService: auditService}
}

func (h *AuditGRPCHandler) GetAuditLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	rawID := fields["quote_id"].GetStringValue()
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid quote_id %q", rawID)
	}
	log.Printf("[AuditGRPC] GetAuditLogs quote=%s", id)

	page, err := h.auditService.GetAuditLogs(ctx, id, domain.AuditPageRequest{
		PageSize:  int(fields["page_size"].GetNumberValue()),
		PageToken: fields["page_token"].GetStringValue(),
		Order:     domain.AuditOrder(fields["order"].GetStringValue()),
	})
	if err != nil {
		return nil, grpcError(err)
	}
	if page.Entries == nil {
		page.Entries = []domain.QuoteAuditLogEntry{}
	}

	data, err := json.Marshal(page)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode audit page: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode audit page: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	log.Printf("[AuditGRPC] %v", err)
	return status.Error(codes.Internal, "internal error")
}
