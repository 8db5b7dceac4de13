package handler

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"quotedesk/internal/domain"
	"quotedesk/internal/service"
)

func dialAudit(t *testing.T, svc *service.AuditService) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&AuditServiceDesc, NewAuditGRPCHandler(svc))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAuditGRPC(t *testing.T) {
	store := &memAudit{}
	svc := service.NewAuditService(store)
	id := uuid.New()
	ctx := context.Background()
	for _, a := range []domain.AuditAction{domain.AuditCreated, domain.AuditUpdated, domain.AuditSentToCustomer} {
		svc.Record(ctx, domain.AuditDraft{QuoteID: id, QuoteNumber: "Q-2026-00001", Action: a, NewValue: domain.Snapshot{"status": "PENDING"}})
	}
	conn := dialAudit(t, svc)

	req, _ := structpb.NewStruct(map[string]interface{}{
		"quote_id":  id.String(),
		"page_size": 2,
		"order":     "asc",
	})
	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, AuditGetLogsMethod, req, resp); err != nil {
		t.Fatal(err)
	}
	entries := resp.Fields["entries"].GetListValue().GetValues()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	first := entries[0].GetStructValue().Fields
	if first["action"].GetStringValue() != string(domain.AuditCreated) || first["new_value"].GetStructValue().Fields["status"].GetStringValue() != "PENDING" {
		t.Fatalf("first entry = %v", first)
	}
	token := resp.Fields["next_page_token"].GetStringValue()
	if token == "" {
		t.Fatal("missing next page token")
	}

	req.Fields["page_token"] = structpb.NewStringValue(token)
	if err := conn.Invoke(ctx, AuditGetLogsMethod, req, resp); err != nil {
		t.Fatal(err)
	}
	if n := len(resp.Fields["entries"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("second page has %d entries", n)
	}

	bad, _ := structpb.NewStruct(map[string]interface{}{"quote_id": "nope"})
	err := conn.Invoke(ctx, AuditGetLogsMethod, bad, &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}
