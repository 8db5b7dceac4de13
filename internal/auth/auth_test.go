package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"quotedesk/internal/domain"
)

func TestMiddleware(t *testing.T) {
	dir := NewStaticDirectory(map[string]domain.User{
		"secret": {ID: "u1", Email: "ada@example.com", Name: "Ada", Role: domain.RoleAdmin},
	})

	var seen domain.Actor
	h := Middleware(dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if seen.ID != "u1" || seen.Type != domain.ActorAdmin || !seen.IsPrivileged() {
		t.Fatalf("unexpected actor on context: %+v", seen)
	}
}

func TestParseDevTokens(t *testing.T) {
	got, err := ParseDevTokens("t1:u1:a@x.io:admin, t2:u2:b@x.io:staff")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["t2"].Role != domain.RoleStaff {
		t.Fatalf("unexpected parse result: %+v", got)
	}
	if _, err := ParseDevTokens("broken"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
}

type fakeConn struct {
	method string
	reply  map[string]interface{}
	err    error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	f.method = method
	if f.err != nil {
		return f.err
	}
	s, err := structpb.NewStruct(f.reply)
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), s)
	return nil
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not supported")
}

func TestClientVerifyToken(t *testing.T) {
	conn := &fakeConn{reply: map[string]interface{}{
		"user": map[string]interface{}{"id": "u9", "email": "z@x.io", "name": "Zed", "lastname": "Q", "role": "staff"},
	}}
	u, err := NewClient(conn).VerifyToken(context.Background(), "Bearer abc")
	if err != nil {
		t.Fatal(err)
	}
	if conn.method != methodWhoAmI || u.ID != "u9" || u.Name != "Zed Q" {
		t.Fatalf("unexpected result: %s %+v", conn.method, u)
	}

	conn.err = status.Error(codes.Unauthenticated, "expired")
	if _, err := NewClient(conn).VerifyToken(context.Background(), "Bearer abc"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClientGetUserNotFound(t *testing.T) {
	conn := &fakeConn{err: status.Error(codes.NotFound, "no such user")}
	if _, err := NewClient(conn).GetUser(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
