// auth/client.go
package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"quotedesk/internal/domain"
)

// Methods of the auth service. Requests and replies are google.protobuf.Struct
// (or Empty) so no generated stubs are needed on this side.
const (
	methodWhoAmI       = "/auth.v1.Directory/WhoAmI"
	methodGetUser      = "/auth.v1.Directory/GetUser"
	methodGetUsersByID = "/auth.v1.Directory/GetUsersByIds"
)

// Client resolves bearer tokens and user ids through the auth service.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// VerifyToken returns the user that owns the Authorization header value.
func (c *Client) VerifyToken(ctx context.Context, authToken string) (*domain.User, error) {
	if strings.TrimSpace(authToken) == "" {
		return nil, ErrNoToken
	}
	md := metadata.New(map[string]string{
		"Authorization": authToken,
	})
	ctx = metadata.NewOutgoingContext(ctx, md)

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodWhoAmI, &emptypb.Empty{}, reply); err != nil {
		if s, ok := status.FromError(err); ok && (s.Code() == codes.Unauthenticated || s.Code() == codes.PermissionDenied) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, s.Message())
		}
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return userFromStruct(reply.GetFields()["user"].GetStructValue())
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodGetUser, req, reply); err != nil {
		if s, ok := status.FromError(err); ok && s.Code() == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return userFromStruct(reply.GetFields()["user"].GetStructValue())
}

func (c *Client) GetUsersByIds(ctx context.Context, userIds []string) ([]domain.User, error) {
	cleanIds := make([]interface{}, 0, len(userIds))
	idMap := make(map[string]bool)
	for _, id := range userIds {
		id = strings.TrimSpace(id)
		if id != "" && !idMap[id] {
			cleanIds = append(cleanIds, id)
			idMap[id] = true
		}
	}
	if len(cleanIds) == 0 {
		return nil, nil
	}

	req, err := structpb.NewStruct(map[string]interface{}{"ids": cleanIds})
	if err != nil {
		return nil, err
	}
	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodGetUsersByID, req, reply); err != nil {
		log.Printf("[Auth] Error getting users from auth service: %v", err)
		return nil, err
	}

	var users []domain.User
	for _, v := range reply.GetFields()["users"].GetListValue().GetValues() {
		u, err := userFromStruct(v.GetStructValue())
		if err != nil {
			continue
		}
		users = append(users, *u)
	}
	return users, nil
}

func userFromStruct(s *structpb.Struct) (*domain.User, error) {
	if s == nil {
		return nil, fmt.Errorf("auth service returned no user")
	}
	f := s.GetFields()
	u := &domain.User{
		ID:    f["id"].GetStringValue(),
		Email: f["email"].GetStringValue(),
		Name:  strings.TrimSpace(f["name"].GetStringValue() + " " + f["lastname"].GetStringValue()),
		Role:  f["role"].GetStringValue(),
	}
	if u.ID == "" {
		return nil, fmt.Errorf("auth service returned a user without id")
	}
	return u, nil
}
