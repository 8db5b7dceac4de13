package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"quotedesk/internal/domain"
)

var (
	ErrNoToken      = errors.New("no authorization header")
	ErrUnauthorized = errors.New("unauthorized")
)

type Verifier interface {
	VerifyToken(ctx context.Context, authToken string) (*domain.User, error)
}

type ctxKey struct{}

// WithActor stores the authenticated actor on the context.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return a, ok
}

func ActorForUser(u *domain.User) domain.Actor {
	return domain.Actor{
		Type:  domain.ActorAdmin,
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// Middleware rejects requests without a valid Authorization header and puts
// the staff actor on the request context.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authToken := r.Header.Get("Authorization")
			if strings.TrimSpace(authToken) == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			user, err := v.VerifyToken(r.Context(), authToken)
			if err != nil {
				log.Printf("[Auth] Token verification failed: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), ActorForUser(user))))
		})
	}
}

// StaticDirectory is a fixed token and user table for local development.
type StaticDirectory struct {
	tokens map[string]domain.User
	users  map[string]domain.User
}

func NewStaticDirectory(tokens map[string]domain.User) *StaticDirectory {
	d := &StaticDirectory{tokens: map[string]domain.User{}, users: map[string]domain.User{}}
	for tok, u := range tokens {
		d.tokens["Bearer "+strings.TrimPrefix(tok, "Bearer ")] = u
		d.users[u.ID] = u
	}
	return d
}

func (d *StaticDirectory) VerifyToken(ctx context.Context, authToken string) (*domain.User, error) {
	if strings.TrimSpace(authToken) == "" {
		return nil, ErrNoToken
	}
	if !strings.HasPrefix(authToken, "Bearer ") {
		authToken = "Bearer " + authToken
	}
	u, ok := d.tokens[authToken]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &u, nil
}

func (d *StaticDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}
