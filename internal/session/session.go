// Package session holds the identity of an authenticated caller for the
// lifetime of its token.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
)

type Session struct {
	ID          string           `json:"id"`
	UserID      uuid.UUID        `json:"userId"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Role        model.Role       `json:"role"`
	Permissions rbac.Permissions `json:"permissions"`
	IssuedAt    time.Time        `json:"issuedAt"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// New builds the session of user. Unknown roles are rejected.
func New(id string, user *model.User, issuedAt, expiresAt time.Time) (*Session, error) {
	perms, err := rbac.For(user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          id,
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: perms,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Store remembers revoked session ids until their tokens would have expired
// anyway.
type Store struct {
	revoked *cache.Cache
	now     func() time.Time
}

func NewStore(cleanupInterval time.Duration) *Store {
	return &Store{
		revoked: cache.New(cache.NoExpiration, cleanupInterval),
		now:     time.Now,
	}
}

// Revoke ends s. Later lookups of its id report it revoked.
func (st *Store) Revoke(s *Session) {
	ttl := s.ExpiresAt.Sub(st.now())
	if ttl <= 0 {
		return
	}
	st.revoked.Set(s.ID, struct{}{}, ttl)
}

func (st *Store) IsRevoked(id string) bool {
	_, found := st.revoked.Get(id)
	return found
}
