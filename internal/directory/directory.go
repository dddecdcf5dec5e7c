package directory

import (
	"context"

	"github.com/spec-kit/community-service/internal/domain"
)

// Directory resolves platform user identities. The community flows only
// need to know who a user is and whether they hold admin access.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// StaticDirectory grants admin access from a fixed allow-list, the way
// operators configure bot admins in the environment. Every other user
// resolves to a regular member.
type StaticDirectory struct {
	admins map[int64]struct{}
}

// NewStatic builds a directory from the configured admin IDs.
func NewStatic(adminIDs []int64) *StaticDirectory {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &StaticDirectory{admins: admins}
}

// GetUser resolves a user; unknown IDs are regular members.
func (d *StaticDirectory) GetUser(_ context.Context, id int64) (*domain.User, error) {
	_, isAdmin := d.admins[id]
	return &domain.User{ID: id, IsAdmin: isAdmin}, nil
}
