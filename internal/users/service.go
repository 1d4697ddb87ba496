package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownOption is returned for listing options other than all or role.
var ErrUnknownOption = errors.New("users: unknown option")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersWithRole(ctx context.Context) ([]User, error)
}

// Presence reports which users hold a live session. It is best effort and never fails.
type Presence interface {
	ConnectedUsers(ctx context.Context) map[string]struct{}
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	presence Presence
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, presence Presence) *Service {
	return &Service{repo: repo, presence: presence}
}

// ParseListOption validates the raw option query value.
func ParseListOption(raw string) (ListOption, error) {
	switch opt := ListOption(raw); opt {
	case ListAll, ListWithRole:
		return opt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOption, raw)
	}
}

// ListUsers returns users in the requested shape, each flagged with its live presence.
// The store query and the presence scan run concurrently.
func (s *Service) ListUsers(ctx context.Context, option ListOption) ([]User, error) {
	var (
		users     []User
		connected map[string]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		switch option {
		case ListAll:
			users, err = s.repo.ListUsers(gctx)
		case ListWithRole:
			users, err = s.repo.ListUsersWithRole(gctx)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownOption, option)
		}
		return err
	})
	g.Go(func() error {
		if s.presence != nil {
			connected = s.presence.ConnectedUsers(gctx)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := range users {
		_, users[i].Connected = connected[users[i].UUID]
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}
