package interfaces

import "context"

// RepositoryPort defines data access for interface definitions.
type RepositoryPort interface {
	Find(ctx context.Context, collection string, typ Type) (Document, error)
}

// Service serves interface definitions trimmed to the caller's permissions.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ForCaller returns the default definition of typ filtered by granted.
func (s *Service) ForCaller(ctx context.Context, typ Type, granted Granter) (Document, error) {
	doc, err := s.repo.Find(ctx, CollectionPrivate, typ)
	if err != nil {
		return nil, err
	}
	return Filter(doc, granted), nil
}
