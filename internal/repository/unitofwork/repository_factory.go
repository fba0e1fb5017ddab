package unitofwork

import "context"

// RepositoryFactory hands services a fresh UnitOfWork per inbound
// update, so transactional scope never leaks across sessions.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
