package unitofwork

import (
	"context"

	"invoice-collector-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	DeadLetterRepository() contract.DeadLetterRepository
}
