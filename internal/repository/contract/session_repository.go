package contract

import (
	"context"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	// Update performs an optimistic-concurrency write: it only
	// succeeds when the stored row still carries session.Version-1,
	// i.e. the caller bumped Version before writing. A lost race
	// returns ErrVersionConflict.
	Update(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
