package contract

import (
	"context"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/repository/specification"
)

type DeadLetterRepository interface {
	Create(ctx context.Context, entry *entity.DeadLetterEntry) error
	// Update is version-guarded like SessionRepository.Update; it is
	// what makes the processor's claim single-flight.
	Update(ctx context.Context, entry *entity.DeadLetterEntry) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeadLetterEntry, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeadLetterEntry, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
