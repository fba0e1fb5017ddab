package implementation

import (
	"context"
	"errors"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/mapper"
	"invoice-collector-be/internal/model"
	"invoice-collector-be/internal/repository/contract"
	"invoice-collector-be/internal/repository/specification"

	"gorm.io/gorm"
)

type DeadLetterRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewDeadLetterRepository(db *gorm.DB) contract.DeadLetterRepository {
	return &DeadLetterRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *DeadLetterRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DeadLetterRepositoryImpl) Create(ctx context.Context, entry *entity.DeadLetterEntry) error {
	m := r.mapper.DeadLetterToModel(entry)
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *DeadLetterRepositoryImpl) Update(ctx context.Context, entry *entity.DeadLetterEntry) error {
	entry.Version++
	m := r.mapper.DeadLetterToModel(entry)

	res := r.db.WithContext(ctx).
		Model(&model.DeadLetterEntry{}).
		Where("id = ? AND version = ?", m.Id, m.Version-1).
		Select("*").
		Updates(m)
	if res.Error != nil {
		entry.Version--
		return res.Error
	}
	if res.RowsAffected == 0 {
		entry.Version--
		return ErrVersionConflict
	}
	return nil
}

func (r *DeadLetterRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeadLetterEntry, error) {
	var m model.DeadLetterEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DeadLetterToEntity(&m), nil
}

func (r *DeadLetterRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeadLetterEntry, error) {
	var models []*model.DeadLetterEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]*entity.DeadLetterEntry, len(models))
	for i, m := range models {
		entries[i] = r.mapper.DeadLetterToEntity(m)
	}
	return entries, nil
}

func (r *DeadLetterRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.DeadLetterEntry{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
