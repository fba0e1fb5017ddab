package implementation

import (
	"context"
	"errors"

	"invoice-collector-be/internal/entity"
	"invoice-collector-be/internal/mapper"
	"invoice-collector-be/internal/model"
	"invoice-collector-be/internal/repository/contract"
	"invoice-collector-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrVersionConflict signals a lost optimistic-concurrency race: the
// row moved on underneath the caller, who must reload and retry.
var ErrVersionConflict = errors.New("session version conflict")

type SessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &SessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *SessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *entity.Session) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *SessionRepositoryImpl) Update(ctx context.Context, session *entity.Session) error {
	session.Version++
	m := r.mapper.ToModel(session)

	// Guarded write: only the caller holding the previous version wins.
	// Select("*") keeps cleared string fields (zero values) in the
	// UPDATE, which struct Updates would otherwise drop.
	res := r.db.WithContext(ctx).
		Model(&model.ConversationSession{}).
		Where("id = ? AND version = ?", m.Id, m.Version-1).
		Select("*").
		Updates(m)
	if res.Error != nil {
		session.Version--
		return res.Error
	}
	if res.RowsAffected == 0 {
		session.Version--
		return ErrVersionConflict
	}
	return nil
}

func (r *SessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ConversationSession{}, id).Error
}

func (r *SessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	var m model.ConversationSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	var models []*model.ConversationSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Session, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *SessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ConversationSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
