package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/consultlink/api/internal/models"
)

// SubjectRepository defines persistence operations for subjects and their
// consulting teachers.
type SubjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
	GetByID(ctx context.Context, id uint) (models.Subject, error)
	GetMany(ctx context.Context, ids []uint) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id uint) error
	AddTeacher(ctx context.Context, subject *models.Subject, teacher models.User) error
	RemoveTeacher(ctx context.Context, subject *models.Subject, teacher models.User) error
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository instantiates a GORM-backed repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).Preload("Teachers").Order("name ASC").Find(&subjects).Error
	if err != nil {
		return nil, err
	}

	return subjects, nil
}

func (r *subjectRepository) GetByID(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Preload("Teachers").First(&subject, id).Error; err != nil {
		return models.Subject{}, err
	}

	return subject, nil
}

func (r *subjectRepository) GetMany(ctx context.Context, ids []uint) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var subjects []models.Subject
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return nil, err
	}

	return subjects, nil
}

func (r *subjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *subjectRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Select("Teachers").Delete(&models.Subject{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *subjectRepository) AddTeacher(ctx context.Context, subject *models.Subject, teacher models.User) error {
	return r.db.WithContext(ctx).Model(subject).Association("Teachers").Append(&teacher)
}

func (r *subjectRepository) RemoveTeacher(ctx context.Context, subject *models.Subject, teacher models.User) error {
	return r.db.WithContext(ctx).Model(subject).Association("Teachers").Delete(&teacher)
}
