package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/consultlink/api/internal/models"
)

// AvailabilityRepository defines persistence operations for recurring windows.
type AvailabilityRepository interface {
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.AvailabilityWindow, error)
	ListForDay(ctx context.Context, teacherID, subjectID uint, dayOfWeek int) ([]models.AvailabilityWindow, error)
	GetByID(ctx context.Context, id uint) (models.AvailabilityWindow, error)
	Create(ctx context.Context, window *models.AvailabilityWindow) error
	Update(ctx context.Context, window *models.AvailabilityWindow) error
	Delete(ctx context.Context, id uint) error
}

type availabilityRepository struct {
	db *gorm.DB
}

// NewAvailabilityRepository instantiates a GORM-backed repository.
func NewAvailabilityRepository(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.AvailabilityWindow, error) {
	var windows []models.AvailabilityWindow
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("day_of_week ASC, start_time ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}

	return windows, nil
}

func (r *availabilityRepository) ListForDay(ctx context.Context, teacherID, subjectID uint, dayOfWeek int) ([]models.AvailabilityWindow, error) {
	query := r.db.WithContext(ctx).
		Where("teacher_id = ? AND day_of_week = ?", teacherID, dayOfWeek)

	if subjectID != 0 {
		query = query.Where("subject_id = ?", subjectID)
	}

	var windows []models.AvailabilityWindow
	if err := query.Order("start_time ASC").Find(&windows).Error; err != nil {
		return nil, err
	}

	return windows, nil
}

func (r *availabilityRepository) GetByID(ctx context.Context, id uint) (models.AvailabilityWindow, error) {
	var window models.AvailabilityWindow
	if err := r.db.WithContext(ctx).First(&window, id).Error; err != nil {
		return models.AvailabilityWindow{}, err
	}

	return window, nil
}

func (r *availabilityRepository) Create(ctx context.Context, window *models.AvailabilityWindow) error {
	return r.db.WithContext(ctx).Create(window).Error
}

func (r *availabilityRepository) Update(ctx context.Context, window *models.AvailabilityWindow) error {
	return r.db.WithContext(ctx).Save(window).Error
}

func (r *availabilityRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.AvailabilityWindow{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
