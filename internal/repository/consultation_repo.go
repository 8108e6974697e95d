package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/consultlink/api/internal/models"
)

// ErrSlotClaimed indicates another active booking already holds the
// (teacher, start time) pair.
var ErrSlotClaimed = errors.New("slot already claimed")

// ErrStaleStatus indicates a conditional transition found the consultation in
// a different status than expected.
var ErrStaleStatus = errors.New("consultation status changed concurrently")

// ConsultationFilter narrows booking listings.
type ConsultationFilter struct {
	StudentID uint
	TeacherID uint
	Status    models.ConsultationStatus
}

// ConsultationRepository defines persistence operations for bookings and
// their slot claims.
type ConsultationRepository interface {
	GetByID(ctx context.Context, id uint) (models.Consultation, error)
	List(ctx context.Context, filter ConsultationFilter) ([]models.Consultation, error)
	CreateWithClaim(ctx context.Context, consultation *models.Consultation) error
	Transition(ctx context.Context, id uint, from, to models.ConsultationStatus, updates map[string]interface{}) (models.Consultation, error)
	SaveFeedback(ctx context.Context, id uint, rating int, feedback string) (models.Consultation, error)
	ReleaseClaim(ctx context.Context, consultationID uint) error
	ClaimedStarts(ctx context.Context, teacherID uint, from, to time.Time) ([]time.Time, error)
}

type consultationRepository struct {
	db *gorm.DB
}

// NewConsultationRepository instantiates a GORM-backed repository.
func NewConsultationRepository(db *gorm.DB) ConsultationRepository {
	return &consultationRepository{db: db}
}

func (r *consultationRepository) GetByID(ctx context.Context, id uint) (models.Consultation, error) {
	var consultation models.Consultation
	if err := r.db.WithContext(ctx).First(&consultation, id).Error; err != nil {
		return models.Consultation{}, err
	}

	return consultation, nil
}

func (r *consultationRepository) List(ctx context.Context, filter ConsultationFilter) ([]models.Consultation, error) {
	query := r.db.WithContext(ctx).Model(&models.Consultation{})

	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.TeacherID != 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var consultations []models.Consultation
	if err := query.Order("scheduled_at ASC").Find(&consultations).Error; err != nil {
		return nil, err
	}

	return consultations, nil
}

// CreateWithClaim inserts the consultation together with its slot claim in
// one transaction. The claim's unique (teacher_id, starts_at) index is the
// double-booking guard: a concurrent booking of the same slot fails here
// instead of producing two pending consultations.
func (r *consultationRepository) CreateWithClaim(ctx context.Context, consultation *models.Consultation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(consultation).Error; err != nil {
			return err
		}

		claim := models.SlotClaim{
			TeacherID:      consultation.TeacherID,
			StartsAt:       consultation.ScheduledAt,
			ConsultationID: consultation.ID,
		}

		if err := tx.Create(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSlotClaimed
			}
			return err
		}

		return nil
	})
}

// Transition performs a single conditional update gated on the expected
// current status. The WHERE clause is the concurrency guard: two racing
// transitions cannot both observe the same `from` status.
func (r *consultationRepository) Transition(ctx context.Context, id uint, from, to models.ConsultationStatus, updates map[string]interface{}) (models.Consultation, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return models.Consultation{}, result.Error
	}

	if result.RowsAffected == 0 {
		var existing models.Consultation
		if err := r.db.WithContext(ctx).First(&existing, id).Error; err != nil {
			return models.Consultation{}, err
		}
		return existing, ErrStaleStatus
	}

	return r.GetByID(ctx, id)
}

func (r *consultationRepository) SaveFeedback(ctx context.Context, id uint, rating int, feedback string) (models.Consultation, error) {
	result := r.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND status = ?", id, models.ConsultationCompleted).
		Updates(map[string]interface{}{"rating": rating, "feedback": feedback})
	if result.Error != nil {
		return models.Consultation{}, result.Error
	}

	if result.RowsAffected == 0 {
		var existing models.Consultation
		if err := r.db.WithContext(ctx).First(&existing, id).Error; err != nil {
			return models.Consultation{}, err
		}
		return existing, ErrStaleStatus
	}

	return r.GetByID(ctx, id)
}

func (r *consultationRepository) ReleaseClaim(ctx context.Context, consultationID uint) error {
	return r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Delete(&models.SlotClaim{}).Error
}

func (r *consultationRepository) ClaimedStarts(ctx context.Context, teacherID uint, from, to time.Time) ([]time.Time, error) {
	var starts []time.Time
	err := r.db.WithContext(ctx).Model(&models.SlotClaim{}).
		Where("teacher_id = ? AND starts_at >= ? AND starts_at < ?", teacherID, from, to).
		Order("starts_at ASC").
		Pluck("starts_at", &starts).Error
	if err != nil {
		return nil, err
	}

	return starts, nil
}
