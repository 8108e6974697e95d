package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/consultlink/api/internal/models"
)

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByConsultation(ctx context.Context, consultationID uint, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, consultationID, readerID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository instantiates a GORM-backed repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByConsultation(ctx context.Context, consultationID uint, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, consultationID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("consultation_id = ? AND receiver_id = ? AND read = ?", consultationID, readerID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
