package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/observability"
	"github.com/consultlink/api/internal/repository"
)

// ErrReceiverNotParticipant indicates the declared receiver is not the other
// party of the consultation.
var ErrReceiverNotParticipant = errors.New("receiver is not part of this consultation")

// Gate denial reasons, exactly one of which accompanies a closed window.
const (
	GateReasonNotConfirmed = "not_confirmed"
	GateReasonNotStarted   = "not_started"
	GateReasonEnded        = "ended"
	GateReasonCompleted    = "completed"
)

// GateClosedError reports why messaging is not currently permitted.
type GateClosedError struct {
	Reason string
}

func (e *GateClosedError) Error() string {
	return fmt.Sprintf("messaging window closed: %s", e.Reason)
}

// MessageBroadcaster receives stored messages for live fan-out. The chat
// service implements it; a nil broadcaster means polling-only delivery.
type MessageBroadcaster interface {
	BroadcastMessage(ctx context.Context, message dto.MessageResponse)
}

// MessageService stores and serves consultation chat, gated on the booked
// time window.
type MessageService interface {
	Send(ctx context.Context, senderID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, callerID, consultationID uint, limit int) ([]dto.MessageResponse, error)
	WindowStatus(ctx context.Context, callerID, consultationID uint) (dto.MessageWindowStatus, error)
	MarkRead(ctx context.Context, callerID, consultationID uint) (int64, error)
	// AuthorizeRoom decides whether the caller may join the live chat room
	// of a consultation: participants only, and only while the consultation
	// is confirmed. Joining is allowed outside the messaging window; sends
	// are still gated per message.
	AuthorizeRoom(ctx context.Context, callerID, consultationID uint) error
	// SetBroadcaster attaches live fan-out after construction. The chat
	// service depends on this service, so the hookup happens at wiring time.
	SetBroadcaster(broadcaster MessageBroadcaster)
}

type messageService struct {
	messages      repository.MessageRepository
	consultations repository.ConsultationRepository
	broadcaster   MessageBroadcaster
	sanitizer     *bluemonday.Policy
	validator     *validator.Validate
	logger        zerolog.Logger
	now           func() time.Time
}

// NewMessageService builds a new message service. The broadcaster may be nil.
func NewMessageService(messages repository.MessageRepository, consultations repository.ConsultationRepository, broadcaster MessageBroadcaster, validate *validator.Validate, logger zerolog.Logger) MessageService {
	return &messageService{
		messages:      messages,
		consultations: consultations,
		broadcaster:   broadcaster,
		sanitizer:     bluemonday.StrictPolicy(),
		validator:     validate,
		logger:        logger.With().Str("component", "message_service").Logger(),
		now:           time.Now,
	}
}

// evaluateGate decides whether messaging is open for a consultation at the
// given instant. The window is [scheduled_at, scheduled_at + duration], both
// bounds inclusive, and only confirmed consultations have an open window.
func evaluateGate(consultation models.Consultation, now time.Time) dto.MessageWindowStatus {
	status := dto.MessageWindowStatus{ConsultationID: consultation.ID}

	switch consultation.Status {
	case models.ConsultationConfirmed:
	case models.ConsultationCompleted:
		status.Reason = GateReasonCompleted
		return status
	default:
		status.Reason = GateReasonNotConfirmed
		return status
	}

	opensAt := consultation.ScheduledAt
	closesAt := consultation.EndsAt()
	status.OpensAt = &opensAt
	status.ClosesAt = &closesAt

	switch {
	case now.Before(opensAt):
		status.Reason = GateReasonNotStarted
	case now.After(closesAt):
		status.Reason = GateReasonEnded
	default:
		status.Allowed = true
	}

	return status
}

func (s *messageService) SetBroadcaster(broadcaster MessageBroadcaster) {
	s.broadcaster = broadcaster
}

func (s *messageService) Send(ctx context.Context, senderID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	consultation, err := s.loadForParticipant(ctx, senderID, payload.ConsultationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	counterpart := consultation.StudentID
	if senderID == consultation.StudentID {
		counterpart = consultation.TeacherID
	}
	if payload.ReceiverID != counterpart {
		return dto.MessageResponse{}, ErrReceiverNotParticipant
	}

	gate := evaluateGate(consultation, s.now())
	if !gate.Allowed {
		observability.GateDenials().WithLabelValues(gate.Reason).Inc()
		return dto.MessageResponse{}, &GateClosedError{Reason: gate.Reason}
	}

	messageType := payload.MessageType
	if messageType == "" {
		messageType = "text"
	}

	message := models.Message{
		ConsultationID: consultation.ID,
		SenderID:       senderID,
		ReceiverID:     payload.ReceiverID,
		Content:        s.sanitizer.Sanitize(payload.Content),
		Type:           messageType,
	}

	if err := s.messages.Create(ctx, &message); err != nil {
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(ctx, response)
	}

	return response, nil
}

func (s *messageService) History(ctx context.Context, callerID, consultationID uint, limit int) ([]dto.MessageResponse, error) {
	if _, err := s.loadForParticipant(ctx, callerID, consultationID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByConsultation(ctx, consultationID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) WindowStatus(ctx context.Context, callerID, consultationID uint) (dto.MessageWindowStatus, error) {
	consultation, err := s.loadForParticipant(ctx, callerID, consultationID)
	if err != nil {
		return dto.MessageWindowStatus{}, err
	}

	return evaluateGate(consultation, s.now()), nil
}

func (s *messageService) AuthorizeRoom(ctx context.Context, callerID, consultationID uint) error {
	consultation, err := s.loadForParticipant(ctx, callerID, consultationID)
	if err != nil {
		return err
	}

	if consultation.Status != models.ConsultationConfirmed {
		gate := evaluateGate(consultation, s.now())
		return &GateClosedError{Reason: gate.Reason}
	}

	return nil
}

func (s *messageService) MarkRead(ctx context.Context, callerID, consultationID uint) (int64, error) {
	if _, err := s.loadForParticipant(ctx, callerID, consultationID); err != nil {
		return 0, err
	}

	return s.messages.MarkRead(ctx, consultationID, callerID)
}

func (s *messageService) loadForParticipant(ctx context.Context, callerID, consultationID uint) (models.Consultation, error) {
	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Consultation{}, ErrConsultationNotFound
		}
		return models.Consultation{}, err
	}

	if consultation.StudentID != callerID && consultation.TeacherID != callerID {
		return models.Consultation{}, ErrNotParticipant
	}

	return consultation, nil
}
