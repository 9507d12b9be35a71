package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type messageRepository interface {
	List(ctx context.Context, schoolID string, filter models.MessageFilter) ([]models.Message, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	Update(ctx context.Context, message *models.Message) error
	MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error
	Delete(ctx context.Context, schoolID, id string) error
}

type schoolMemberChecker interface {
	ExistsInSchool(ctx context.Context, schoolID, id string) (bool, error)
}

// MessageRequest sends a direct message.
type MessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Body        string `json:"body" validate:"required"`
}

// UpdateMessageRequest edits an unread message.
type UpdateMessageRequest struct {
	Subject *string `json:"subject" validate:"omitempty,min=1,max=200"`
	Body    *string `json:"body" validate:"omitempty,min=1"`
}

// MessageService manages direct messages between school users.
type MessageService struct {
	repo      messageRepository
	users     schoolMemberChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, users schoolMemberChecker, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, users: users, validator: validate, logger: logger, now: time.Now}
}

// List returns the caller's inbox or sent folder.
func (s *MessageService) List(ctx context.Context, scope models.TenantScope, userID string, filter models.MessageFilter) ([]models.Message, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	filter.UserID = userID
	switch filter.Folder {
	case "":
		filter.Folder = models.MessageFolderInbox
	case models.MessageFolderInbox, models.MessageFolderSent:
	default:
		return nil, nil, appErrors.FieldError("folder", "folder must be one of [inbox sent]")
	}
	messages, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list messages")
	}
	return messages, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a message to one of its participants, marking it read for the recipient.
func (s *MessageService) Get(ctx context.Context, scope models.TenantScope, userID, id string) (*models.Message, error) {
	message, err := s.load(ctx, scope, userID, id)
	if err != nil {
		return nil, err
	}
	if message.RecipientID == userID && !message.IsRead {
		if err := s.markRead(ctx, message); err != nil {
			return nil, err
		}
	}
	return message, nil
}

// Send stores a new message from the caller.
func (s *MessageService) Send(ctx context.Context, scope models.TenantScope, senderID string, req MessageRequest) (*models.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid message payload")
	}
	if req.RecipientID == senderID {
		return nil, appErrors.FieldError("recipient_id", "cannot send a message to yourself")
	}
	exists, err := s.users.ExistsInSchool(ctx, scope.SchoolID, req.RecipientID)
	if err != nil {
		return nil, internalError(err, "failed to check recipient")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
	}

	message := &models.Message{
		SchoolID:    scope.SchoolID,
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Subject:     strings.TrimSpace(req.Subject),
		Body:        req.Body,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, internalError(err, "failed to send message")
	}
	return message, nil
}

// Update edits a message the caller sent while the recipient has not read it.
func (s *MessageService) Update(ctx context.Context, scope models.TenantScope, userID, id string, req UpdateMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid message payload")
	}
	message, err := s.load(ctx, scope, userID, id)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the sender can edit a message")
	}
	if message.IsRead {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "message has already been read")
	}
	if req.Subject != nil {
		message.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Body != nil {
		message.Body = *req.Body
	}
	if err := s.repo.Update(ctx, message); err != nil {
		return nil, internalError(err, "failed to update message")
	}
	return message, nil
}

// MarkRead flags a message as read by its recipient.
func (s *MessageService) MarkRead(ctx context.Context, scope models.TenantScope, userID, id string) (*models.Message, error) {
	message, err := s.load(ctx, scope, userID, id)
	if err != nil {
		return nil, err
	}
	if message.RecipientID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the recipient can mark a message read")
	}
	if !message.IsRead {
		if err := s.markRead(ctx, message); err != nil {
			return nil, err
		}
	}
	return message, nil
}

// Delete removes a message for either participant.
func (s *MessageService) Delete(ctx context.Context, scope models.TenantScope, userID, id string) error {
	if _, err := s.load(ctx, scope, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return internalError(err, "failed to delete message")
	}
	return nil
}

// load hides messages the caller does not participate in.
func (s *MessageService) load(ctx context.Context, scope models.TenantScope, userID, id string) (*models.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	message, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "message")
	}
	if message.SenderID != userID && message.RecipientID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
	}
	return message, nil
}

func (s *MessageService) markRead(ctx context.Context, message *models.Message) error {
	readAt := s.now().UTC()
	if err := s.repo.MarkRead(ctx, message.SchoolID, message.ID, readAt); err != nil {
		return internalError(err, "failed to mark message read")
	}
	message.IsRead = true
	message.ReadAt = &readAt
	return nil
}
