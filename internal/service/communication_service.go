package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/jobs"
	"github.com/noah-isme/edutenant-api/pkg/notify"
)

type communicationRepository interface {
	List(ctx context.Context, schoolID string, filter models.CommunicationFilter) ([]models.CommunicationLog, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.CommunicationLog, error)
	Create(ctx context.Context, entry *models.CommunicationLog) error
	UpdateDelivery(ctx context.Context, entry *models.CommunicationLog) error
	ListQueued(ctx context.Context, limit int) ([]models.CommunicationLog, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SMSMaxLength caps a single outbound SMS body.
const SMSMaxLength = 480

// EmailRequest queues an outbound email.
type EmailRequest struct {
	To      []string `json:"to" validate:"required,min=1,max=100,dive,required,email"`
	Subject string   `json:"subject" validate:"required,max=200"`
	Body    string   `json:"body" validate:"required"`
}

// SMSRequest queues an outbound SMS.
type SMSRequest struct {
	To      []string `json:"to" validate:"required,min=1,max=100,dive,required,e164"`
	Message string   `json:"message" validate:"required,max=480"`
}

// dispatchTask is the queue payload for one communication log.
type dispatchTask struct {
	SchoolID string
	LogID    string
}

// CommunicationService records outbound email/SMS requests and delivers them asynchronously.
type CommunicationService struct {
	repo      communicationRepository
	queue     jobDispatcher
	email     notify.EmailSender
	sms       notify.SMSSender
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCommunicationService constructs a CommunicationService.
func NewCommunicationService(repo communicationRepository, queue jobDispatcher, email notify.EmailSender, sms notify.SMSSender, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CommunicationService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if email == nil {
		email = notify.NewLogEmailSender(logger)
	}
	if sms == nil {
		sms = notify.NewLogSMSSender(logger)
	}
	return &CommunicationService{repo: repo, queue: queue, email: email, sms: sms, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// List returns communication logs.
func (s *CommunicationService) List(ctx context.Context, scope models.TenantScope, filter models.CommunicationFilter) ([]models.CommunicationLog, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	logs, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list communications")
	}
	return logs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one communication log.
func (s *CommunicationService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.CommunicationLog, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	entry, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "communication")
	}
	return entry, nil
}

// SendEmail records an email request and queues it for delivery.
func (s *CommunicationService) SendEmail(ctx context.Context, scope models.TenantScope, actor Actor, req EmailRequest) (*models.CommunicationLog, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.To = normaliseRecipients(req.To, strings.ToLower)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid email payload")
	}
	subject := strings.TrimSpace(req.Subject)
	entry := &models.CommunicationLog{
		SchoolID:   scope.SchoolID,
		Channel:    models.ChannelEmail,
		Recipients: req.To,
		Subject:    &subject,
		Body:       req.Body,
		Provider:   s.email.Name(),
	}
	return s.enqueue(ctx, actor, entry)
}

// SendSMS records an SMS request and queues it for delivery.
func (s *CommunicationService) SendSMS(ctx context.Context, scope models.TenantScope, actor Actor, req SMSRequest) (*models.CommunicationLog, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.To = normaliseRecipients(req.To, nil)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid sms payload")
	}
	entry := &models.CommunicationLog{
		SchoolID:   scope.SchoolID,
		Channel:    models.ChannelSMS,
		Recipients: req.To,
		Body:       req.Message,
		Provider:   s.sms.Name(),
	}
	return s.enqueue(ctx, actor, entry)
}

// Dispatch delivers one queued log; it is the dispatch queue handler.
func (s *CommunicationService) Dispatch(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(dispatchTask)
	if !ok {
		s.logger.Error("unexpected dispatch payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	entry, err := s.repo.FindByID(ctx, task.SchoolID, task.LogID)
	if err != nil {
		return err
	}
	if entry.Status != models.CommunicationQueued {
		return nil
	}

	entry.Attempts++
	ref, sendErr := s.deliver(ctx, entry)
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Error = &msg
		if err := s.repo.UpdateDelivery(ctx, entry); err != nil {
			s.logger.Warn("failed to record delivery attempt", zap.String("log_id", entry.ID), zap.Error(err))
		}
		return sendErr
	}

	sentAt := s.now().UTC()
	entry.Status = models.CommunicationSent
	entry.SentAt = &sentAt
	entry.Error = nil
	if ref != "" {
		entry.ProviderRef = &ref
	}
	if err := s.repo.UpdateDelivery(ctx, entry); err != nil {
		s.logger.Error("failed to mark communication sent", zap.String("log_id", entry.ID), zap.Error(err))
	}
	s.metrics.RecordDispatch(entry.Channel, models.CommunicationSent)
	return nil
}

// HandleFailure marks a log failed once the queue gives up on it.
func (s *CommunicationService) HandleFailure(ctx context.Context, job jobs.Job, cause error) {
	task, ok := job.Payload.(dispatchTask)
	if !ok {
		return
	}
	// the queue context may already be cancelled during shutdown
	ctx = context.WithoutCancel(ctx)
	entry, err := s.repo.FindByID(ctx, task.SchoolID, task.LogID)
	if err != nil {
		s.logger.Error("failed to load communication for failure", zap.String("log_id", task.LogID), zap.Error(err))
		return
	}
	s.fail(ctx, entry, cause.Error())
}

// RecoverQueued re-enqueues logs left queued by a previous process.
func (s *CommunicationService) RecoverQueued(ctx context.Context, limit int) int {
	entries, err := s.repo.ListQueued(ctx, limit)
	if err != nil {
		s.logger.Warn("failed to load queued communications", zap.Error(err))
		return 0
	}
	recovered := 0
	for _, entry := range entries {
		if err := s.queue.Enqueue(jobFor(&entry)); err != nil {
			s.logger.Warn("failed to re-enqueue communication", zap.String("log_id", entry.ID), zap.Error(err))
			continue
		}
		recovered++
	}
	return recovered
}

func (s *CommunicationService) enqueue(ctx context.Context, actor Actor, entry *models.CommunicationLog) (*models.CommunicationLog, error) {
	entry.Status = models.CommunicationQueued
	if actor.UserID != "" {
		entry.RequestedBy = &actor.UserID
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, internalError(err, "failed to record communication")
	}
	if err := s.queue.Enqueue(jobFor(entry)); err != nil {
		s.fail(ctx, entry, "failed to enqueue: "+err.Error())
		return nil, internalError(err, "failed to queue communication")
	}
	return entry, nil
}

func (s *CommunicationService) deliver(ctx context.Context, entry *models.CommunicationLog) (string, error) {
	switch entry.Channel {
	case models.ChannelEmail:
		return s.email.SendEmail(ctx, notify.Email{To: entry.Recipients, Subject: stringValue(entry.Subject), Body: entry.Body})
	default:
		return s.sms.SendSMS(ctx, notify.SMS{To: entry.Recipients, Message: entry.Body})
	}
}

func (s *CommunicationService) fail(ctx context.Context, entry *models.CommunicationLog, reason string) {
	entry.Status = models.CommunicationFailed
	entry.Error = &reason
	if err := s.repo.UpdateDelivery(ctx, entry); err != nil {
		s.logger.Error("failed to mark communication failed", zap.String("log_id", entry.ID), zap.Error(err))
	}
	s.metrics.RecordDispatch(entry.Channel, models.CommunicationFailed)
}

func jobFor(entry *models.CommunicationLog) jobs.Job {
	return jobs.Job{
		ID:      entry.ID,
		Type:    string(entry.Channel),
		Payload: dispatchTask{SchoolID: entry.SchoolID, LogID: entry.ID},
	}
}

func normaliseRecipients(values []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if transform != nil {
			v = transform(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
