package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, schoolID string, filter models.PaymentFilter) ([]models.Payment, int, float64, error)
	ListAll(ctx context.Context, schoolID string, filter models.PaymentFilter, limit int) ([]models.Payment, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, schoolID, id string) error
}

type termLookup interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
}

type settingReader interface {
	Value(ctx context.Context, scope models.TenantScope, key string) string
}

const defaultCurrency = "USD"

// PaymentRequest records or replaces a payment.
type PaymentRequest struct {
	PayerName        string               `json:"payer_name" validate:"required,max=150"`
	StudentReference *string              `json:"student_reference" validate:"omitempty,max=100"`
	Amount           float64              `json:"amount" validate:"gte=0"`
	Currency         string               `json:"currency" validate:"omitempty,currency"`
	PaymentDate      time.Time            `json:"payment_date" validate:"required"`
	Method           models.PaymentMethod `json:"method" validate:"required,oneof=cash bank_transfer card mobile_money cheque"`
	Status           models.PaymentStatus `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	Reference        *string              `json:"reference" validate:"omitempty,max=100"`
	Description      *string              `json:"description"`
	AcademicYearID   *string              `json:"academic_year_id"`
	TermID           *string              `json:"term_id"`
}

// PaymentList is a page of payments with the sum over the whole filter.
type PaymentList struct {
	Payments    []models.Payment
	Pagination  *models.Pagination
	TotalAmount float64
}

// PaymentService handles payment recording and export.
type PaymentService struct {
	repo      paymentRepository
	years     academicYearLookup
	terms     termLookup
	settings  settingReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	maxRows   int
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, years academicYearLookup, terms termLookup, settings settingReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, maxRows int) *PaymentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &PaymentService{repo: repo, years: years, terms: terms, settings: settings, cache: cache, validator: validate, logger: logger, maxRows: maxRows}
}

// List returns a page of payments and the filter's total amount.
func (s *PaymentService) List(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter) (*PaymentList, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	payments, total, amount, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, internalError(err, "failed to list payments")
	}
	return &PaymentList{Payments: payments, Pagination: paginationFor(filter.Page, filter.PageSize, total), TotalAmount: amount}, nil
}

// Get returns a payment.
func (s *PaymentService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Payment, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "payment")
	}
	return payment, nil
}

// Create records a payment.
func (s *PaymentService) Create(ctx context.Context, scope models.TenantScope, actor Actor, req PaymentRequest) (*models.Payment, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payment := &models.Payment{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, scope, payment, req); err != nil {
		return nil, err
	}
	if actor.UserID != "" {
		payment.RecordedBy = &actor.UserID
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, internalError(err, "failed to record payment")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return payment, nil
}

// Update replaces a payment.
func (s *PaymentService) Update(ctx context.Context, scope models.TenantScope, id string, req PaymentRequest) (*models.Payment, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "payment")
	}
	if err := s.apply(ctx, scope, payment, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, internalError(err, "failed to update payment")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return payment, nil
}

// Delete removes a payment.
func (s *PaymentService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "payment")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return internalError(err, "failed to delete payment")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

// Export renders payments matching the filter as csv, pdf or xlsx.
func (s *PaymentService) Export(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter, rawFormat string) (*export.File, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListAll(ctx, scope.SchoolID, filter, s.maxRows)
	if err != nil {
		return nil, internalError(err, "failed to load payments for export")
	}

	data := export.Dataset{
		Title:   "Payments",
		Headers: []string{"Date", "Payer", "Student Ref", "Amount", "Currency", "Method", "Status", "Reference"},
		Rows:    make([]map[string]string, 0, len(payments)),
	}
	for _, p := range payments {
		data.Rows = append(data.Rows, map[string]string{
			"Date":        p.PaymentDate.Format("2006-01-02"),
			"Payer":       p.PayerName,
			"Student Ref": stringValue(p.StudentReference),
			"Amount":      fmt.Sprintf("%.2f", p.Amount),
			"Currency":    p.Currency,
			"Method":      string(p.Method),
			"Status":      string(p.Status),
			"Reference":   stringValue(p.Reference),
		})
	}
	file, err := export.Render(format, data, "payments-"+time.Now().UTC().Format("20060102"))
	if err != nil {
		return nil, internalError(err, "failed to render payment export")
	}
	return file, nil
}

func (s *PaymentService) apply(ctx context.Context, scope models.TenantScope, payment *models.Payment, req PaymentRequest) error {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid payment payload")
	}

	yearID := optionalString(req.AcademicYearID)
	if yearID != nil {
		if _, err := s.years.FindByID(ctx, scope.SchoolID, *yearID); err != nil {
			return loadError(err, "academic year")
		}
	}
	termID := optionalString(req.TermID)
	if termID != nil {
		term, err := s.terms.FindByID(ctx, scope.SchoolID, *termID)
		if err != nil {
			return loadError(err, "term")
		}
		if yearID == nil {
			yearID = &term.AcademicYearID
		} else if *yearID != term.AcademicYearID {
			return appErrors.FieldError("term_id", "term does not belong to the academic year")
		}
	}

	payment.PayerName = strings.TrimSpace(req.PayerName)
	payment.StudentReference = optionalString(req.StudentReference)
	payment.Amount = req.Amount
	payment.Currency = req.Currency
	if payment.Currency == "" {
		payment.Currency = s.schoolCurrency(ctx, scope)
	}
	payment.PaymentDate = req.PaymentDate
	payment.Method = req.Method
	payment.Status = req.Status
	if payment.Status == "" {
		payment.Status = models.PaymentStatusCompleted
	}
	payment.Reference = optionalString(req.Reference)
	payment.Description = optionalString(req.Description)
	payment.AcademicYearID = yearID
	payment.TermID = termID
	return nil
}

func (s *PaymentService) schoolCurrency(ctx context.Context, scope models.TenantScope) string {
	if s.settings != nil {
		if value := s.settings.Value(ctx, scope, models.SettingKeyCurrency); currencyPattern.MatchString(value) {
			return value
		}
	}
	return defaultCurrency
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return appErrors.FieldError("to", "to must not be before from")
	}
	return nil
}
