package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/export"
)

type payrollRepository interface {
	List(ctx context.Context, schoolID string, filter models.PayrollFilter) ([]models.PayrollDetail, int, error)
	ListAll(ctx context.Context, schoolID string, filter models.PayrollFilter, limit int) ([]models.PayrollDetail, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Payroll, error)
	ExistsForPeriod(ctx context.Context, schoolID, staffID string, start, end time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, payroll *models.Payroll) error
	Update(ctx context.Context, payroll *models.Payroll) error
	MarkPaid(ctx context.Context, schoolID, id string, paidAt time.Time) error
	Delete(ctx context.Context, schoolID, id string) error
}

// PayrollRequest creates or replaces a payroll entry.
type PayrollRequest struct {
	StaffID     string               `json:"staff_id" validate:"required"`
	PeriodStart time.Time            `json:"period_start" validate:"required"`
	PeriodEnd   time.Time            `json:"period_end" validate:"required"`
	BasicSalary float64              `json:"basic_salary" validate:"gte=0"`
	Allowances  float64              `json:"allowances" validate:"gte=0"`
	Deductions  float64              `json:"deductions" validate:"gte=0"`
	Status      models.PayrollStatus `json:"status" validate:"omitempty,oneof=draft approved"`
	Notes       *string              `json:"notes"`
}

var errPayrollPaid = appErrors.Clone(appErrors.ErrPreconditionFailed, "paid payroll cannot be modified")

// PayrollService manages staff payroll.
type PayrollService struct {
	repo      payrollRepository
	staff     staffLookup
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	maxRows   int
	now       func() time.Time
}

// NewPayrollService constructs a PayrollService.
func NewPayrollService(repo payrollRepository, staff staffLookup, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger, maxRows int) *PayrollService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &PayrollService{repo: repo, staff: staff, audit: audit, cache: cache, validator: validate, logger: logger, maxRows: maxRows, now: time.Now}
}

// List returns payroll entries with staff names.
func (s *PayrollService) List(ctx context.Context, scope models.TenantScope, filter models.PayrollFilter) ([]models.PayrollDetail, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list payroll")
	}
	return rows, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a payroll entry.
func (s *PayrollService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Payroll, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payroll, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "payroll")
	}
	return payroll, nil
}

// Create computes net salary and stores a payroll entry.
func (s *PayrollService) Create(ctx context.Context, scope models.TenantScope, req PayrollRequest) (*models.Payroll, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payroll := &models.Payroll{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, payroll, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, payroll); err != nil {
		return nil, internalError(err, "failed to create payroll")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return payroll, nil
}

// Update replaces an unpaid payroll entry.
func (s *PayrollService) Update(ctx context.Context, scope models.TenantScope, id string, req PayrollRequest) (*models.Payroll, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payroll, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "payroll")
	}
	if payroll.Status == models.PayrollStatusPaid {
		return nil, errPayrollPaid
	}
	if err := s.apply(ctx, payroll, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, payroll); err != nil {
		return nil, paidGuardError(err, "failed to update payroll")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return payroll, nil
}

// MarkPaid settles a payroll entry.
func (s *PayrollService) MarkPaid(ctx context.Context, scope models.TenantScope, actor Actor, id string) (*models.Payroll, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	payroll, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "payroll")
	}
	if payroll.Status == models.PayrollStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payroll is already paid")
	}

	before := *payroll
	paidAt := s.now().UTC()
	if err := s.repo.MarkPaid(ctx, scope.SchoolID, id, paidAt); err != nil {
		return nil, paidGuardError(err, "failed to mark payroll paid")
	}
	payroll.Status = models.PayrollStatusPaid
	payroll.PaidAt = &paidAt
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	recordAudit(ctx, s.audit, s.logger, actor, scope.SchoolID, models.AuditActionPayrollPaid, "payroll", id, before, payroll)
	return payroll, nil
}

// Delete removes an unpaid payroll entry.
func (s *PayrollService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	payroll, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return loadError(err, "payroll")
	}
	if payroll.Status == models.PayrollStatusPaid {
		return errPayrollPaid
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return paidGuardError(err, "failed to delete payroll")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

// Export renders payroll matching the filter.
func (s *PayrollService) Export(ctx context.Context, scope models.TenantScope, filter models.PayrollFilter, rawFormat string) (*export.File, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}
	rows, err := s.repo.ListAll(ctx, scope.SchoolID, filter, s.maxRows)
	if err != nil {
		return nil, internalError(err, "failed to load payroll for export")
	}

	data := export.Dataset{
		Title:   "Payroll",
		Headers: []string{"Staff", "Period Start", "Period End", "Basic", "Allowances", "Deductions", "Net", "Status"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, r := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Staff":        r.StaffName,
			"Period Start": r.PeriodStart.Format("2006-01-02"),
			"Period End":   r.PeriodEnd.Format("2006-01-02"),
			"Basic":        fmt.Sprintf("%.2f", r.BasicSalary),
			"Allowances":   fmt.Sprintf("%.2f", r.Allowances),
			"Deductions":   fmt.Sprintf("%.2f", r.Deductions),
			"Net":          fmt.Sprintf("%.2f", r.NetSalary),
			"Status":       string(r.Status),
		})
	}
	file, err := export.Render(format, data, "payroll-"+s.now().UTC().Format("20060102"))
	if err != nil {
		return nil, internalError(err, "failed to render payroll export")
	}
	return file, nil
}

func (s *PayrollService) apply(ctx context.Context, payroll *models.Payroll, req PayrollRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid payroll payload")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return appErrors.FieldError("period_end", "period_end must be after period_start")
	}
	net := NetSalary(req.BasicSalary, req.Allowances, req.Deductions)
	if net < 0 {
		return appErrors.FieldError("deductions", "deductions exceed gross salary")
	}

	if _, err := s.staff.FindByID(ctx, payroll.SchoolID, req.StaffID); err != nil {
		return loadError(err, "staff")
	}
	exists, err := s.repo.ExistsForPeriod(ctx, payroll.SchoolID, req.StaffID, req.PeriodStart, req.PeriodEnd, excludeID)
	if err != nil {
		return internalError(err, "failed to check payroll period")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "payroll already exists for this staff and period")
	}

	payroll.StaffID = req.StaffID
	payroll.PeriodStart = req.PeriodStart
	payroll.PeriodEnd = req.PeriodEnd
	payroll.BasicSalary = req.BasicSalary
	payroll.Allowances = req.Allowances
	payroll.Deductions = req.Deductions
	payroll.NetSalary = net
	payroll.Notes = optionalString(req.Notes)
	payroll.Status = req.Status
	if payroll.Status == "" {
		payroll.Status = models.PayrollStatusDraft
	}
	return nil
}

// NetSalary is basic plus allowances minus deductions, rounded to cents.
func NetSalary(basic, allowances, deductions float64) float64 {
	return math.Round((basic+allowances-deductions)*100) / 100
}

// paidGuardError maps a guarded write that matched no row to 412.
func paidGuardError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errPayrollPaid
	}
	return internalError(err, message)
}
