package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type paymentRepoStub struct {
	payments  map[string]*models.Payment
	exportCap int
}

func (s *paymentRepoStub) List(ctx context.Context, schoolID string, filter models.PaymentFilter) ([]models.Payment, int, float64, error) {
	var out []models.Payment
	var sum float64
	for _, p := range s.payments {
		if p.SchoolID == schoolID {
			out = append(out, *p)
			sum += p.Amount
		}
	}
	return out, len(out), sum, nil
}

func (s *paymentRepoStub) ListAll(ctx context.Context, schoolID string, filter models.PaymentFilter, limit int) ([]models.Payment, error) {
	s.exportCap = limit
	out, _, _, err := s.List(ctx, schoolID, filter)
	return out, err
}

func (s *paymentRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok || p.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *paymentRepoStub) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "pay" + payment.PayerName
	s.payments[payment.ID] = payment
	return nil
}

func (s *paymentRepoStub) Update(ctx context.Context, payment *models.Payment) error {
	s.payments[payment.ID] = payment
	return nil
}

func (s *paymentRepoStub) Delete(ctx context.Context, schoolID, id string) error {
	delete(s.payments, id)
	return nil
}

type settingValues map[string]string

func (s settingValues) Value(ctx context.Context, scope models.TenantScope, key string) string {
	return s[key]
}

type payrollRepoStub struct {
	payrolls map[string]*models.Payroll
	period   bool
	paidAt   time.Time
}

func (s *payrollRepoStub) List(ctx context.Context, schoolID string, filter models.PayrollFilter) ([]models.PayrollDetail, int, error) {
	var out []models.PayrollDetail
	for _, p := range s.payrolls {
		out = append(out, models.PayrollDetail{Payroll: *p, StaffName: "Grace Wanjiru"})
	}
	return out, len(out), nil
}

func (s *payrollRepoStub) ListAll(ctx context.Context, schoolID string, filter models.PayrollFilter, limit int) ([]models.PayrollDetail, error) {
	out, _, err := s.List(ctx, schoolID, filter)
	return out, err
}

func (s *payrollRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.Payroll, error) {
	p, ok := s.payrolls[id]
	if !ok || p.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *payrollRepoStub) ExistsForPeriod(ctx context.Context, schoolID, staffID string, start, end time.Time, excludeID string) (bool, error) {
	return s.period, nil
}

func (s *payrollRepoStub) Create(ctx context.Context, payroll *models.Payroll) error {
	payroll.ID = "pr-new"
	clone := *payroll
	s.payrolls[payroll.ID] = &clone
	return nil
}

func (s *payrollRepoStub) Update(ctx context.Context, payroll *models.Payroll) error {
	clone := *payroll
	s.payrolls[payroll.ID] = &clone
	return nil
}

func (s *payrollRepoStub) MarkPaid(ctx context.Context, schoolID, id string, paidAt time.Time) error {
	s.paidAt = paidAt
	s.payrolls[id].Status = models.PayrollStatusPaid
	s.payrolls[id].PaidAt = &paidAt
	return nil
}

func (s *payrollRepoStub) Delete(ctx context.Context, schoolID, id string) error {
	delete(s.payrolls, id)
	return nil
}

type auditSink struct {
	entries []*models.AuditLog
}

func (a *auditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

func TestStaffServiceDeleteSoftWhenPayrollExists(t *testing.T) {
	_, _, staff, departments := academicFixture()
	svc := NewStaffService(staff, departments, nil, nil, nil)

	staff.payrolls = 3
	result, err := svc.Delete(context.Background(), testScope, "st1")
	require.NoError(t, err)
	assert.True(t, result.SoftDeleted)
	assert.Equal(t, models.StaffStatusTerminated, staff.members["st1"].Status)
	assert.Empty(t, staff.deleted)

	staff.payrolls = 0
	result, err = svc.Delete(context.Background(), testScope, "st1")
	require.NoError(t, err)
	assert.False(t, result.SoftDeleted)
	assert.Equal(t, []string{"st1"}, staff.deleted)
}

func TestStaffServiceCreate(t *testing.T) {
	_, _, staff, departments := academicFixture()
	svc := NewStaffService(staff, departments, nil, nil, nil)

	_, err := svc.Create(context.Background(), testScope, StaffRequest{FirstName: "Ann", LastName: "Kamau", Email: "GRACE@school.test", Position: "Teacher"})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = svc.Create(context.Background(), testScope, StaffRequest{FirstName: "Ann", LastName: "Kamau", Email: "ann@school.test", Position: "Teacher", Salary: -5})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Details, "salary")

	dept := "d1"
	member, err := svc.Create(context.Background(), testScope, StaffRequest{FirstName: "Ann", LastName: "Kamau", Email: "ann@school.test", Position: "Teacher", DepartmentID: &dept, Salary: 1200})
	require.NoError(t, err)
	assert.Equal(t, models.EmploymentFullTime, member.EmploymentType)
	assert.Equal(t, models.StaffStatusActive, member.Status)
	assert.Equal(t, "Ann Kamau", member.FullName())
}

func TestPaymentServiceDefaultsCurrencyFromSettings(t *testing.T) {
	years, terms, _, _ := academicFixture()
	repo := &paymentRepoStub{payments: map[string]*models.Payment{}}
	svc := NewPaymentService(repo, years, terms, settingValues{models.SettingKeyCurrency: "KES"}, nil, nil, nil, 0)

	termID := "term1"
	payment, err := svc.Create(context.Background(), testScope, Actor{UserID: "u1"}, PaymentRequest{
		PayerName: "Joseph Mutua", Amount: 250, PaymentDate: date(2024, 10, 2), Method: models.PaymentMethodMobileMoney, TermID: &termID,
	})
	require.NoError(t, err)
	assert.Equal(t, "KES", payment.Currency)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "y1", *payment.AcademicYearID)
	assert.Equal(t, "u1", *payment.RecordedBy)

	fallback := NewPaymentService(repo, years, terms, settingValues{}, nil, nil, nil, 0)
	payment, err = fallback.Create(context.Background(), testScope, Actor{}, PaymentRequest{PayerName: "Mary", Amount: 10, PaymentDate: date(2024, 10, 3), Method: models.PaymentMethodCash, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", payment.Currency)

	payment, err = fallback.Create(context.Background(), testScope, Actor{}, PaymentRequest{PayerName: "Tom", Amount: 10, PaymentDate: date(2024, 10, 3), Method: models.PaymentMethodCash})
	require.NoError(t, err)
	assert.Equal(t, "USD", payment.Currency)
}

func TestPaymentServiceValidation(t *testing.T) {
	years, terms, _, _ := academicFixture()
	repo := &paymentRepoStub{payments: map[string]*models.Payment{}}
	svc := NewPaymentService(repo, years, terms, nil, nil, nil, nil, 0)

	_, err := svc.Create(context.Background(), testScope, Actor{}, PaymentRequest{PayerName: "X", Amount: 1, PaymentDate: date(2024, 1, 1), Method: "barter"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	_, err = svc.Create(context.Background(), testScope, Actor{}, PaymentRequest{PayerName: "X", Amount: 1, PaymentDate: date(2024, 1, 1), Method: models.PaymentMethodCash, Currency: "US1"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	yearID, termID := "y2", "term1"
	_, err = svc.Create(context.Background(), testScope, Actor{}, PaymentRequest{PayerName: "X", Amount: 1, PaymentDate: date(2024, 1, 1), Method: models.PaymentMethodCash, AcademicYearID: &yearID, TermID: &termID})
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	from, to := date(2024, 5, 1), date(2024, 4, 1)
	_, err = svc.List(context.Background(), testScope, models.PaymentFilter{From: &from, To: &to})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestPaymentServiceListAndExport(t *testing.T) {
	repo := &paymentRepoStub{payments: map[string]*models.Payment{
		"p1": {ID: "p1", SchoolID: "s1a", PayerName: "Joseph", Amount: 150, Currency: "USD", PaymentDate: date(2024, 9, 5), Method: models.PaymentMethodCash, Status: models.PaymentStatusCompleted},
		"p2": {ID: "p2", SchoolID: "s1a", PayerName: "Mary", Amount: 50.5, Currency: "USD", PaymentDate: date(2024, 9, 6), Method: models.PaymentMethodCard, Status: models.PaymentStatusCompleted},
		"p3": {ID: "p3", SchoolID: "s2a", PayerName: "Other", Amount: 999, Currency: "USD", PaymentDate: date(2024, 9, 6), Method: models.PaymentMethodCard, Status: models.PaymentStatusCompleted},
	}}
	svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, 250)

	list, err := svc.List(context.Background(), testScope, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Payments, 2)
	assert.Equal(t, 200.5, list.TotalAmount)
	assert.Equal(t, 2, list.Pagination.TotalCount)

	file, err := svc.Export(context.Background(), testScope, models.PaymentFilter{}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))
	assert.Contains(t, string(file.Body), "Joseph")
	assert.NotContains(t, string(file.Body), "Other")
	assert.Equal(t, 250, repo.exportCap)

	_, err = svc.Export(context.Background(), testScope, models.PaymentFilter{}, "docx")
	assert.Equal(t, appErrors.ErrUnsupportedFormat.Code, appErrors.FromError(err).Code)
}

func TestNetSalary(t *testing.T) {
	assert.Equal(t, 1150.0, NetSalary(1000, 200.25, 50.25))
	assert.Equal(t, 0.1, NetSalary(0.1, 0.2, 0.2))
}

func TestPayrollServiceCreate(t *testing.T) {
	_, _, staff, _ := academicFixture()
	repo := &payrollRepoStub{payrolls: map[string]*models.Payroll{}}
	svc := NewPayrollService(repo, staff, nil, nil, nil, nil, 0)

	base := PayrollRequest{StaffID: "st1", PeriodStart: date(2024, 9, 1), PeriodEnd: date(2024, 9, 30), BasicSalary: 1000, Allowances: 100, Deductions: 1200}
	_, err := svc.Create(context.Background(), testScope, base)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Details, "deductions")

	base.Deductions = 150
	base.StaffID = "st2"
	_, err = svc.Create(context.Background(), testScope, base)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	base.StaffID = "st1"
	repo.period = true
	_, err = svc.Create(context.Background(), testScope, base)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	repo.period = false
	payroll, err := svc.Create(context.Background(), testScope, base)
	require.NoError(t, err)
	assert.Equal(t, 950.0, payroll.NetSalary)
	assert.Equal(t, models.PayrollStatusDraft, payroll.Status)

	bad := base
	bad.PeriodEnd = bad.PeriodStart
	_, err = svc.Create(context.Background(), testScope, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestPayrollServicePaidIsImmutable(t *testing.T) {
	_, _, staff, _ := academicFixture()
	repo := &payrollRepoStub{payrolls: map[string]*models.Payroll{
		"pr1": {ID: "pr1", SchoolID: "s1a", StaffID: "st1", PeriodStart: date(2024, 9, 1), PeriodEnd: date(2024, 9, 30), BasicSalary: 1000, NetSalary: 1000, Status: models.PayrollStatusApproved},
	}}
	audit := &auditSink{}
	svc := NewPayrollService(repo, staff, audit, nil, nil, nil, 0)
	fixed := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	payroll, err := svc.MarkPaid(context.Background(), testScope, Actor{UserID: "bursar"}, "pr1")
	require.NoError(t, err)
	assert.Equal(t, models.PayrollStatusPaid, payroll.Status)
	assert.Equal(t, fixed, *payroll.PaidAt)
	assert.Equal(t, fixed, repo.paidAt)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionPayrollPaid, audit.entries[0].Action)
	assert.Equal(t, "s1a", *audit.entries[0].SchoolID)

	_, err = svc.MarkPaid(context.Background(), testScope, Actor{}, "pr1")
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))

	_, err = svc.Update(context.Background(), testScope, "pr1", PayrollRequest{StaffID: "st1", PeriodStart: date(2024, 9, 1), PeriodEnd: date(2024, 9, 30), BasicSalary: 2000})
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))

	err = svc.Delete(context.Background(), testScope, "pr1")
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))
	assert.Contains(t, repo.payrolls, "pr1")
}

func TestPayrollServiceExportXLSX(t *testing.T) {
	repo := &payrollRepoStub{payrolls: map[string]*models.Payroll{
		"pr1": {ID: "pr1", SchoolID: "s1a", StaffID: "st1", PeriodStart: date(2024, 9, 1), PeriodEnd: date(2024, 9, 30), NetSalary: 1000, Status: models.PayrollStatusDraft},
	}}
	svc := NewPayrollService(repo, nil, nil, nil, nil, nil, 0)

	file, err := svc.Export(context.Background(), testScope, models.PayrollFilter{}, "xlsx")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))
	assert.NotEmpty(t, file.Body)
}

func TestPaidGuardError(t *testing.T) {
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(paidGuardError(sql.ErrNoRows, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(paidGuardError(assert.AnError, "x")))
}
