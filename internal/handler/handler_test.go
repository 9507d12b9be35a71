package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/export"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

var handlerScope = models.TenantScope{TenantID: "t1", SchoolID: "s1", Source: models.ScopeSourceClaims}

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext builds a request context carrying claims and, when scoped, a resolved tenant scope.
func testContext(method, target, body string, scoped bool) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, TenantID: "t1", SchoolID: "s1"})
	if scoped {
		c.Set(middleware.ContextScopeKey, handlerScope)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

type fakePaymentService struct {
	lastFilter models.PaymentFilter
	lastFormat string
	list       *service.PaymentList
	err        error
}

func (f *fakePaymentService) List(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter) (*service.PaymentList, error) {
	f.lastFilter = filter
	return f.list, f.err
}

func (f *fakePaymentService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Payment, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
}

func (f *fakePaymentService) Create(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.PaymentRequest) (*models.Payment, error) {
	return &models.Payment{ID: "p1", SchoolID: scope.SchoolID, PayerName: req.PayerName, RecordedBy: &actor.UserID}, nil
}

func (f *fakePaymentService) Update(ctx context.Context, scope models.TenantScope, id string, req service.PaymentRequest) (*models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	return nil
}

func (f *fakePaymentService) Export(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter, format string) (*export.File, error) {
	f.lastFormat = format
	if format == "doc" {
		return nil, appErrors.ErrUnsupportedFormat
	}
	return &export.File{Name: "payments-20250101.csv", ContentType: "text/csv", Body: []byte("Date,Payer\n")}, nil
}

func TestPaymentHandlerListReportsTotal(t *testing.T) {
	svc := &fakePaymentService{list: &service.PaymentList{
		Payments:    []models.Payment{{ID: "p1", Amount: 100}, {ID: "p2", Amount: 50.5}},
		Pagination:  &models.Pagination{Page: 1, PageSize: 20, TotalCount: 2},
		TotalAmount: 150.5,
	}}
	handler := NewPaymentHandler(svc)

	c, rec := testContext(http.MethodGet, "/payments?status=completed&from=2025-01-01&to=2025-03-31&limit=5", "", true)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, 150.5, envelope.Meta["total_amount"])
	assert.Equal(t, 2, envelope.Pagination.TotalCount)
	assert.Equal(t, models.PaymentStatus("completed"), svc.lastFilter.Status)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
	require.NotNil(t, svc.lastFilter.From)
	assert.Equal(t, "2025-01-01", svc.lastFilter.From.Format(dateLayout))
}

func TestPaymentHandlerRejectsBadDate(t *testing.T) {
	handler := NewPaymentHandler(&fakePaymentService{})

	c, rec := testContext(http.MethodGet, "/payments?from=01/02/2025", "", true)
	handler.List(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "from must be formatted as YYYY-MM-DD", decode(t, rec).Error.Details["from"])
}

func TestPaymentHandlerExport(t *testing.T) {
	svc := &fakePaymentService{}
	handler := NewPaymentHandler(svc)

	c, rec := testContext(http.MethodGet, "/payments/export?format=csv", "", true)
	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="payments-20250101.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Payer\n", rec.Body.String())

	c, rec = testContext(http.MethodGet, "/payments/export?format=doc", "", true)
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandlerCreate(t *testing.T) {
	handler := NewPaymentHandler(&fakePaymentService{})

	c, rec := testContext(http.MethodPost, "/payments", `{"payer_name":"Mary Atieno","amount":100`, true)
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rec).Error.Code)

	c, rec = testContext(http.MethodPost, "/payments", `{"payer_name":"Mary Atieno","amount":100}`, true)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payment))
	assert.Equal(t, "Mary Atieno", payment.PayerName)
	assert.Equal(t, "u1", *payment.RecordedBy)
}

func TestHandlersRequireScope(t *testing.T) {
	handler := NewPaymentHandler(&fakePaymentService{})

	c, rec := testContext(http.MethodGet, "/payments", "", false)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TENANT_REQUIRED", decode(t, rec).Error.Code)
}

type fakeCommunicationService struct {
	lastEmail service.EmailRequest
	err       error
}

func (f *fakeCommunicationService) List(ctx context.Context, scope models.TenantScope, filter models.CommunicationFilter) ([]models.CommunicationLog, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeCommunicationService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.CommunicationLog, error) {
	return nil, nil
}

func (f *fakeCommunicationService) SendEmail(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.EmailRequest) (*models.CommunicationLog, error) {
	f.lastEmail = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.CommunicationLog{ID: "log1", Channel: models.ChannelEmail, Status: models.CommunicationQueued, RequestedBy: &actor.UserID}, nil
}

func (f *fakeCommunicationService) SendSMS(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.SMSRequest) (*models.CommunicationLog, error) {
	return nil, f.err
}

func TestCommunicationHandlerQueuesEmail(t *testing.T) {
	svc := &fakeCommunicationService{}
	handler := NewCommunicationHandler(svc)

	c, rec := testContext(http.MethodPost, "/communications/email", `{"to":["parent@example.com"],"subject":"Trip","body":"Consent forms due"}`, true)
	handler.SendEmail(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var entry models.CommunicationLog
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &entry))
	assert.Equal(t, models.CommunicationQueued, entry.Status)
	assert.Equal(t, "u1", *entry.RequestedBy)
	assert.Equal(t, []string{"parent@example.com"}, svc.lastEmail.To)
}

func TestCommunicationHandlerPropagatesValidation(t *testing.T) {
	handler := NewCommunicationHandler(&fakeCommunicationService{err: appErrors.FieldError("message", "must be at most 480")})

	c, rec := testContext(http.MethodPost, "/communications/sms", `{"to":["+254700000001"],"message":"x"}`, true)
	handler.SendSMS(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type fakeDashboardService struct {
	summary *models.DashboardSummary
	hit     bool
	userID  string
}

func (f *fakeDashboardService) Summary(ctx context.Context, scope models.TenantScope, userID string) (*models.DashboardSummary, bool, error) {
	f.userID = userID
	return f.summary, f.hit, nil
}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	svc := &fakeDashboardService{summary: &models.DashboardSummary{SchoolID: "s1", Classes: 4}, hit: true}
	handler := NewDashboardHandler(svc)

	c, rec := testContext(http.MethodGet, "/dashboard/summary", "", true)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "u1", svc.userID)
	var summary models.DashboardSummary
	require.NoError(t, json.Unmarshal(envelope.Data, &summary))
	assert.Equal(t, 4, summary.Classes)
}

type fakeTenantService struct {
	lastFilter models.TenantFilter
	updated    []string
}

func (f *fakeTenantService) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Tenant{{ID: "t1", Name: "Greenfield"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeTenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	return &models.Tenant{ID: id, Status: models.TenantStatusActive}, nil
}

func (f *fakeTenantService) Create(ctx context.Context, actor service.Actor, req service.CreateTenantRequest) (*models.Tenant, error) {
	return &models.Tenant{ID: "t-new", Name: req.Name, Slug: req.Slug}, nil
}

func (f *fakeTenantService) Update(ctx context.Context, actor service.Actor, id string, req service.UpdateTenantRequest) (*models.Tenant, error) {
	f.updated = append(f.updated, id)
	tenant := &models.Tenant{ID: id, Status: models.TenantStatusActive}
	if req.Status != nil {
		tenant.Status = *req.Status
	}
	return tenant, nil
}

func (f *fakeTenantService) Delete(ctx context.Context, actor service.Actor, id string) error {
	return nil
}

type fakeSchoolService struct {
	deleteErr error
}

func (f *fakeSchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeSchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	tenantID := "t1"
	if id == "s2" {
		tenantID = "t2"
	}
	return &models.School{ID: id, TenantID: tenantID}, nil
}

func (f *fakeSchoolService) Create(ctx context.Context, tenantID string, req service.SchoolRequest) (*models.School, error) {
	return &models.School{ID: "s-new", TenantID: tenantID, Name: req.Name}, nil
}

func (f *fakeSchoolService) Update(ctx context.Context, id string, req service.SchoolRequest) (*models.School, error) {
	return &models.School{ID: id, TenantID: "t1", Name: req.Name}, nil
}

func (f *fakeSchoolService) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

func asSuperAdmin(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin})
}

func TestTenantHandlerBlocksForeignTenant(t *testing.T) {
	handler := NewTenantHandler(&fakeTenantService{}, &fakeSchoolService{})

	c, rec := testContext(http.MethodGet, "/tenants/t2/schools", "", false)
	c.Params = gin.Params{{Key: "id", Value: "t2"}}
	handler.ListSchools(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = testContext(http.MethodGet, "/tenants/t2", "", false)
	c.Params = gin.Params{{Key: "id", Value: "t2"}}
	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = testContext(http.MethodGet, "/tenants/t1", "", false)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Get(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodDelete, "/schools/s2", "", false)
	c.Params = gin.Params{{Key: "id", Value: "s2"}}
	handler.DeleteSchool(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTenantHandlerListLimitsAdminToOwnTenant(t *testing.T) {
	svc := &fakeTenantService{}
	handler := NewTenantHandler(svc, &fakeSchoolService{})

	c, rec := testContext(http.MethodGet, "/tenants", "", false)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.lastFilter.ID)

	c, rec = testContext(http.MethodGet, "/tenants", "", false)
	asSuperAdmin(c)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.lastFilter.ID)
}

func TestTenantHandlerUpdateOwnership(t *testing.T) {
	svc := &fakeTenantService{}
	handler := NewTenantHandler(svc, &fakeSchoolService{})

	c, rec := testContext(http.MethodPut, "/tenants/t2", `{"status":"SUSPENDED"}`, false)
	c.Params = gin.Params{{Key: "id", Value: "t2"}}
	handler.Update(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = testContext(http.MethodPut, "/tenants/t1", `{"status":"SUSPENDED"}`, false)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Update(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.updated)

	c, rec = testContext(http.MethodPut, "/tenants/t1", `{"name":"Greenfield Academy"}`, false)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodPut, "/tenants/t2", `{"status":"SUSPENDED"}`, false)
	c.Params = gin.Params{{Key: "id", Value: "t2"}}
	asSuperAdmin(c)
	handler.Update(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var tenant models.Tenant
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &tenant))
	assert.Equal(t, models.TenantStatusSuspended, tenant.Status)
	assert.Equal(t, []string{"t1", "t2"}, svc.updated)
}

func TestTenantHandlerDeleteSchoolStillInUse(t *testing.T) {
	handler := NewTenantHandler(&fakeTenantService{}, &fakeSchoolService{
		deleteErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "school still holds data"),
	})

	c, rec := testContext(http.MethodDelete, "/schools/s1", "", false)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.DeleteSchool(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, decode(t, rec).Error.Code)
}

func TestSystemHandlerReady(t *testing.T) {
	handler := NewSystemHandler(nil, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	c, rec := testContext(http.MethodGet, "/ready", "", false)
	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "connection refused", body.Checks["redis"])

	c, rec = testContext(http.MethodGet, "/health", "", false)
	handler.Health(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
