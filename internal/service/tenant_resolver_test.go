package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type memoryCache struct {
	items map[string][]byte
	gets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.items = map[string][]byte{}
	return nil
}

type tenantRepoStub struct {
	tenants map[string]*models.Tenant
	schools int
	finds   int
}

func (s *tenantRepoStub) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error) {
	var out []models.Tenant
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (s *tenantRepoStub) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	s.finds++
	t, ok := s.tenants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (s *tenantRepoStub) ExistsBySlug(ctx context.Context, slug, excludeID string) (bool, error) {
	for _, t := range s.tenants {
		if t.Slug == slug && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *tenantRepoStub) Create(ctx context.Context, tenant *models.Tenant) error {
	tenant.ID = "tenant-new"
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *tenantRepoStub) Update(ctx context.Context, tenant *models.Tenant) error {
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *tenantRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.tenants, id)
	return nil
}

func (s *tenantRepoStub) CountSchools(ctx context.Context, id string) (int, error) {
	return s.schools, nil
}

type schoolRepoStub struct {
	schools    map[string]*models.School
	firstCalls int
	created    []*models.School
	dependents int
	deleteErr  error
}

func (s *schoolRepoStub) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	return nil, 0, nil
}

func (s *schoolRepoStub) FindByID(ctx context.Context, id string) (*models.School, error) {
	school, ok := s.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return school, nil
}

func (s *schoolRepoStub) FirstByTenant(ctx context.Context, tenantID string) (*models.School, error) {
	s.firstCalls++
	var first *models.School
	for _, school := range s.schools {
		if school.TenantID != tenantID {
			continue
		}
		if first == nil || school.CreatedAt.Before(first.CreatedAt) {
			first = school
		}
	}
	if first == nil {
		return nil, sql.ErrNoRows
	}
	return first, nil
}

func (s *schoolRepoStub) ExistsByCode(ctx context.Context, tenantID, code, excludeID string) (bool, error) {
	for _, school := range s.schools {
		if school.TenantID == tenantID && school.Code == code && school.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *schoolRepoStub) Create(ctx context.Context, school *models.School) error {
	school.ID = "school-new"
	school.CreatedAt = time.Now()
	s.schools[school.ID] = school
	s.created = append(s.created, school)
	return nil
}

func (s *schoolRepoStub) Update(ctx context.Context, school *models.School) error {
	s.schools[school.ID] = school
	return nil
}

func (s *schoolRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.schools, id)
	return nil
}

func (s *schoolRepoStub) CountDependents(ctx context.Context, id string) (int, error) {
	return s.dependents, nil
}

func resolverFixture() (*TenantResolver, *tenantRepoStub, *schoolRepoStub, *memoryCache) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := &tenantRepoStub{tenants: map[string]*models.Tenant{
		"t1": {ID: "t1", Name: "Greenfield", Slug: "greenfield", Status: models.TenantStatusActive},
		"t2": {ID: "t2", Name: "Riverside", Slug: "riverside", Status: models.TenantStatusActive},
		"t3": {ID: "t3", Name: "Closed", Slug: "closed", Status: models.TenantStatusSuspended},
	}}
	schools := &schoolRepoStub{schools: map[string]*models.School{
		"s1a": {ID: "s1a", TenantID: "t1", Code: "A", CreatedAt: base},
		"s1b": {ID: "s1b", TenantID: "t1", Code: "B", CreatedAt: base.Add(time.Hour)},
		"s2a": {ID: "s2a", TenantID: "t2", Code: "A", CreatedAt: base},
		"s3a": {ID: "s3a", TenantID: "t3", Code: "A", CreatedAt: base},
	}}
	store := newMemoryCache()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	return NewTenantResolver(tenants, schools, cache, time.Minute, nil), tenants, schools, store
}

func TestTenantResolverPrefersClaimsSchool(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	scope, err := resolver.Resolve(context.Background(), ScopeRequest{
		Claims: &models.JWTClaims{Role: models.RoleAdmin, TenantID: "t1", SchoolID: "s1b"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TenantScope{TenantID: "t1", SchoolID: "s1b", Source: models.ScopeSourceClaims}, *scope)
}

func TestTenantResolverClaimsSchoolWithoutTenantLooksUpSchool(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	scope, err := resolver.Resolve(context.Background(), ScopeRequest{
		Claims: &models.JWTClaims{Role: models.RoleTeacher, SchoolID: "s2a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", scope.TenantID)
}

func TestTenantResolverRejectsExplicitSchoolOutsideClaims(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	_, err := resolver.Resolve(context.Background(), ScopeRequest{
		Claims:   &models.JWTClaims{Role: models.RoleAdmin, TenantID: "t1", SchoolID: "s1a"},
		SchoolID: "s1b",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestTenantResolverFallsBackToFirstSchoolAndCaches(t *testing.T) {
	resolver, _, schools, store := resolverFixture()
	claims := &models.JWTClaims{Role: models.RoleBursar, TenantID: "t1"}

	scope, err := resolver.Resolve(context.Background(), ScopeRequest{Claims: claims})
	require.NoError(t, err)
	assert.Equal(t, "s1a", scope.SchoolID)
	assert.Equal(t, models.ScopeSourceFirstSchool, scope.Source)

	_, err = resolver.Resolve(context.Background(), ScopeRequest{Claims: claims})
	require.NoError(t, err)
	assert.Equal(t, 1, schools.firstCalls)
	assert.Contains(t, store.items, FirstSchoolCacheKey("t1"))
}

func TestTenantResolverUsesTenantHeader(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	scope, err := resolver.Resolve(context.Background(), ScopeRequest{TenantID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, "s2a", scope.SchoolID)
}

func TestTenantResolverExplicitSchoolMustBelongToTenant(t *testing.T) {
	resolver, _, _, _ := resolverFixture()

	_, err := resolver.Resolve(context.Background(), ScopeRequest{TenantID: "t1", SchoolID: "s2a"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	scope, err := resolver.Resolve(context.Background(), ScopeRequest{TenantID: "t1", SchoolID: "s1b"})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeSourceExplicit, scope.Source)
}

func TestTenantResolverExplicitSchoolWithoutTenant(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	scope, err := resolver.Resolve(context.Background(), ScopeRequest{SchoolID: "s2a"})
	require.NoError(t, err)
	assert.Equal(t, "t2", scope.TenantID)
}

func TestTenantResolverSuperAdminPicksAnySchool(t *testing.T) {
	resolver, _, _, _ := resolverFixture()
	scope, err := resolver.Resolve(context.Background(), ScopeRequest{
		Claims:   &models.JWTClaims{Role: models.RoleSuperAdmin},
		SchoolID: "s3a",
	})
	require.NoError(t, err)
	assert.Equal(t, "t3", scope.TenantID)
}

func TestTenantResolverErrors(t *testing.T) {
	resolver, _, _, _ := resolverFixture()

	_, err := resolver.Resolve(context.Background(), ScopeRequest{})
	assert.Equal(t, appErrors.ErrTenantRequired.Code, appErrors.FromError(err).Code)

	_, err = resolver.Resolve(context.Background(), ScopeRequest{SchoolID: "missing"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, err = resolver.Resolve(context.Background(), ScopeRequest{TenantID: "t3"})
	assert.Equal(t, appErrors.ErrTenantSuspended.Code, appErrors.FromError(err).Code)

	_, err = resolver.Resolve(context.Background(), ScopeRequest{
		Claims:   &models.JWTClaims{Role: models.RoleAdmin, TenantID: "t1"},
		TenantID: "t2",
	})
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestSchoolServiceCreateInvalidatesFirstSchoolCache(t *testing.T) {
	_, tenants, schools, store := resolverFixture()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	store.items[FirstSchoolCacheKey("t1")] = []byte(`"s1a"`)

	svc := NewSchoolService(schools, tenants, cache, nil, nil)
	school, err := svc.Create(context.Background(), "t1", SchoolRequest{Name: "Annex", Code: "annex"})
	require.NoError(t, err)
	assert.Equal(t, "ANNEX", school.Code)
	assert.NotContains(t, store.items, FirstSchoolCacheKey("t1"))

	_, err = svc.Create(context.Background(), "t1", SchoolRequest{Name: "Dup", Code: "A"})
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestSchoolServiceDeleteRefusesSchoolWithData(t *testing.T) {
	_, tenants, schools, _ := resolverFixture()
	svc := NewSchoolService(schools, tenants, nil, nil, nil)

	schools.dependents = 1
	err := svc.Delete(context.Background(), "s1b")
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
	assert.Contains(t, schools.schools, "s1b")

	schools.dependents = 0
	schools.deleteErr = fmt.Errorf("delete school: %w", &pq.Error{Code: "23503"})
	err = svc.Delete(context.Background(), "s1b")
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)

	schools.deleteErr = nil
	require.NoError(t, svc.Delete(context.Background(), "s1b"))
	assert.NotContains(t, schools.schools, "s1b")
}

func TestTenantServiceDeleteRequiresNoSchools(t *testing.T) {
	_, tenants, _, _ := resolverFixture()
	tenants.schools = 2
	svc := NewTenantService(tenants, nil, nil, nil, nil)

	err := svc.Delete(context.Background(), Actor{}, "t1")
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)

	tenants.schools = 0
	require.NoError(t, svc.Delete(context.Background(), Actor{}, "t1"))
	assert.NotContains(t, tenants.tenants, "t1")
}

func TestTenantServiceCreateValidatesSlug(t *testing.T) {
	_, tenants, _, _ := resolverFixture()
	svc := NewTenantService(tenants, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Actor{}, CreateTenantRequest{Name: "Bad", Slug: "has spaces"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Details, "slug")

	_, err = svc.Create(context.Background(), Actor{}, CreateTenantRequest{Name: "Dup", Slug: "Greenfield"})
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	tenant, err := svc.Create(context.Background(), Actor{}, CreateTenantRequest{Name: "Hilltop", Slug: "hill-top"})
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusActive, tenant.Status)
}
