package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const tenantColumns = "id, name, slug, domain, status, created_at, updated_at"

// TenantRepository handles persistence for tenants.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository instantiates a tenant repository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// List returns tenants matching the provided filter.
func (r *TenantRepository) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error) {
	b := &filterBuilder{}
	if filter.ID != "" {
		b.add("id = $%d", filter.ID)
	}
	if filter.Status != "" {
		b.add("status = $%d", filter.Status)
	}
	b.search(filter.Search, "name", "slug")

	order := orderBy(filter.SortBy, filter.SortOrder, "name", "ASC", map[string]bool{
		"name": true, "slug": true, "status": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM tenants %s %s LIMIT %d OFFSET %d", tenantColumns, b.where(), order, limit, offset)
	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tenants "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}
	return tenants, total, nil
}

// FindByID loads a tenant by identifier.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, "SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ExistsBySlug checks slug uniqueness, optionally ignoring one tenant.
func (r *TenantRepository) ExistsBySlug(ctx context.Context, slug, excludeID string) (bool, error) {
	query := "SELECT 1 FROM tenants WHERE slug = $1"
	args := []interface{}{slug}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check tenant slug: %w", err)
	}
	return true, nil
}

// Create inserts a new tenant.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	const query = `INSERT INTO tenants (id, name, slug, domain, status, created_at, updated_at) VALUES (:id, :name, :slug, :domain, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// Update persists tenant changes.
func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tenants SET name = :name, slug = :slug, domain = :domain, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return nil
}

// Delete removes a tenant.
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}

// CountSchools returns how many schools a tenant owns.
func (r *TenantRepository) CountSchools(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schools WHERE tenant_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count tenant schools: %w", err)
	}
	return count, nil
}
