package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const classColumns = "id, school_id, name, grade_level, section, capacity, academic_year_id, class_teacher_id, created_at, updated_at"

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List retrieves classes with filters.
func (r *ClassRepository) List(ctx context.Context, schoolID string, filter models.ClassFilter) ([]models.Class, int, error) {
	b := scoped("school_id", schoolID)
	if filter.GradeLevel != nil {
		b.add("grade_level = $%d", *filter.GradeLevel)
	}
	if filter.AcademicYearID != "" {
		b.add("academic_year_id = $%d", filter.AcademicYearID)
	}
	b.search(filter.Search, "name", "section")

	order := orderBy(filter.SortBy, filter.SortOrder, "grade_level", "ASC", map[string]bool{
		"name": true, "grade_level": true, "capacity": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM classes %s %s, name ASC LIMIT %d OFFSET %d", classColumns, b.where(), order, limit, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, "SELECT "+classColumns+" FROM classes WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsByNameSection checks the name and section pair is unique within a school.
func (r *ClassRepository) ExistsByNameSection(ctx context.Context, schoolID, name string, section *string, excludeID string) (bool, error) {
	query, args := excluding(
		"SELECT 1 FROM classes WHERE school_id = $1 AND LOWER(name) = LOWER($2) AND COALESCE(section, '') = COALESCE($3, '')",
		[]interface{}{schoolID, name, section}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check class uniqueness: %w", err)
	}
	return exists, nil
}

// Create inserts a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, school_id, name, grade_level, section, capacity, academic_year_id, class_teacher_id, created_at, updated_at) VALUES (:id, :school_id, :name, :grade_level, :section, :capacity, :academic_year_id, :class_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class record.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, grade_level = :grade_level, section = :section, capacity = :capacity, academic_year_id = :academic_year_id, class_teacher_id = :class_teacher_id, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class.
func (r *ClassRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
