package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Name           string  `validate:"required"`
	Amount         float64 `validate:"gte=0"`
	AcademicYearID string  `validate:"required"`
}

func TestValidationBuildsFieldDetails(t *testing.T) {
	err := validator.New().Struct(samplePayload{Amount: -1})
	require.Error(t, err)

	appErr := Validation(err, "invalid payload")
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "is required", appErr.Details["name"])
	assert.Equal(t, "must be at least 0", appErr.Details["amount"])
	assert.Equal(t, "is required", appErr.Details["academic_year_id"])
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	known := Clone(ErrNotFound, "staff not found")
	assert.Same(t, known, FromError(fmt.Errorf("wrapped: %w", known)))
}

func TestFieldError(t *testing.T) {
	appErr := FieldError("end_date", "end_date must be after start_date")
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "end_date must be after start_date", appErr.Details["end_date"])
	assert.Nil(t, ErrValidation.Details)
}
