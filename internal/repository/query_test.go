package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterBuilderNumbersArguments(t *testing.T) {
	b := scoped("school_id", "school-1")
	b.add("status = $%d", "active")
	b.search("ann", "first_name", "last_name")

	assert.Equal(t, "WHERE school_id = $1 AND status = $2 AND (first_name ILIKE $3 OR last_name ILIKE $3)", b.where())
	assert.Equal(t, []interface{}{"school-1", "active", "%ann%"}, b.args)
}

func TestFilterBuilderSkipsBlankSearch(t *testing.T) {
	b := &filterBuilder{}
	b.search("   ", "name")
	assert.Equal(t, "WHERE 1=1", b.where())
}

func TestPageWindow(t *testing.T) {
	limit, offset := pageWindow(0, 0)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageWindow(3, 500)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)

	limit, offset = pageWindow(2, 50)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 50, offset)
}

func TestOrderByFallsBack(t *testing.T) {
	allowed := map[string]bool{"name": true}
	assert.Equal(t, "ORDER BY name ASC", orderBy("name", "asc", "created_at", "DESC", allowed))
	assert.Equal(t, "ORDER BY created_at DESC", orderBy("password; drop", "sideways", "created_at", "DESC", allowed))
}
