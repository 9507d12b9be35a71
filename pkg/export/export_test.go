package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Payroll",
		Headers: []string{"staff", "net_salary"},
		Rows: []map[string]string{
			{"staff": "Jane Doe", "net_salary": "1200.00"},
			{"staff": "John Roe", "net_salary": "950.50"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestRenderCSV(t *testing.T) {
	file, err := Render(FormatCSV, sampleDataset(), "payroll")
	require.NoError(t, err)
	assert.Equal(t, "payroll.csv", file.Name)
	assert.Equal(t, "staff,net_salary\nJane Doe,1200.00\nJohn Roe,950.50\n", string(file.Body))
}

func TestRenderPDF(t *testing.T) {
	file, err := Render(FormatPDF, sampleDataset(), "payroll")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestRenderXLSX(t *testing.T) {
	file, err := Render(FormatXLSX, sampleDataset(), "payroll")
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(file.Body))
	require.NoError(t, err)
	defer book.Close()

	value, err := book.GetCellValue("Payroll", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", value)
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{}, "empty")
	assert.Error(t, err)
}
