package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeCriteriaWorkbook(t *testing.T) string {
	t.Helper()
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Criteria")
	require.NoError(t, err)
	header := sheet.AddRow()
	for _, col := range []string{"Name", "Score_Footfall", "Score_Accessibility"} {
		header.AddCell().SetString(col)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("Hauz Khas")
	row.AddCell().SetFloat(8.5)
	row.AddCell().SetFloat(7)

	notes, err := f.AddSheet("Notes")
	require.NoError(t, err)
	notes.AddRow().AddCell().SetString("scratch")

	path := filepath.Join(t.TempDir(), "criteria.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_DefaultSheet(t *testing.T) {
	path := writeCriteriaWorkbook(t)

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Hauz Khas", rows[1][0])
}

func TestReadXLSX_NamedSheet(t *testing.T) {
	path := writeCriteriaWorkbook(t)

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Notes"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "scratch", rows[0][0])
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := writeCriteriaWorkbook(t)

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Scores"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Scores" not found`)
}

func TestReadXLSX_IndexOutOfRange(t *testing.T) {
	path := writeCriteriaWorkbook(t)

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet index 5 out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
