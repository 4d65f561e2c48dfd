package importer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into an in-memory .xlsx and returns its bytes.
func buildWorkbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, cells := range rows {
		for c, v := range cells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestOpenSheetHeaderOnFirstRow(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"案件編號", "發生時間", "發生地點"},
		{"A1140001", "114/01/08 09:30:00", "新化區中山路100號"},
	})

	sheet, err := OpenSheet(wb)
	require.NoError(t, err)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "A1140001", rows[0].Field("案件編號"))
}

func TestOpenSheetDetectsOffsetHeader(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"臺南市交通事故統計"},
		{""},
		{"案件編號", "發生時間", "發生地點"},
		{"A1140001", "114/01/08 09:30:00", "新化區中山路100號"},
	})

	sheet, err := OpenSheet(wb)
	require.NoError(t, err)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Number)
	assert.Equal(t, "A1140001", rows[0].Field("案件編號"))
}

func TestOpenSheetCleansHeaderNames(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"案件 編號", "發生\n時間"},
		{"A1140001", "114/01/08"},
	})

	sheet, err := OpenSheet(wb)
	require.NoError(t, err)
	assert.True(t, sheet.HasColumn("案件編號"))
	assert.True(t, sheet.HasColumn("發生時間"))

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "A1140001", rows[0].Field("案件編號"))
}

func TestRowFieldSynonymOrder(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"案件編號", "事故編號"},
		{"", "B999"},
	})

	sheet, err := OpenSheet(wb)
	require.NoError(t, err)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	// First synonym is empty, second carries the value.
	assert.Equal(t, "B999", rows[0].Field("案件編號", "事故編號"))
	assert.Equal(t, "", rows[0].Field("不存在的欄位"))
}

func TestRowNonEmptyCells(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"案件編號", "發生時間", "發生地點", "備註"},
		{"", " ", "x", "y"},
	})

	sheet, err := OpenSheet(wb)
	require.NoError(t, err)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].NonEmptyCells())
}

func TestOpenSheetRejectsGarbage(t *testing.T) {
	_, err := OpenSheet(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}

// testRNG gives converters a deterministic jitter source.
func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}
