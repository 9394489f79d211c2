package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Sheet:  "Orders",
		Header: []string{"Number", "Date", "Customer", "Total"},
		Rows: [][]any{
			{"BS-20260101-ABCDEF", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), "Ada, Lovelace", Cents(1999)},
			{"BS-20260102-GHIJKL", time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC), `Grace "Amazing" Hopper`, Cents(500)},
		},
	}
}

func TestCSV(t *testing.T) {
	data, err := CSV(sampleTable())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Number", "Date", "Customer", "Total"}, records[0])
	assert.Equal(t, "Ada, Lovelace", records[1][2])
	assert.Equal(t, "2026-01-01T12:00:00Z", records[1][1])
	assert.Equal(t, `Grace "Amazing" Hopper`, records[2][2])
	assert.Equal(t, "5.00", records[2][3])
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(sampleTable())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Orders"}, f.GetSheetList())
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Number", rows[0][0])
	assert.Equal(t, "BS-20260101-ABCDEF", rows[1][0])
	assert.Equal(t, "19.99", rows[1][3])
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(sampleTable(), "pdf")
	assert.Error(t, err)
}

func TestCents(t *testing.T) {
	assert.Equal(t, "0.00", Cents(0))
	assert.Equal(t, "12.05", Cents(1205))
	assert.Equal(t, "-3.50", Cents(-350))
}

func TestContentType(t *testing.T) {
	assert.Contains(t, ContentType(FormatCSV), "text/csv")
	assert.Contains(t, ContentType(FormatXLSX), "spreadsheetml")
}
