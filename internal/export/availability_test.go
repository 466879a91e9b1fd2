package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"marketbook/internal/model"
)

func sampleDays() []model.AvailableDay {
	work := model.MustInterval("09:00", "18:00")
	return []model.AvailableDay{
		{
			Date:      model.MustDate("2026-10-19"),
			WorkHours: &work,
			Breaks:    []model.Interval{model.MustInterval("12:00", "13:00")},
			Bookings: []model.Booking{{
				ID:         "b1",
				Date:       model.MustDate("2026-10-19"),
				StartTime:  model.MustClock("10:00"),
				EndTime:    model.MustClock("11:00"),
				ResourceID: "r1",
				Status:     model.StatusConfirmed,
			}},
			Capacity:   &model.Capacity{Total: 2, Booked: 1, Available: 1},
			FreeRanges: []model.Interval{model.MustInterval("09:00", "12:00"), model.MustInterval("13:00", "18:00")},
			Available:  true,
		},
		{
			Date:         model.MustDate("2026-10-20"),
			ClosedReason: model.ClosedDayOff,
		},
	}
}

func TestWriteAvailability(t *testing.T) {
	market := &model.Market{ID: "m1", Members: []model.Resource{{ID: "r1", Name: "Anna"}}}

	var buf bytes.Buffer
	require.NoError(t, WriteAvailability(&buf, market, sampleDays()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetAvailability, SheetBookings}, f.GetSheetList())

	rows, err := f.GetRows(SheetAvailability)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, availabilityColumns, rows[0])
	assert.Equal(t, []string{"2026-10-19", "monday", "09:00-18:00", "12:00-13:00", "09:00-12:00, 13:00-18:00", "1/2", "yes"}, rows[1])
	assert.Equal(t, []string{"2026-10-20", "tuesday", "", "", "", "", "no", "day_off"}, rows[2])

	rows, err = f.GetRows(SheetBookings)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2026-10-19", "10:00", "11:00", "Anna", "confirmed", "b1"}, rows[1])
}

func TestSaveAvailability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, SaveAvailability(path, nil, sampleDays()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(SheetBookings, "D2")
	require.NoError(t, err)
	assert.Equal(t, "r1", v)
}
