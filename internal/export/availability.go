// Package export renders projected availability as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"marketbook/internal/model"
)

// Sheet names.
const (
	SheetAvailability = "Availability"
	SheetBookings     = "Bookings"
)

var (
	availabilityColumns = []string{"Date", "Weekday", "Work hours", "Breaks", "Free ranges", "Capacity", "Available", "Reason"}
	bookingColumns      = []string{"Date", "Start", "End", "Resource", "Status", "Booking ID"}
)

// WriteAvailability writes the projected days of market to wr as .xlsx.
func WriteAvailability(wr io.Writer, market *model.Market, days []model.AvailableDay) error {
	wb, err := build(market, days)
	if err != nil {
		return err
	}
	defer wb.close()
	return wb.save(wr)
}

// SaveAvailability writes the workbook to path.
func SaveAvailability(path string, market *model.Market, days []model.AvailableDay) error {
	wb, err := build(market, days)
	if err != nil {
		return err
	}
	defer wb.close()
	return wb.saveAs(path)
}

func build(market *model.Market, days []model.AvailableDay) (*workbook, error) {
	wb := newWorkbook()
	if err := writeDays(wb, days); err != nil {
		wb.close()
		return nil, fmt.Errorf("availability sheet: %w", err)
	}
	if err := writeBookings(wb, market, days); err != nil {
		wb.close()
		return nil, fmt.Errorf("bookings sheet: %w", err)
	}
	return wb, nil
}

func writeDays(wb *workbook, days []model.AvailableDay) error {
	if err := wb.addSheet(SheetAvailability); err != nil {
		return err
	}
	if err := wb.writeHeader(availabilityColumns); err != nil {
		return err
	}
	for _, d := range days {
		hours := ""
		if d.WorkHours != nil {
			hours = d.WorkHours.String()
		}
		capacity := ""
		if d.Capacity != nil {
			capacity = fmt.Sprintf("%d/%d", d.Capacity.Booked, d.Capacity.Total)
		}
		available := "no"
		if d.Available {
			available = "yes"
		}
		row := []any{
			d.Date.String(),
			d.Date.Weekday().String(),
			hours,
			joinIntervals(d.Breaks),
			joinIntervals(d.FreeRanges),
			capacity,
			available,
			d.ClosedReason,
		}
		if err := wb.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func writeBookings(wb *workbook, market *model.Market, days []model.AvailableDay) error {
	if err := wb.addSheet(SheetBookings); err != nil {
		return err
	}
	if err := wb.writeHeader(bookingColumns); err != nil {
		return err
	}
	for _, d := range days {
		for _, b := range d.Bookings {
			resource := b.ResourceID
			if market != nil {
				if m, ok := market.Member(b.ResourceID); ok {
					resource = m.Name
				}
			}
			row := []any{b.Date.String(), b.StartTime.String(), b.EndTime.String(), resource, b.Status, b.ID}
			if err := wb.writeRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinIntervals(ivs []model.Interval) string {
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ", ")
}
