// Package export renders admin spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sparkclean/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
)

var bookingHeaders = []string{
	"ID", "Customer", "Email", "Service", "Date", "Time", "Address", "Status", "Total", "Estimated", "Created",
}

// BookingsWorkbook lists bookings and a per-status summary. users resolves
// customer names; missing entries leave the columns blank.
func BookingsWorkbook(bookings []models.Booking, users map[int64]models.User) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.SetCellStyle(bookingsSheet, "A1", lastCol+"1", headerStyle)

	for i, b := range bookings {
		u := users[b.UserID]
		row := []interface{}{
			b.ID, u.FullName, u.Email, b.ServiceType, b.BookingDate, b.BookingTime,
			b.Address, b.Status, b.TotalAmount, b.EstimatedPrice, b.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(bookingsSheet, "B", "C", 25)
	_ = f.SetColWidth(bookingsSheet, "G", "G", 40)

	if err := writeSummary(f, bookings); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeSummary(f *excelize.File, bookings []models.Booking) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	counts := make(map[string]int)
	amounts := make(map[string]float64)
	for _, b := range bookings {
		counts[b.Status]++
		amounts[b.Status] += b.TotalAmount
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	_ = f.SetSheetRow(summarySheet, "A1", &[]interface{}{"Status", "Bookings", "Amount"})
	for i, s := range statuses {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(summarySheet, cell, &[]interface{}{s, counts[s], amounts[s]})
	}
	// Revenue counts completed bookings only.
	cell, _ := excelize.CoordinatesToCellName(1, len(statuses)+3)
	_ = f.SetSheetRow(summarySheet, cell, &[]interface{}{"Revenue", counts[models.StatusCompleted], amounts[models.StatusCompleted]})
	return nil
}

// WriteBookings streams the workbook to w.
func WriteBookings(w io.Writer, bookings []models.Booking, users map[int64]models.User) error {
	f, err := BookingsWorkbook(bookings, users)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveBookings writes the workbook into dir and returns its path.
func SaveBookings(dir string, at time.Time, bookings []models.Booking, users map[int64]models.User) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	f, err := BookingsWorkbook(bookings, users)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, fmt.Sprintf("bookings_%s.xlsx", at.UTC().Format("20060102_150405")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}
