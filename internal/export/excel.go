package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turfbook/internal/domain"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"
const paymentsSheet = "Payments"

// Exporter renders bookings and their payments for a date range into an
// Excel workbook for the operations team.
type Exporter struct {
	bookings domain.BookingStore
	payments domain.PaymentStore
	path     string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingStore, payments domain.PaymentStore, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		bookings: bookings,
		payments: payments,
		path:     path,
		logger:   logger,
	}
}

// ExportBookings writes the workbook and returns its file path.
// Dates are inclusive YYYY-MM-DD bounds.
func (e *Exporter) ExportBookings(ctx context.Context, startDate, endDate string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.bookings.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeBookingsSheet(f, bookings, startDate, endDate); err != nil {
		return "", err
	}
	if err := e.writePaymentsSheet(ctx, f, bookings); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx", startDate, endDate)
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeBookingsSheet(f *excelize.File, bookings []*models.Booking, startDate, endDate string) error {
	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Период: %s - %s", startDate, endDate))

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	headers := []string{
		"Code", "Date", "Time", "Turf", "Customer", "Phone",
		"Total", "Advance", "Received", "Payment", "Status",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, header)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.MergeCell(bookingsSheet, "A1", lastCol)

	for i, booking := range bookings {
		row := i + 3
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("A%d", row), booking.BookingCode)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("B%d", row), booking.BookingDate)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("C%d", row), models.FormatTimeRange(booking.Hours))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("D%d", row), booking.TurfName)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("E%d", row), booking.UserName)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("F%d", row), booking.Phone)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("G%d", row), booking.TotalAmount)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("H%d", row), booking.AdvanceAmount)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("I%d", row), booking.ReceivedAmount)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("J%d", row), booking.PaymentStatus)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("K%d", row), booking.Status)

		if styleID, err := statusStyle(f, booking.Status); err == nil {
			cell := fmt.Sprintf("K%d", row)
			_ = f.SetCellStyle(bookingsSheet, cell, cell, styleID)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 18)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 14)
	_ = f.SetColWidth(bookingsSheet, "D", "E", 20)
	_ = f.SetColWidth(bookingsSheet, "F", "K", 12)

	return nil
}

func (e *Exporter) writePaymentsSheet(ctx context.Context, f *excelize.File, bookings []*models.Booking) error {
	if _, err := f.NewSheet(paymentsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}

	headers := []string{"Booking", "Gateway", "Order ID", "Payment ID", "Amount", "Type", "Status", "Created"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(paymentsSheet, cell, header)
		_ = f.SetCellStyle(paymentsSheet, cell, cell, headerStyle)
	}

	row := 2
	for _, booking := range bookings {
		payments, err := e.payments.GetBookingPayments(ctx, booking.ID)
		if err != nil {
			e.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Error getting booking payments")
			continue
		}

		for _, payment := range payments {
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("A%d", row), booking.BookingCode)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("B%d", row), payment.Gateway)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("C%d", row), payment.GatewayOrderID)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("D%d", row), payment.GatewayPaymentID)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("E%d", row), payment.Amount)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("F%d", row), payment.PaymentType)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("G%d", row), payment.Status)
			_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("H%d", row), payment.CreatedAt.Format("02.01.2006 15:04"))
			row++
		}
	}

	_ = f.SetColWidth(paymentsSheet, "A", "A", 18)
	_ = f.SetColWidth(paymentsSheet, "B", "H", 16)

	return nil
}

// statusStyle picks the fill for a booking status cell.
func statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.BookingStatusConfirmed, models.BookingStatusCompleted:
		color = "#C6EFCE"
	case models.BookingStatusPendingPayment:
		color = "#FFEB9C"
	case models.BookingStatusCancelled:
		color = "#FFC7CE"
	default:
		color = "#FFFFFF"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}

// DefaultRange returns the inclusive date bounds used when a caller asks for
// an export without explicit dates: today through today plus days.
func DefaultRange(days int) (string, string) {
	now := time.Now()
	return now.Format("2006-01-02"), now.AddDate(0, 0, days).Format("2006-01-02")
}
