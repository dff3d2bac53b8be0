package services

import (
	"context"
	"fmt"
	"time"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/pkg/validator"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// BookingExportSource lists bookings for a date window
type BookingExportSource interface {
	ListForExport(ctx context.Context, from, to string) ([]models.BookingDetails, error)
}

// Export is a rendered spreadsheet
type Export struct {
	FileName string
	Data     []byte
	Rows     int
}

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
	maxExportDays = 366
)

var bookingExportHeaders = []string{
	"ID", "Date", "Time", "Service", "Customer", "Provider", "Hours", "Status",
	"Total", "Provider Amount", "Commission", "Refund", "Address", "Created At",
}

// ExportService renders admin booking exports as .xlsx
type ExportService struct {
	bookings BookingExportSource
	audit    *AuditService
	shareBps int64
	logger   *logrus.Logger
}

// NewExportService creates a new export service
func NewExportService(bookings BookingExportSource, audit *AuditService, shareBps int64, logger *logrus.Logger) *ExportService {
	return &ExportService{bookings: bookings, audit: audit, shareBps: shareBps, logger: logger}
}

// ExportBookings renders every booking dated within [from, to] (YYYY-MM-DD,
// inclusive) to a workbook with a detail sheet and a per-status summary
func (s *ExportService) ExportBookings(ctx context.Context, actor Actor, from, to string) (*Export, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can export bookings"}
	}

	start, err := validator.ParseDate(from)
	if err != nil {
		return nil, validation("from", "%s", err.Error())
	}
	end, err := validator.ParseDate(to)
	if err != nil {
		return nil, validation("to", "%s", err.Error())
	}
	if end.Before(start) {
		return nil, validation("to", "must not be before from")
	}
	if end.Sub(start) > maxExportDays*24*time.Hour {
		return nil, validation("to", "export window is limited to %d days", maxExportDays)
	}

	rows, err := s.bookings.ListForExport(ctx, start.Format(validator.DateLayout), end.Format(validator.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00

	for i, h := range bookingExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(bookingExportHeaders), 1)
	_ = f.SetCellStyle(bookingsSheet, "A1", lastHeader, headerStyle)

	type tally struct {
		count int
		total models.Money
	}
	summary := make(map[models.BookingStatus]*tally)

	for i := range rows {
		b := &rows[i]
		r := i + 2

		var providerAmount, commission interface{}
		if amount, ok := b.EffectiveProviderAmount(s.shareBps); ok {
			providerAmount = amount.Float64()
			commission = (b.TotalAmount - amount).Float64()
			if b.CommissionAmount != nil {
				commission = b.CommissionAmount.Float64()
			}
		}

		values := []interface{}{
			b.ID, b.BookingDate, b.BookingTime, b.ServiceName, b.CustomerName, b.ProviderName,
			b.DurationHours, string(b.Status), b.TotalAmount.Float64(), providerAmount, commission,
			string(b.RefundStatus), b.Address, b.CreatedAt.Format(time.RFC3339),
		}
		for c, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}

		t := summary[b.Status]
		if t == nil {
			t = &tally{}
			summary[b.Status] = t
		}
		t.count++
		t.total += b.TotalAmount
	}
	if len(rows) > 0 {
		first, _ := excelize.CoordinatesToCellName(9, 2)
		last, _ := excelize.CoordinatesToCellName(11, len(rows)+1)
		_ = f.SetCellStyle(bookingsSheet, first, last, moneyStyle)
	}

	_ = f.SetColWidth(bookingsSheet, "A", "C", 12)
	_ = f.SetColWidth(bookingsSheet, "D", "F", 22)
	_ = f.SetColWidth(bookingsSheet, "G", "L", 15)
	_ = f.SetColWidth(bookingsSheet, "M", "M", 40)
	_ = f.SetColWidth(bookingsSheet, "N", "N", 24)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.SetCellValue(summarySheet, "A1", fmt.Sprintf("Period: %s - %s", from, to))
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	_ = f.SetCellStyle(summarySheet, "A1", "A1", titleStyle)
	_ = f.SetSheetRow(summarySheet, "A3", &[]interface{}{"Status", "Bookings", "Total"})
	_ = f.SetCellStyle(summarySheet, "A3", "C3", headerStyle)
	row := 4
	for _, st := range models.AllBookingStatuses {
		t := summary[st]
		if t == nil {
			t = &tally{}
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetSheetRow(summarySheet, cell, &[]interface{}{string(st), t.count, t.total.Float64()})
		row++
	}
	_ = f.SetColWidth(summarySheet, "A", "C", 22)

	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
		"rows": len(rows),
	}).Info("Bookings exported")
	s.audit.LogAdminAction(ctx, actor, models.AuditActionBookingsExported, "booking", 0,
		map[string]interface{}{"from": from, "to": to, "rows": len(rows)})

	return &Export{
		FileName: fmt.Sprintf("bookings_%s_to_%s.xlsx", start.Format(validator.DateLayout), end.Format(validator.DateLayout)),
		Data:     buf.Bytes(),
		Rows:     len(rows),
	}, nil
}
