package services

import (
	"context"
	"fmt"
	"time"

	"github.com/grumming/grumming-app-sub004/models"
	"github.com/xuri/excelize/v2"
)

const (
	SettlementsSheet = "Settlements"
	PaymentsSheet    = "Payments"
)

type ReportStore interface {
	ListSettlements(ctx context.Context, limit int) ([]models.Settlement, error)
	PaymentsForSettlements(ctx context.Context, settlementIDs []string) ([]models.Payment, error)
}

// ReportService builds the settlement reconciliation workbook.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// SettlementReport returns an XLSX workbook with the latest limit settlements and the payments they paid out.
func (s *ReportService) SettlementReport(ctx context.Context, limit int) ([]byte, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	settlements, err := s.store.ListSettlements(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(settlements))
	for _, st := range settlements {
		ids = append(ids, st.RazorpaySettlementID)
	}
	var payments []models.Payment
	if len(ids) > 0 {
		if payments, err = s.store.PaymentsForSettlements(ctx, ids); err != nil {
			return nil, err
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SettlementsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(PaymentsSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	settlementRows := make([][]interface{}, 0, len(settlements))
	for _, st := range settlements {
		settlementRows = append(settlementRows, []interface{}{
			st.RazorpaySettlementID, st.Amount.InexactFloat64(), st.Fees.InexactFloat64(), st.Tax.InexactFloat64(),
			st.UTR, st.Status, formatTime(st.SettledAt),
		})
	}
	if err := writeSheet(f, SettlementsSheet, header,
		[]string{"Settlement ID", "Amount", "Fees", "Tax", "UTR", "Status", "Settled At"}, settlementRows); err != nil {
		return nil, err
	}

	paymentRows := make([][]interface{}, 0, len(payments))
	for _, p := range payments {
		paymentRows = append(paymentRows, []interface{}{
			deref(p.SettlementID), p.RazorpayOrderID, deref(p.RazorpayPaymentID), p.BookingID.String(),
			p.Amount.InexactFloat64(), p.PlatformFee.InexactFloat64(), p.SalonAmount.InexactFloat64(),
			string(p.Status), formatTime(p.SettledAt),
		})
	}
	if err := writeSheet(f, PaymentsSheet, header,
		[]string{"Settlement ID", "Order ID", "Payment ID", "Booking ID", "Amount", "Platform Fee", "Salon Amount", "Status", "Settled At"},
		paymentRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
