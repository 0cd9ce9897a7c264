package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	ledger "chirho-events/internal/ledger/domain"
)

// BuildReceiptPDF renders a payment history receipt for a registration.
func BuildReceiptPDF(balance *ledger.PaymentBalance, payments []ledger.PaymentRecord, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Payment Receipt")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Registration: %s (%s)", balance.RegistrationID, balance.RegistrationType))
	pdf.Ln(5)
	if balance.EventID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Event: %s", balance.EventID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Due: %s", money(balance.TotalAmountDue)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Amount Paid: %s", money(balance.AmountPaid)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Remaining: %s", money(balance.AmountRemaining)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", balance.PaymentStatus))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Reference", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, payment := range payments {
		pdf.CellFormat(30, 6, paymentDay(payment), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(payment.Method), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, payment.Reference, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, string(payment.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, money(payment.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBalanceReportXLSX renders the balances of an event with a summary sheet.
func BuildBalanceReportXLSX(eventID string, balances []ledger.PaymentBalance, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	balancesSheet := "balances"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(balancesSheet); err != nil {
		return nil, err
	}

	totalDue := decimal.Zero
	totalPaid := decimal.Zero
	totalRemaining := decimal.Zero
	counts := map[ledger.PaymentStatus]int{}
	for _, balance := range balances {
		totalDue = totalDue.Add(balance.TotalAmountDue)
		totalPaid = totalPaid.Add(balance.AmountPaid)
		totalRemaining = totalRemaining.Add(balance.AmountRemaining)
		counts[balance.PaymentStatus]++
	}

	_ = f.SetCellValue(summarySheet, "A1", "Balance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Event")
	_ = f.SetCellValue(summarySheet, "B3", eventID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Registrations")
	_ = f.SetCellValue(summarySheet, "B5", len(balances))
	_ = f.SetCellValue(summarySheet, "A6", "Total Due")
	_ = f.SetCellValue(summarySheet, "B6", totalDue.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A7", "Total Paid")
	_ = f.SetCellValue(summarySheet, "B7", totalPaid.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A8", "Total Remaining")
	_ = f.SetCellValue(summarySheet, "B8", totalRemaining.InexactFloat64())
	row := 10
	for _, status := range []ledger.PaymentStatus{
		ledger.PaymentStatusUnpaid,
		ledger.PaymentStatusPartial,
		ledger.PaymentStatusPaidFull,
		ledger.PaymentStatusOverpaid,
	} {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(status))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), counts[status])
		row++
	}

	headers := []string{"Registration", "Type", "Total Due", "Amount Paid", "Remaining", "Status", "Last Payment"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(balancesSheet, cell, header)
	}
	for i, balance := range balances {
		r := i + 2
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("A%d", r), balance.RegistrationID)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("B%d", r), string(balance.RegistrationType))
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("C%d", r), balance.TotalAmountDue.InexactFloat64())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("D%d", r), balance.AmountPaid.InexactFloat64())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("E%d", r), balance.AmountRemaining.InexactFloat64())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("F%d", r), string(balance.PaymentStatus))
		if balance.LastPaymentDate != nil {
			_ = f.SetCellValue(balancesSheet, fmt.Sprintf("G%d", r), balance.LastPaymentDate.UTC().Format("2006-01-02"))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

func paymentDay(payment ledger.PaymentRecord) string {
	if payment.PaymentDate.IsZero() {
		return payment.CreatedAt.UTC().Format("2006-01-02")
	}
	return payment.PaymentDate.UTC().Format("2006-01-02")
}
