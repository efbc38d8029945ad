package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
)

// SummaryView is the reviewed closing state rendered by exports and the
// summary endpoint.
type SummaryView struct {
	Shift         closing.Shift                      `json:"shift"`
	Currency      string                             `json:"currency"`
	GeneratedAt   time.Time                          `json:"generatedAt"`
	Steps         []application.Step                 `json:"steps"`
	CurrentStep   application.Step                   `json:"currentStep"`
	Expected      []closing.IslandExpectedCollection `json:"expected"`
	Variance      []closing.VarianceResult           `json:"variance"`
	Grand         closing.VarianceResult             `json:"grandVariance"`
	TotalDebt     float64                            `json:"totalCollectedDebt"`
	RemainingDebt float64                            `json:"remainingDebt"`
	Allocations   []closing.DebtAllocation           `json:"allocations"`
	Payload       closing.ClosingPayload             `json:"payload"`
	Validation    closing.ValidationResult           `json:"validation"`
	CanClose      bool                               `json:"canClose"`
}

// BuildSummaryView assembles the view from a live session.
func BuildSummaryView(session *application.Session, currency string, now time.Time) SummaryView {
	return SummaryView{
		Shift:         session.Shift(),
		Currency:      currency,
		GeneratedAt:   now.UTC(),
		Steps:         session.Steps(),
		CurrentStep:   session.CurrentStep(),
		Expected:      session.ExpectedCollections(),
		Variance:      session.VarianceByIsland(),
		Grand:         session.GrandVariance(),
		TotalDebt:     session.TotalCollectedDebt(),
		RemainingDebt: session.RemainingDebt(),
		Allocations:   session.Allocations(),
		Payload:       session.PayloadPreview(now),
		Validation:    session.ValidationErrors(now),
		CanClose:      session.CanCloseShift(now),
	}
}

// BuildClosingSummaryPDF renders a minimal PDF for a closing summary.
func BuildClosingSummaryPDF(view SummaryView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Shift Closing Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Shift: %s", view.Shift.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", view.Shift.StationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Opened: %s", view.Shift.OpenedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", view.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Expected (%s): %.2f", view.Currency, view.Grand.TotalExpected))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Collected (%s): %.2f", view.Currency, view.Grand.TotalCollected))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Variance: %.2f (%s)", view.Grand.Variance, view.Grand.Class))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Island", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Expected", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Collected", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Variance", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Class", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, result := range view.Variance {
		pdf.CellFormat(40, 6, result.IslandID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", result.TotalExpected), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", result.TotalCollected), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", result.Variance), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(result.Class), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	if len(view.Allocations) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 6, "Debtor", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Vehicle", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, allocation := range view.Allocations {
			pdf.CellFormat(55, 6, allocation.DebtorName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, allocation.VehiclePlate, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", allocation.Amount), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildClosingSummaryXLSX renders a minimal XLSX for a closing summary.
func BuildClosingSummaryXLSX(view SummaryView) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	debtSheet := "debt"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(readingsSheet)
	f.NewSheet(debtSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Shift Closing Summary")
	_ = f.SetCellValue(summarySheet, "A3", "Shift")
	_ = f.SetCellValue(summarySheet, "B3", view.Shift.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Station")
	_ = f.SetCellValue(summarySheet, "B4", view.Shift.StationID)
	_ = f.SetCellValue(summarySheet, "A5", "Currency")
	_ = f.SetCellValue(summarySheet, "B5", view.Currency)
	_ = f.SetCellValue(summarySheet, "A6", "Expected")
	_ = f.SetCellValue(summarySheet, "B6", view.Grand.TotalExpected)
	_ = f.SetCellValue(summarySheet, "A7", "Collected")
	_ = f.SetCellValue(summarySheet, "B7", view.Grand.TotalCollected)
	_ = f.SetCellValue(summarySheet, "A8", "Variance")
	_ = f.SetCellValue(summarySheet, "B8", view.Grand.Variance)
	_ = f.SetCellValue(summarySheet, "A9", "Class")
	_ = f.SetCellValue(summarySheet, "B9", string(view.Grand.Class))

	_ = f.SetCellValue(readingsSheet, "A1", "Pump")
	_ = f.SetCellValue(readingsSheet, "B1", "Electric")
	_ = f.SetCellValue(readingsSheet, "C1", "Manual")
	_ = f.SetCellValue(readingsSheet, "D1", "Liters")
	_ = f.SetCellValue(readingsSheet, "E1", "Unit Price")
	_ = f.SetCellValue(readingsSheet, "F1", "Sales")
	for i, reading := range view.Payload.PumpReadings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), reading.PumpID)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), reading.ElectricMeter)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), reading.ManualMeter)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), reading.LitersDispensed)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", row), reading.UnitPrice)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("F%d", row), reading.SalesValue)
	}

	_ = f.SetCellValue(debtSheet, "A1", "Debtor")
	_ = f.SetCellValue(debtSheet, "B1", "Vehicle")
	_ = f.SetCellValue(debtSheet, "C1", "Amount")
	for i, allocation := range view.Allocations {
		row := i + 2
		_ = f.SetCellValue(debtSheet, fmt.Sprintf("A%d", row), allocation.DebtorName)
		_ = f.SetCellValue(debtSheet, fmt.Sprintf("B%d", row), allocation.VehiclePlate)
		_ = f.SetCellValue(debtSheet, fmt.Sprintf("C%d", row), allocation.Amount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
