package interfaces

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
)

// MultiPublisher fans a shift closed event out to several publishers. Nil
// entries are skipped; every publisher runs even when an earlier one fails.
type MultiPublisher []application.ClosingPublisher

// NewMultiPublisher builds a fan-out publisher from the non-nil arguments.
func NewMultiPublisher(publishers ...application.ClosingPublisher) MultiPublisher {
	var out MultiPublisher
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m MultiPublisher) PublishShiftClosed(ctx context.Context, event application.ShiftClosed) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishShiftClosed(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportArchiver writes a closing workbook to disk for each closed shift,
// under <root>/<stationID>/<shiftID>.xlsx.
type ExportArchiver struct {
	root string
}

// NewExportArchiver constructs an archiver rooted at dir.
func NewExportArchiver(dir string) (*ExportArchiver, error) {
	if dir == "" {
		return nil, errors.New("closing archive: empty root dir")
	}
	return &ExportArchiver{root: dir}, nil
}

// PublishShiftClosed renders and stores the workbook.
func (a *ExportArchiver) PublishShiftClosed(ctx context.Context, event application.ShiftClosed) error {
	_ = ctx
	if a == nil {
		return errors.New("closing archive: nil archiver")
	}

	dir := filepath.Join(a.root, event.StationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	data, err := buildClosedShiftWorkbook(event)
	if err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	path := filepath.Join(dir, event.ShiftID+".xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

func buildClosedShiftWorkbook(event application.ShiftClosed) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(readingsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Closed Shift")
	_ = f.SetCellValue(summarySheet, "A3", "Shift")
	_ = f.SetCellValue(summarySheet, "B3", event.ShiftID)
	_ = f.SetCellValue(summarySheet, "A4", "Station")
	_ = f.SetCellValue(summarySheet, "B4", event.StationID)
	_ = f.SetCellValue(summarySheet, "A5", "Recorded By")
	_ = f.SetCellValue(summarySheet, "B5", event.RecordedByID)
	_ = f.SetCellValue(summarySheet, "A6", "Closed At")
	_ = f.SetCellValue(summarySheet, "B6", event.ClosedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A7", "Expected")
	_ = f.SetCellValue(summarySheet, "B7", event.GrandVariance.TotalExpected)
	_ = f.SetCellValue(summarySheet, "A8", "Collected")
	_ = f.SetCellValue(summarySheet, "B8", event.GrandVariance.TotalCollected)
	_ = f.SetCellValue(summarySheet, "A9", "Variance")
	_ = f.SetCellValue(summarySheet, "B9", event.GrandVariance.Variance)
	_ = f.SetCellValue(summarySheet, "A10", "Class")
	_ = f.SetCellValue(summarySheet, "B10", string(event.GrandVariance.Class))

	row := 12
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Island")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Expected")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), "Collected")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), "Variance")
	for _, island := range event.Islands {
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), island.IslandID)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), island.TotalExpected)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), island.TotalCollected)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), island.Variance)
	}

	_ = f.SetCellValue(readingsSheet, "A1", "Pump")
	_ = f.SetCellValue(readingsSheet, "B1", "Electric")
	_ = f.SetCellValue(readingsSheet, "C1", "Manual")
	_ = f.SetCellValue(readingsSheet, "D1", "Liters")
	_ = f.SetCellValue(readingsSheet, "E1", "Sales")
	for i, reading := range event.Payload.PumpReadings {
		r := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", r), reading.PumpID)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", r), reading.ElectricMeter)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", r), reading.ManualMeter)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", r), reading.LitersDispensed)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", r), reading.SalesValue)
	}

	out, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
