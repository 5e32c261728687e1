package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"ad-refiner-go/internal/modelcall"
)

const (
	callsSheet   = "Model Calls"
	summarySheet = "By Model"
)

var callHeaders = []string{
	"ID", "Post ID", "First Seq", "Last Seq", "Model", "Status", "Error",
	"Retry Attempts", "Prompt Tokens", "Completion Tokens", "Total Tokens",
	"Created At", "Updated At",
}

var summaryHeaders = []string{
	"Model", "Calls", "Success", "Heuristic", "Failed", "Total Tokens",
}

// WriteWorkbook renders the call records into an XLSX workbook: one row per
// call plus a per-model summary sheet. Records are written in the order
// given (the store lists newest-first).
func WriteWorkbook(w io.Writer, records []modelcall.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", callsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(callsSheet, "A1", &callHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		row := []any{
			rec.ID,
			rec.PostID,
			rec.FirstSegmentSeq,
			rec.LastSegmentSeq,
			rec.ModelName,
			string(rec.Status),
			rec.ErrorMessage,
			rec.RetryAttempts,
			rec.PromptTokens,
			rec.CompletionTokens,
			rec.TotalTokens,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(callsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	if err := writeSummarySheet(f, Summarize(records)); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, sum Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeaders); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for i, mb := range sum.ByModel {
		row := []any{mb.Model, mb.Calls, mb.Success, mb.Heuristic, mb.Failed, mb.TotalTokens}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}
