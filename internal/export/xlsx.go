package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/club-membership/internal/model"
)

// StatusSheet is the name of the single worksheet in the status workbook.
const StatusSheet = "dues_status"

// StatusWorkbook writes the roster as an XLSX workbook with the same
// columns as StatusCSV.  Amounts are stored as numbers.
func StatusWorkbook(w io.Writer, period string, rows []model.MemberDues) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), StatusSheet); err != nil {
		return err
	}
	header := make([]any, len(StatusHeader))
	for i, h := range StatusHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(StatusSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{period, r.Name, r.StudentID, string(r.Status), r.AmountDue, r.PaidAmount}
		if err := f.SetSheetRow(StatusSheet, cell, &values); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
