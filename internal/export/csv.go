// Package export renders the admin dues rosters and payment ledgers as
// spreadsheet downloads.  CSV output starts with a UTF-8 BOM so that Excel
// detects the encoding of non-ASCII member names.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/iliyamo/club-membership/internal/model"
)

const bom = "\ufeff"

var (
	StatusHeader   = []string{"period", "name", "student_id", "status", "amount_due", "paid_amount"}
	PaymentsHeader = []string{"period", "payment_id", "user_id", "amount", "method", "memo", "created_by", "created_at"}
)

// StatusFilename and the others name the attachment for period.
func StatusFilename(period string) string   { return "dues_status_" + period + ".csv" }
func PaymentsFilename(period string) string { return "dues_payments_" + period + ".csv" }
func WorkbookFilename(period string) string { return "dues_status_" + period + ".xlsx" }

// StatusCSV writes one line per roster row.  An empty roster yields the
// header only.
func StatusCSV(w io.Writer, period string, rows []model.MemberDues) error {
	cw, err := start(w, StatusHeader)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(statusRecord(period, r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PaymentsCSV writes the payments of one period in the order given.
func PaymentsCSV(w io.Writer, period string, payments []model.DuesPayment) error {
	cw, err := start(w, PaymentsHeader)
	if err != nil {
		return err
	}
	for _, p := range payments {
		memo := ""
		if p.Memo != nil {
			memo = *p.Memo
		}
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			period, p.ID, p.UserID, strconv.FormatInt(p.Amount, 10),
			string(p.Method), memo, p.CreatedBy, created,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func start(w io.Writer, header []string) (*csv.Writer, error) {
	if _, err := io.WriteString(w, bom); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	return cw, nil
}

func statusRecord(period string, r model.MemberDues) []string {
	return []string{
		period, r.Name, r.StudentID, string(r.Status),
		strconv.FormatInt(r.AmountDue, 10), strconv.FormatInt(r.PaidAmount, 10),
	}
}
