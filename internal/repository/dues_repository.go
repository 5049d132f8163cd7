package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/model"
)

// DuesRepo persists dues_charges and dues_payments.
type DuesRepo struct {
	q Querier
	d database.Dialect
}

func NewDuesRepo(q Querier, d database.Dialect) *DuesRepo { return &DuesRepo{q: q, d: d} }

func (r *DuesRepo) WithTx(tx *sql.Tx) *DuesRepo { return &DuesRepo{q: tx, d: r.d} }

const chargeCols = "id,period,amount,created_by,created_at"

func scanCharge(s scanner) (*model.DuesCharge, error) {
	var c model.DuesCharge
	if err := s.Scan(&c.ID, &c.Period, &c.Amount, &c.CreatedBy, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// InsertCharge stores a charge; a second charge for the same period
// yields ErrDuplicate.
func (r *DuesRepo) InsertCharge(ctx context.Context, c *model.DuesCharge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now()
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		"INSERT INTO dues_charges ("+chargeCols+") VALUES (?,?,?,?,?)"),
		c.ID, c.Period, c.Amount, c.CreatedBy, c.CreatedAt)
	if r.d.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *DuesRepo) ChargeByPeriod(ctx context.Context, period string) (*model.DuesCharge, error) {
	return scanCharge(r.q.QueryRowContext(ctx, r.d.Rebind(
		"SELECT "+chargeCols+" FROM dues_charges WHERE period=?"), period))
}

// LatestCharge returns the charge with the greatest period string.
func (r *DuesRepo) LatestCharge(ctx context.Context) (*model.DuesCharge, error) {
	return scanCharge(r.q.QueryRowContext(ctx,
		"SELECT "+chargeCols+" FROM dues_charges ORDER BY period DESC LIMIT 1"))
}

// ListCharges returns every charge, latest period first.
func (r *DuesRepo) ListCharges(ctx context.Context) ([]model.DuesCharge, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+chargeCols+" FROM dues_charges ORDER BY period DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DuesCharge{}
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// InsertPayment appends a payment row.
func (r *DuesRepo) InsertPayment(ctx context.Context, p *model.DuesPayment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO dues_payments (id,user_id,charge_id,amount,method,memo,created_by,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`),
		p.ID, p.UserID, p.ChargeID, p.Amount, string(p.Method), p.Memo, p.CreatedBy, p.CreatedAt)
	return err
}

// SumPaid totals the payments of one user against one charge; 0 if none.
func (r *DuesRepo) SumPaid(ctx context.Context, userID, chargeID string) (int64, error) {
	var total int64
	err := r.q.QueryRowContext(ctx, r.d.Rebind(
		"SELECT COALESCE(SUM(amount),0) FROM dues_payments WHERE user_id=? AND charge_id=?"),
		userID, chargeID).Scan(&total)
	return total, err
}

// SumPaidByCharge totals one user's payments per charge id.  Charges
// without payments are absent from the map.
func (r *DuesRepo) SumPaidByCharge(ctx context.Context, userID string) (map[string]int64, error) {
	return r.sums(ctx,
		"SELECT charge_id, COALESCE(SUM(amount),0) FROM dues_payments WHERE user_id=? GROUP BY charge_id", userID)
}

// SumPaidByUser totals one charge's payments per payer id.
func (r *DuesRepo) SumPaidByUser(ctx context.Context, chargeID string) (map[string]int64, error) {
	return r.sums(ctx,
		"SELECT user_id, COALESCE(SUM(amount),0) FROM dues_payments WHERE charge_id=? GROUP BY user_id", chargeID)
}

func (r *DuesRepo) sums(ctx context.Context, query, arg string) (map[string]int64, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			key   string
			total int64
		)
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		out[key] = total
	}
	return out, rows.Err()
}

const paymentSelect = `SELECT p.id, p.user_id, p.charge_id, p.amount, p.method, p.memo, p.created_by, p.created_at, c.period
	FROM dues_payments p JOIN dues_charges c ON c.id = p.charge_id`

// ListPaymentsByUser lists a user's payments, newest first.  A non-empty
// chargeID narrows the list to that charge.
func (r *DuesRepo) ListPaymentsByUser(ctx context.Context, userID, chargeID string) ([]model.DuesPayment, error) {
	if chargeID == "" {
		return r.payments(ctx, paymentSelect+" WHERE p.user_id=? ORDER BY p.created_at DESC", userID)
	}
	return r.payments(ctx, paymentSelect+" WHERE p.user_id=? AND p.charge_id=? ORDER BY p.created_at DESC", userID, chargeID)
}

// ListPaymentsByCharge lists every payment against a charge, newest first.
func (r *DuesRepo) ListPaymentsByCharge(ctx context.Context, chargeID string) ([]model.DuesPayment, error) {
	return r.payments(ctx, paymentSelect+" WHERE p.charge_id=? ORDER BY p.created_at DESC", chargeID)
}

func (r *DuesRepo) payments(ctx context.Context, query string, args ...any) ([]model.DuesPayment, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DuesPayment{}
	for rows.Next() {
		var (
			p      model.DuesPayment
			method string
			memo   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.ChargeID, &p.Amount, &method, &memo,
			&p.CreatedBy, &p.CreatedAt, &p.Period); err != nil {
			return nil, err
		}
		p.Method = model.PaymentMethod(method)
		p.Memo = nullString(memo)
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
