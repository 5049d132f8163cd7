package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/queue"
	"github.com/iliyamo/club-membership/internal/repository"
)

var periodRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidatePeriod accepts YYYY-MM with a month in 01..12.
func ValidatePeriod(period string) error {
	if !periodRe.MatchString(period) {
		return newErr(KindInvalidPeriod, "period must be in 'YYYY-MM' format")
	}
	month, _ := strconv.Atoi(period[5:])
	if month < 1 || month > 12 {
		return newErr(KindInvalidPeriod, "month must be between 01 and 12")
	}
	return nil
}

// ChargeCache is consulted before the database for charge-by-period
// lookups.  *cache.ChargeCache implements it.
type ChargeCache interface {
	Get(ctx context.Context, period string) (*model.DuesCharge, bool)
	Put(ctx context.Context, c *model.DuesCharge)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.DuesCharge, bool) { return nil, false }
func (nopCache) Put(context.Context, *model.DuesCharge)                {}

// Ledger records dues charges and payments and derives statuses from
// them.  Nothing derived is stored: status and arrears are recomputed from
// the payment rows on every read.
type Ledger struct {
	store  *Store
	cache  ChargeCache
	events EventPublisher
	log    Logger
}

func NewLedger(store *Store, cache ChargeCache, events EventPublisher, log Logger) *Ledger {
	if cache == nil {
		cache = nopCache{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Ledger{store: store, cache: cache, events: events, log: log}
}

// CreateCharge opens the charge for period.  One charge per period.
func (l *Ledger) CreateCharge(ctx context.Context, actor *model.User, period string, amount int64) (*model.DuesCharge, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, invalid("amount must be greater than or equal to 0")
	}
	c := &model.DuesCharge{Period: period, Amount: amount, CreatedBy: actor.ID}
	if err := l.store.Dues.InsertCharge(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("charge for that period already exists")
		}
		return nil, storage(err)
	}
	l.cache.Put(ctx, c)
	l.log.Infof("charge created period=%s amount=%d by=%s", period, amount, actor.ID)
	emit(ctx, l.events, l.log, queue.Event{Kind: queue.EventChargeCreated, ActorID: actor.ID, Period: period, Amount: amount})
	return c, nil
}

// ListCharges returns all charges, latest period first.
func (l *Ledger) ListCharges(ctx context.Context) ([]model.DuesCharge, error) {
	charges, err := l.store.Dues.ListCharges(ctx)
	return charges, storage(err)
}

// PaymentInput is one payment recorded by an admin.
type PaymentInput struct {
	UserID string              `json:"user_id"`
	Period string              `json:"period"`
	Amount int64               `json:"amount"`
	Method model.PaymentMethod `json:"method"`
	Memo   *string             `json:"memo"`
}

// RecordPayment appends a payment against the period's charge.
// Overpayment is allowed and simply reads as PAID.
func (l *Ledger) RecordPayment(ctx context.Context, actor *model.User, in PaymentInput) (*model.DuesPayment, error) {
	if err := ValidatePeriod(in.Period); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, invalid("amount must be greater than 0")
	}
	if in.Method == "" {
		in.Method = model.MethodTransfer
	}
	in.Method = model.PaymentMethod(strings.ToUpper(string(in.Method)))
	if !in.Method.Valid() {
		return nil, invalid("method must be one of CASH, TRANSFER, ETC")
	}
	if in.Memo != nil && strings.TrimSpace(*in.Memo) == "" {
		in.Memo = nil
	}

	var p *model.DuesPayment
	err := l.store.WithTx(ctx, func(tx *Store) error {
		charge, err := tx.Dues.ChargeByPeriod(ctx, in.Period)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("charge not found for that period")
		}
		if err != nil {
			return err
		}
		if !validID(in.UserID) {
			return notFound("user not found")
		}
		if _, err := tx.Users.GetActiveByID(ctx, in.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("user not found")
			}
			return err
		}
		p = &model.DuesPayment{
			UserID:    in.UserID,
			ChargeID:  charge.ID,
			Amount:    in.Amount,
			Method:    in.Method,
			Memo:      in.Memo,
			CreatedBy: actor.ID,
			Period:    charge.Period,
		}
		return tx.Dues.InsertPayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	l.log.Infof("payment recorded user=%s period=%s amount=%d by=%s", in.UserID, in.Period, in.Amount, actor.ID)
	emit(ctx, l.events, l.log, queue.Event{
		Kind: queue.EventPaymentRecorded, ActorID: actor.ID, TargetUserID: in.UserID, Period: in.Period, Amount: in.Amount,
	})
	return p, nil
}

// SumPaid totals one user's payments against one charge.
func (l *Ledger) SumPaid(ctx context.Context, userID, chargeID string) (int64, error) {
	paid, err := l.store.Dues.SumPaid(ctx, userID, chargeID)
	return paid, storage(err)
}

// StatusFor derives the status of userID for charge along with the paid
// amount.
func (l *Ledger) StatusFor(ctx context.Context, userID string, charge *model.DuesCharge) (model.DuesStatus, int64, error) {
	paid, err := l.SumPaid(ctx, userID, charge.ID)
	if err != nil {
		return "", 0, err
	}
	return model.StatusFor(paid, charge.Amount), paid, nil
}

// ArrearsTotal is the shortfall summed over every charge ever created.
// Charges that predate the user's registration count too.
func (l *Ledger) ArrearsTotal(ctx context.Context, userID string) (int64, error) {
	charges, err := l.store.Dues.ListCharges(ctx)
	if err != nil {
		return 0, storage(err)
	}
	paid, err := l.store.Dues.SumPaidByCharge(ctx, userID)
	if err != nil {
		return 0, storage(err)
	}
	var total int64
	for _, c := range charges {
		if short := c.Amount - paid[c.ID]; short > 0 {
			total += short
		}
	}
	return total, nil
}

// MyStatus summarizes one period for userID.  An empty period selects the
// latest charge.  Without a charge the status is NO_CHARGE with zero
// amounts; arrears are still reported.
func (l *Ledger) MyStatus(ctx context.Context, userID, period string) (*model.DuesSummary, error) {
	charge, err := l.resolveCharge(ctx, period)
	if err != nil {
		return nil, err
	}
	arrears, err := l.ArrearsTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return &model.DuesSummary{Status: model.StatusNoCharge, Arrears: arrears}, nil
	}
	status, paid, err := l.StatusFor(ctx, userID, charge)
	if err != nil {
		return nil, err
	}
	return &model.DuesSummary{
		Period:     charge.Period,
		AmountDue:  charge.Amount,
		PaidAmount: paid,
		Status:     status,
		Arrears:    arrears,
	}, nil
}

// MyPayments lists userID's payments, newest first, optionally narrowed
// to one period.  A period without a charge has no payments.
func (l *Ledger) MyPayments(ctx context.Context, userID, period string) ([]model.DuesPayment, error) {
	if period == "" {
		payments, err := l.store.Dues.ListPaymentsByUser(ctx, userID, "")
		return payments, storage(err)
	}
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	charge, err := l.chargeFor(ctx, period)
	if err != nil || charge == nil {
		return []model.DuesPayment{}, err
	}
	payments, err := l.store.Dues.ListPaymentsByUser(ctx, userID, charge.ID)
	return payments, storage(err)
}

// AdminStatusForPeriod returns one row per active MEMBER, ADMIN and
// SUPERADMIN for the period's charge.  The charge is nil and the list
// empty when the period has no charge.
func (l *Ledger) AdminStatusForPeriod(ctx context.Context, period string) (*model.DuesCharge, []model.MemberDues, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, nil, err
	}
	charge, err := l.chargeFor(ctx, period)
	if err != nil || charge == nil {
		return nil, []model.MemberDues{}, err
	}
	members, err := l.store.Users.ListMembersForDues(ctx)
	if err != nil {
		return nil, nil, storage(err)
	}
	paid, err := l.store.Dues.SumPaidByUser(ctx, charge.ID)
	if err != nil {
		return nil, nil, storage(err)
	}
	rows := make([]model.MemberDues, 0, len(members))
	for _, m := range members {
		p := paid[m.ID]
		rows = append(rows, model.MemberDues{
			UserID:     m.ID,
			Name:       m.Name,
			StudentID:  m.StudentID,
			Email:      m.Email,
			Role:       m.Role,
			AmountDue:  charge.Amount,
			PaidAmount: p,
			Status:     model.StatusFor(p, charge.Amount),
		})
	}
	return charge, rows, nil
}

// ListPaymentsForPeriod lists every payment against the period's charge,
// newest first.
func (l *Ledger) ListPaymentsForPeriod(ctx context.Context, period string) (*model.DuesCharge, []model.DuesPayment, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, nil, err
	}
	charge, err := l.chargeFor(ctx, period)
	if err != nil || charge == nil {
		return nil, []model.DuesPayment{}, err
	}
	payments, err := l.store.Dues.ListPaymentsByCharge(ctx, charge.ID)
	if err != nil {
		return nil, nil, storage(err)
	}
	return charge, payments, nil
}

// resolveCharge picks the charge for period, or the latest one when period
// is empty.  (nil, nil) means no charge applies.
func (l *Ledger) resolveCharge(ctx context.Context, period string) (*model.DuesCharge, error) {
	if period != "" {
		if err := ValidatePeriod(period); err != nil {
			return nil, err
		}
		return l.chargeFor(ctx, period)
	}
	c, err := l.store.Dues.LatestCharge(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage(err)
	}
	return c, nil
}

func (l *Ledger) chargeFor(ctx context.Context, period string) (*model.DuesCharge, error) {
	if c, ok := l.cache.Get(ctx, period); ok {
		return c, nil
	}
	c, err := l.store.Dues.ChargeByPeriod(ctx, period)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage(err)
	}
	l.cache.Put(ctx, c)
	return c, nil
}
