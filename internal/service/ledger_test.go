package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/queue"
)

func TestValidatePeriod(t *testing.T) {
	cases := []struct {
		in     string
		reason string
	}{
		{"2026-01", ""},
		{"1999-12", ""},
		{"2026-00", "month must be between 01 and 12"},
		{"2026-13", "month must be between 01 and 12"},
		{"2026-1", "period must be in 'YYYY-MM' format"},
		{"26-01", "period must be in 'YYYY-MM' format"},
		{"2026/01", "period must be in 'YYYY-MM' format"},
		{"", "period must be in 'YYYY-MM' format"},
		{" 2026-01", "period must be in 'YYYY-MM' format"},
	}
	for _, tc := range cases {
		err := ValidatePeriod(tc.in)
		if tc.reason == "" {
			assert.NoError(t, err, tc.in)
			continue
		}
		requireKind(t, err, KindInvalidPeriod, tc.reason)
	}
}

func TestPartialPaymentAndArrears(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)
	m := e.seed(t, "m@x.com", model.RoleMember)

	_, err := e.ledger.CreateCharge(ctx, admin, "2026-01", 10000)
	require.NoError(t, err)
	p, err := e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: m.ID, Period: "2026-01", Amount: 7000, Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, model.MethodCash, p.Method)
	assert.Equal(t, "2026-01", p.Period)

	sum, err := e.ledger.MyStatus(ctx, m.ID, "2026-01")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, sum.Status)
	assert.EqualValues(t, 10000, sum.AmountDue)
	assert.EqualValues(t, 7000, sum.PaidAmount)
	assert.EqualValues(t, 3000, sum.Arrears)

	_, rows, err := e.ledger.AdminStatusForPeriod(ctx, "2026-01")
	require.NoError(t, err)
	byUser := map[string]model.MemberDues{}
	for _, r := range rows {
		byUser[r.UserID] = r
	}
	assert.Equal(t, model.StatusPartial, byUser[m.ID].Status)
	assert.Equal(t, model.StatusUnpaid, byUser[admin.ID].Status)

	assert.Equal(t, []queue.EventKind{queue.EventChargeCreated, queue.EventPaymentRecorded}, e.events.kinds())
}

func TestCreateChargeRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)

	_, err := e.ledger.CreateCharge(ctx, admin, "2026-13", 100)
	requireKind(t, err, KindInvalidPeriod, "month must be between 01 and 12")
	_, err = e.ledger.CreateCharge(ctx, admin, "2026-02", -1)
	requireKind(t, err, KindInvalidInput, "")

	c, err := e.ledger.CreateCharge(ctx, admin, "2026-02", 0)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, c.CreatedBy)
	_, err = e.ledger.CreateCharge(ctx, admin, "2026-02", 5000)
	requireKind(t, err, KindConflict, "charge for that period already exists")

	_, err = e.ledger.CreateCharge(ctx, admin, "2026-03", 100)
	require.NoError(t, err)
	charges, err := e.ledger.ListCharges(ctx)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "2026-03", charges[0].Period)
}

func TestRecordPaymentErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)
	m := e.seed(t, "m@x.com", model.RoleMember)
	g := e.seed(t, "g@x.com", model.RoleGuest)
	_, err := e.ledger.CreateCharge(ctx, admin, "2026-01", 1000)
	require.NoError(t, err)

	cases := []struct {
		name   string
		in     PaymentInput
		kind   Kind
		reason string
	}{
		{"bad period", PaymentInput{UserID: m.ID, Period: "2026-1", Amount: 10}, KindInvalidPeriod, ""},
		{"zero amount", PaymentInput{UserID: m.ID, Period: "2026-01"}, KindInvalidInput, "amount must be greater than 0"},
		{"bad method", PaymentInput{UserID: m.ID, Period: "2026-01", Amount: 10, Method: "CARD"}, KindInvalidInput, "method must be one of CASH, TRANSFER, ETC"},
		{"no charge", PaymentInput{UserID: m.ID, Period: "2026-02", Amount: 10}, KindNotFound, "charge not found for that period"},
		{"unknown user", PaymentInput{UserID: uuid.NewString(), Period: "2026-01", Amount: 10}, KindNotFound, "user not found"},
		{"junk user", PaymentInput{UserID: "x", Period: "2026-01", Amount: 10}, KindNotFound, "user not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ledger.RecordPayment(ctx, admin, tc.in)
			requireKind(t, err, tc.kind, tc.reason)
		})
	}

	// pending users may pay; only retired ones may not
	blank := "  "
	p, err := e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: g.ID, Period: "2026-01", Amount: 10, Memo: &blank})
	require.NoError(t, err)
	assert.Equal(t, model.MethodTransfer, p.Method)
	assert.Nil(t, p.Memo)

	_, err = e.accounts.DeleteSelf(ctx, m.ID, testPassword)
	require.NoError(t, err)
	_, err = e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: m.ID, Period: "2026-01", Amount: 10})
	requireKind(t, err, KindNotFound, "user not found")
}

func TestOverpaymentReadsPaidAndArrearsAdd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)
	m := e.seed(t, "m@x.com", model.RoleMember)

	for _, c := range []struct {
		period string
		amount int64
	}{{"2026-01", 1000}, {"2026-02", 2000}, {"2026-03", 3000}} {
		_, err := e.ledger.CreateCharge(ctx, admin, c.period, c.amount)
		require.NoError(t, err)
	}
	pay := func(period string, amount int64) {
		_, err := e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: m.ID, Period: period, Amount: amount})
		require.NoError(t, err)
	}
	pay("2026-01", 1500)
	pay("2026-02", 500)
	pay("2026-02", 500)

	jan, err := e.ledger.MyStatus(ctx, m.ID, "2026-01")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, jan.Status)
	assert.EqualValues(t, 1500, jan.PaidAmount)

	// overpaying january does not offset february
	arrears, err := e.ledger.ArrearsTotal(ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000+3000, arrears)

	latest, err := e.ledger.MyStatus(ctx, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", latest.Period)
	assert.Equal(t, model.StatusUnpaid, latest.Status)
	assert.EqualValues(t, arrears, latest.Arrears)

	status, paid, err := e.ledger.StatusFor(ctx, m.ID, &model.DuesCharge{ID: mustCharge(t, e, "2026-02").ID, Amount: 2000})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, status)
	assert.EqualValues(t, 1000, paid)
}

func TestMyStatusWithoutCharge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)
	m := e.seed(t, "m@x.com", model.RoleMember)

	sum, err := e.ledger.MyStatus(ctx, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DuesSummary{Status: model.StatusNoCharge}, *sum)

	_, err = e.ledger.CreateCharge(ctx, admin, "2026-01", 800)
	require.NoError(t, err)
	sum, err = e.ledger.MyStatus(ctx, m.ID, "2025-12")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoCharge, sum.Status)
	assert.Zero(t, sum.AmountDue)
	assert.EqualValues(t, 800, sum.Arrears)

	_, err = e.ledger.MyStatus(ctx, m.ID, "bad")
	requireKind(t, err, KindInvalidPeriod, "")
}

func TestMyPaymentsFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seed(t, "a@x.com", model.RoleAdmin)
	m := e.seed(t, "m@x.com", model.RoleMember)
	other := e.seed(t, "o@x.com", model.RoleMember)
	for _, period := range []string{"2026-01", "2026-02"} {
		_, err := e.ledger.CreateCharge(ctx, admin, period, 1000)
		require.NoError(t, err)
		_, err = e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: m.ID, Period: period, Amount: 100})
		require.NoError(t, err)
	}
	_, err := e.ledger.RecordPayment(ctx, admin, PaymentInput{UserID: other.ID, Period: "2026-01", Amount: 100})
	require.NoError(t, err)

	all, err := e.ledger.MyPayments(ctx, m.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	jan, err := e.ledger.MyPayments(ctx, m.ID, "2026-01")
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.Equal(t, "2026-01", jan[0].Period)

	none, err := e.ledger.MyPayments(ctx, m.ID, "2030-01")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, payments, err := e.ledger.ListPaymentsForPeriod(ctx, "2026-01")
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestAdminStatusRoster(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	super := e.seed(t, "s@x.com", model.RoleSuperadmin)
	e.seed(t, "a@x.com", model.RoleAdmin)
	e.seed(t, "m@x.com", model.RoleMember)
	e.seed(t, "g@x.com", model.RoleGuest)
	d := e.seed(t, "d@x.com", model.RoleMember)
	_, err := e.accounts.DeleteSelf(ctx, d.ID, testPassword)
	require.NoError(t, err)

	charge, rows, err := e.ledger.AdminStatusForPeriod(ctx, "2026-01")
	require.NoError(t, err)
	assert.Nil(t, charge)
	assert.Empty(t, rows)

	_, err = e.ledger.CreateCharge(ctx, super, "2026-01", 500)
	require.NoError(t, err)
	charge, rows, err = e.ledger.AdminStatusForPeriod(ctx, "2026-01")
	require.NoError(t, err)
	require.NotNil(t, charge)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.NotEqual(t, model.RoleGuest, r.Role)
		assert.Equal(t, model.StatusUnpaid, r.Status)
		assert.EqualValues(t, 500, r.AmountDue)
	}
	assert.True(t, rows[0].StudentID < rows[1].StudentID)
}

type mapCache struct {
	mu   sync.Mutex
	m    map[string]*model.DuesCharge
	hits int
}

func (c *mapCache) Get(_ context.Context, period string) (*model.DuesCharge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[period]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *mapCache) Put(_ context.Context, ch *model.DuesCharge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[ch.Period] = ch
}

func TestChargeLookupsReadThroughCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cache := &mapCache{m: map[string]*model.DuesCharge{}}
	ledger := NewLedger(e.store, cache, nil, nil)
	admin := e.seed(t, "a@x.com", model.RoleAdmin)

	_, err := ledger.CreateCharge(ctx, admin, "2026-01", 100)
	require.NoError(t, err)
	require.Contains(t, cache.m, "2026-01")

	_, _, err = ledger.AdminStatusForPeriod(ctx, "2026-01")
	require.NoError(t, err)
	sum, err := ledger.MyStatus(ctx, admin.ID, "2026-01")
	require.NoError(t, err)
	assert.EqualValues(t, 100, sum.AmountDue)
	assert.Equal(t, 2, cache.hits)
}

func mustCharge(t *testing.T, e *env, period string) *model.DuesCharge {
	t.Helper()
	c, err := e.store.Dues.ChargeByPeriod(context.Background(), period)
	require.NoError(t, err)
	return c
}
