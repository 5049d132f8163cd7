package model

import "time"

// DuesCharge is one fee assessment per billing period (`dues_charges`).
// Period is unique and formatted YYYY-MM; Amount is in the smallest
// currency unit.
type DuesCharge struct {
	ID        string    `json:"id"`
	Period    string    `json:"period"`
	Amount    int64     `json:"amount"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentMethod is how a dues payment was received.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodEtc      PaymentMethod = "ETC"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodEtc:
		return true
	}
	return false
}

// DuesPayment is a single payment against a charge (`dues_payments`).
// Several payments for the same (user, charge) pair are summed.
type DuesPayment struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	ChargeID  string        `json:"charge_id"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Memo      *string       `json:"memo"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`

	// Period is filled by listings that join the charge.
	Period string `json:"period,omitempty"`
}

// DuesStatus is the derived payment state of one user for one charge.
type DuesStatus string

const (
	StatusPaid     DuesStatus = "PAID"
	StatusPartial  DuesStatus = "PARTIAL"
	StatusUnpaid   DuesStatus = "UNPAID"
	StatusNoCharge DuesStatus = "NO_CHARGE"
)

// StatusFor derives the status for paid against amount.  The three
// branches partition every integer value of paid.
func StatusFor(paid, amount int64) DuesStatus {
	switch {
	case paid <= 0:
		return StatusUnpaid
	case paid < amount:
		return StatusPartial
	default:
		return StatusPaid
	}
}

// MemberDues is one row of the per-period roster shown to admins.
type MemberDues struct {
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	StudentID  string     `json:"student_id"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	AmountDue  int64      `json:"amount_due"`
	PaidAmount int64      `json:"paid_amount"`
	Status     DuesStatus `json:"status"`
}

// DuesSummary is a member's view of one period plus their total arrears.
// Period is empty and Status is NO_CHARGE when no charge applies.
type DuesSummary struct {
	Period     string     `json:"current_period,omitempty"`
	AmountDue  int64      `json:"current_amount"`
	PaidAmount int64      `json:"paid_amount"`
	Status     DuesStatus `json:"status"`
	Arrears    int64      `json:"arrears_total"`
}
