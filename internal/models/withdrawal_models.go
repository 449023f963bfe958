package models

import "time"

// WithdrawalStatus follows PENDING -> CONFIRMED -> PAID or -> REJECTED for
// experts; the student path skips CONFIRMED.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalConfirmed WithdrawalStatus = "CONFIRMED"
	WithdrawalPaid      WithdrawalStatus = "PAID"
	WithdrawalRejected  WithdrawalStatus = "REJECTED"
)

// Resolved reports whether the request reached a terminal state.
func (s WithdrawalStatus) Resolved() bool {
	return s == WithdrawalPaid || s == WithdrawalRejected
}

// Withdrawal actor types.
const (
	ActorExpert  = "expert"
	ActorStudent = "student"
)

// WithdrawalRequest is a payout request. Amount is reserved against the
// actor's balance at creation and only deducted when the request is PAID.
type WithdrawalRequest struct {
	ID         string           `json:"id"`
	ActorType  string           `json:"actor_type"`
	ActorID    string           `json:"actor_id"`
	Amount     int64            `json:"amount"`
	MethodID   string           `json:"method_id"`
	Status     WithdrawalStatus `json:"status"`
	AdminNote  string           `json:"admin_note,omitempty"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type CreateWithdrawalInput struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	MethodID string `json:"method_id" validate:"required"`
}

// Withdrawal PATCH actions. confirm and pay apply to the expert path only;
// approve is the student-path shortcut straight to PAID.
const (
	WithdrawalActionConfirm = "confirm"
	WithdrawalActionPay     = "pay"
	WithdrawalActionApprove = "approve"
	WithdrawalActionReject  = "reject"
)

type UpdateWithdrawalInput struct {
	Action string `json:"action" validate:"required,oneof=confirm pay approve reject"`
	Note   string `json:"note,omitempty"`
}
