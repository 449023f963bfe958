package models

import "time"

// OrderStatus is the lifecycle state of a contracted order.
type OrderStatus string

const (
	OrderPaidConfirmed OrderStatus = "PAID_CONFIRMED"
	OrderAssigned      OrderStatus = "ASSIGNED"
	OrderInProgress    OrderStatus = "IN_PROGRESS"
	OrderReview        OrderStatus = "REVIEW"
	OrderCompleted     OrderStatus = "COMPLETED"
	OrderDispute       OrderStatus = "DISPUTE"
	OrderCancelled     OrderStatus = "CANCELLED"
)

// Assignable reports whether an expert may be assigned or reassigned.
func (s OrderStatus) Assignable() bool {
	return s == OrderPaidConfirmed || s == OrderAssigned
}

// Disputable reports whether a dispute can be opened from this state.
func (s OrderStatus) Disputable() bool {
	return s == OrderAssigned || s == OrderInProgress || s == OrderReview
}

// MilestoneStatus is monotonic except for the QC-rejection return edge
// DELIVERED -> IN_PROGRESS.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "PENDING"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneDelivered  MilestoneStatus = "DELIVERED"
	MilestoneApproved   MilestoneStatus = "APPROVED"
)

// Order is the contracted unit of work created when a quote is accepted.
// Amount is the accepted quote amount in the smallest currency unit (TK).
type Order struct {
	ID        string      `json:"id"`
	RequestID string      `json:"request_id"`
	QuoteID   string      `json:"quote_id"`
	StudentID string      `json:"student_id"`
	ExpertID  *string     `json:"expert_id,omitempty"`
	Status    OrderStatus `json:"status"`
	Amount    int64       `json:"amount"`
	// PaymentRef is the payment-processor id captured at acceptance.
	PaymentRef string       `json:"payment_ref,omitempty"`
	Milestones []*Milestone `json:"milestones,omitempty"`
	// DisputeReturnStatus remembers the pre-dispute status so resolution can
	// restore it. Empty when no dispute is open.
	DisputeReturnStatus OrderStatus `json:"-"`
	DisputeReason       string      `json:"dispute_reason,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Milestone is one deliverable checkpoint inside an order. Position is the
// zero-based index within the order's ordered milestone sequence.
type Milestone struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Position    int             `json:"position"`
	Title       string          `json:"title"`
	DueDate     time.Time       `json:"due_date"`
	Status      MilestoneStatus `json:"status"`
	Submissions []Attachment    `json:"submissions,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AssignExpertInput selects the expert for an order.
type AssignExpertInput struct {
	ExpertID string `json:"expert_id" validate:"required"`
}

// Milestone PATCH actions.
const (
	MilestoneActionStart  = "start"
	MilestoneActionSubmit = "submit"
	MilestoneActionReview = "review"
)

// MilestoneActionInput drives PATCH /orders/:id/milestones/:mid. Files are
// required for submit; Approved for review.
type MilestoneActionInput struct {
	Action   string       `json:"action" validate:"required,oneof=start submit review"`
	Files    []Attachment `json:"files,omitempty" validate:"omitempty,dive"`
	Approved *bool        `json:"approved,omitempty"`
	Note     string       `json:"note,omitempty"`
}

// DisputeInput opens a dispute on an order.
type DisputeInput struct {
	Reason string `json:"reason" validate:"required"`
}

// Dispute resolution outcomes.
const (
	DisputeOutcomeRestore = "restore"
	DisputeOutcomeRefund  = "refund"
)

// ResolveDisputeInput closes a dispute. Outcome defaults to restore.
type ResolveDisputeInput struct {
	Outcome string `json:"outcome,omitempty" validate:"omitempty,oneof=restore refund"`
}
