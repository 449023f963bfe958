package models

import "time"

// QuoteStatus is the lifecycle state of an admin-issued quote.
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "PENDING"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
	// SUPERSEDED marks a pending quote replaced by a newer one for the same
	// request, keeping the one-active-quote-per-request invariant.
	QuoteStatusSuperseded QuoteStatus = "SUPERSEDED"
)

// Quote is the admin-proposed price, scope and timeline for a Request.
// Amounts are integers in the smallest currency unit (TK).
type Quote struct {
	ID           string               `json:"id"`
	RequestID    string               `json:"request_id"`
	Amount       int64                `json:"amount"`
	Currency     string               `json:"currency"`
	TimelineDays int                  `json:"timeline_days"`
	Milestones   []string             `json:"milestones"`
	Revisions    int                  `json:"revisions"`
	ScopeNotes   string               `json:"scope_notes"`
	Status       QuoteStatus          `json:"status"`
	ExpiresAt    time.Time            `json:"expires_at"`
	History      []NegotiationMessage `json:"negotiation_history,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// NegotiationMessage is one entry of the append-only negotiation thread.
type NegotiationMessage struct {
	ID            string    `json:"id"`
	QuoteID       string    `json:"quote_id"`
	SenderRole    string    `json:"sender_role"`
	Message       string    `json:"message"`
	RelatedAmount *int64    `json:"related_amount,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuoteTerms carries the full explicit terms of a quote. Term updates during
// negotiation always pass the whole struct; nothing is inferred from
// placeholder values.
type QuoteTerms struct {
	Amount       int64     `json:"amount" validate:"required,gt=0"`
	Currency     string    `json:"currency" validate:"omitempty,len=2"`
	TimelineDays int       `json:"timeline_days" validate:"required,gt=0"`
	Milestones   []string  `json:"milestones" validate:"required,min=1,dive,required"`
	Revisions    int       `json:"revisions" validate:"gte=0"`
	ScopeNotes   string    `json:"scope_notes"`
	ExpiresAt    time.Time `json:"expires_at" validate:"required"`
}

// CreateQuoteInput creates a quote against a request.
type CreateQuoteInput struct {
	RequestID string     `json:"request_id" validate:"required"`
	Terms     QuoteTerms `json:"terms" validate:"required"`
}

// NegotiateInput appends a message to the thread. Terms may only be set by
// an admin sender and replace the quote terms atomically with the append.
type NegotiateInput struct {
	Message string      `json:"message" validate:"required"`
	Terms   *QuoteTerms `json:"terms,omitempty"`
}

// AcceptQuoteInput carries the student's payment proof.
type AcceptQuoteInput struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}
