package models

import "time"

// ExpertStatus is the vetting state of an expert profile.
type ExpertStatus string

const (
	ExpertPending   ExpertStatus = "PENDING"
	ExpertActive    ExpertStatus = "ACTIVE"
	ExpertSuspended ExpertStatus = "SUSPENDED"
)

// Expert is a vetted provider profile. Balance and Reserved are in the
// smallest currency unit (TK); the spendable amount is Balance - Reserved,
// so a pending withdrawal holds funds without deducting them.
type Expert struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Bio             string         `json:"bio,omitempty"`
	Subjects        []string       `json:"subjects,omitempty"`
	Status          ExpertStatus   `json:"status"`
	Online          bool           `json:"online"`
	Balance         int64          `json:"balance"`
	Reserved        int64          `json:"reserved"`
	Earnings        int64          `json:"earnings"`
	Rating          float64        `json:"rating"`
	RatingCount     int            `json:"rating_count"`
	CompletedOrders int            `json:"completed_orders"`
	PayoutMethods   []PayoutMethod `json:"payout_methods,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Available is the balance not held by pending withdrawals.
func (e *Expert) Available() int64 {
	return e.Balance - e.Reserved
}

// PayoutMethod is a stored bank or mobile-money destination.
type PayoutMethod struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	// AccountRef is the masked account or wallet number shown in the UI.
	AccountRef string    `json:"account_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

type RegisterExpertInput struct {
	Bio      string   `json:"bio"`
	Subjects []string `json:"subjects" validate:"required,min=1,dive,required"`
}

type ExpertStatusInput struct {
	Status ExpertStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

type OnlineInput struct {
	Online bool `json:"online"`
}

type AddPayoutMethodInput struct {
	Kind       string `json:"kind" validate:"required,oneof=bank mobile_money"`
	Label      string `json:"label" validate:"required"`
	AccountRef string `json:"account_ref" validate:"required"`
}
