package models

import "time"

// ReviewStatus is PENDING only at creation; moderation may flip between
// APPROVED and REJECTED freely afterwards.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// Review is pre-created in PENDING when an order completes and filled in by
// the student. Only APPROVED reviews are public and counted in ratings.
type Review struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"order_id"`
	StudentID string       `json:"student_id"`
	ExpertID  string       `json:"expert_id"`
	Rating    int          `json:"rating"`
	Text      string       `json:"text"`
	Status    ReviewStatus `json:"status"`
	// Submitted is false until the student fills in rating and text.
	Submitted bool      `json:"submitted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SubmitReviewInput struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text" validate:"required"`
}

type ModerateReviewInput struct {
	Approved bool `json:"approved"`
}
