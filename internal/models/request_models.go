package models

import "time"

// RequestStatus is the lifecycle state of a student's assistance request.
type RequestStatus string

const (
	RequestSubmitted   RequestStatus = "SUBMITTED"
	RequestQuoted      RequestStatus = "QUOTED"
	RequestNegotiation RequestStatus = "NEGOTIATION"
	RequestAccepted    RequestStatus = "ACCEPTED"
	RequestConverted   RequestStatus = "CONVERTED"
	RequestExpired     RequestStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestConverted || s == RequestExpired
}

// Quotable reports whether an admin may issue (or re-issue) a quote.
func (s RequestStatus) Quotable() bool {
	return s == RequestSubmitted || s == RequestNegotiation
}

// Request is a student's initial ask for academic help, pre-pricing.
type Request struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	ServiceType string        `json:"service_type"`
	Topic       string        `json:"topic"`
	Details     string        `json:"details"`
	Deadline    time.Time     `json:"deadline"`
	Attachments []Attachment  `json:"attachments"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SubmitRequestInput is the payload for creating a new request.
type SubmitRequestInput struct {
	ServiceType string       `json:"service_type" validate:"required"`
	Topic       string       `json:"topic" validate:"required"`
	Details     string       `json:"details" validate:"required"`
	Deadline    time.Time    `json:"deadline" validate:"required"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"omitempty,dive"`
}
