package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrInvalidToken = errors.New("token not found or expired")
var ErrInvalidCredentials = errors.New("invalid credentials") // email or password provided does not match database record
var ErrEmailTaken = errors.New("email already registered")
var ErrValidation = errors.New("invalid input")

// Lifecycle errors. Each maps to a stable wire code so the frontend can
// localize the message instead of echoing server text.
var ErrInvalidRequestState = errors.New("request is not in a state that allows this operation")
var ErrQuoteNotPending = errors.New("quote is not pending")
var ErrQuoteExpired = errors.New("quote has expired")
var ErrInvalidOrderTransition = errors.New("order is not in a state that allows this transition")
var ErrOrderAlreadyAssigned = errors.New("order has already been assigned past reassignment")
var ErrMilestoneNotStartable = errors.New("milestone cannot be started yet")
var ErrMilestoneNotDeliverable = errors.New("milestone is not awaiting delivery or review")
var ErrExpertUnavailable = errors.New("expert is not active and online")
var ErrInsufficientBalance = errors.New("available balance is too low for this amount")
var ErrAlreadyResolved = errors.New("withdrawal request has already been resolved")
var ErrReviewAlreadySubmitted = errors.New("review has already been submitted for this order")
var ErrPaymentFailed = errors.New("payment capture failed")

// Wire codes returned in ErrorResponse.Code.
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeNotFound                = "NOT_FOUND"
	CodeForbidden               = "FORBIDDEN"
	CodeConflict                = "CONFLICT"
	CodeEmailTaken              = "EMAIL_TAKEN"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeInvalidRequestState     = "INVALID_REQUEST_STATE"
	CodeQuoteNotPending         = "QUOTE_NOT_PENDING"
	CodeQuoteExpired            = "QUOTE_EXPIRED"
	CodeInvalidOrderTransition  = "INVALID_ORDER_TRANSITION"
	CodeOrderAlreadyAssigned    = "ORDER_ALREADY_ASSIGNED"
	CodeMilestoneNotStartable   = "MILESTONE_NOT_STARTABLE"
	CodeMilestoneNotDeliverable = "MILESTONE_NOT_DELIVERABLE"
	CodeExpertUnavailable       = "EXPERT_UNAVAILABLE"
	CodeInsufficientBalance     = "INSUFFICIENT_BALANCE"
	CodeAlreadyResolved         = "ALREADY_RESOLVED"
	CodePaymentFailed           = "PAYMENT_FAILED"
	CodeInternal                = "INTERNAL"
)

// ErrorResponse is the JSON body for every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus maps a domain error to the response status. State-machine
// conflicts are 409 so clients know to re-read before retrying.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case CodeNotFound:
		return 404
	case CodeForbidden:
		return 403
	case CodeInvalidCredentials:
		return 401
	case CodeValidationFailed:
		return 400
	case CodeInsufficientBalance, CodeExpertUnavailable:
		return 422
	case CodePaymentFailed:
		return 402
	case CodeInternal:
		return 500
	default:
		return 409
	}
}

// ErrorCode maps a domain error to its wire code. Unknown errors map to
// INTERNAL so handler code can pass any service error through unchanged.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrEmailTaken):
		return CodeEmailTaken
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrConflict), errors.Is(err, ErrReviewAlreadySubmitted):
		return CodeConflict
	case errors.Is(err, ErrInvalidRequestState):
		return CodeInvalidRequestState
	case errors.Is(err, ErrQuoteNotPending):
		return CodeQuoteNotPending
	case errors.Is(err, ErrQuoteExpired):
		return CodeQuoteExpired
	case errors.Is(err, ErrInvalidOrderTransition):
		return CodeInvalidOrderTransition
	case errors.Is(err, ErrOrderAlreadyAssigned):
		return CodeOrderAlreadyAssigned
	case errors.Is(err, ErrMilestoneNotStartable):
		return CodeMilestoneNotStartable
	case errors.Is(err, ErrMilestoneNotDeliverable):
		return CodeMilestoneNotDeliverable
	case errors.Is(err, ErrExpertUnavailable):
		return CodeExpertUnavailable
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrAlreadyResolved):
		return CodeAlreadyResolved
	case errors.Is(err, ErrPaymentFailed):
		return CodePaymentFailed
	default:
		return CodeInternal
	}
}
