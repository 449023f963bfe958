package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// ServiceInterface defines the contract for a payment processing service.
// Amounts are integers in the smallest currency unit.
type ServiceInterface interface {
	Capture(ctx context.Context, studentID string, amount int64, currency, paymentMethodID string) (string, error)
}

// StripeService captures quote-acceptance payments through Stripe
// PaymentIntents. The returned id is stored as the order's payment ref.
type StripeService struct {
	api *client.API
}

func NewStripeService(apiKey string) *StripeService {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeService{api: api}
}

func (s *StripeService) Capture(ctx context.Context, studentID string, amount int64, currency, paymentMethodID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("invalid payment amount %d", amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Pengu order payment"),
	}
	params.Context = ctx
	params.AddMetadata("student_id", studentID)
	// Fresh key per attempt; retries after an ambiguous failure go through
	// the lifecycle guards, not through Stripe replay.
	params.SetIdempotencyKey(uuid.NewString())

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("payment.Capture: %w", err)
	}
	return pi.ID, nil
}
