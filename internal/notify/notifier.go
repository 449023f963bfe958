// Package notify delivers lifecycle notifications. Delivery is
// fire-and-forget, at-least-once: senders log failures and move on, they
// never fail the triggering operation.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Event kinds emitted by the lifecycle engine.
const (
	EventQuoteIssued        = "quote_issued"
	EventNegotiationMessage = "negotiation_message"
	EventOrderCreated       = "order_created"
	EventExpertAssigned     = "expert_assigned"
	EventMilestoneDelivered = "milestone_delivered"
	EventRevisionRequested  = "revision_requested"
	EventOrderCompleted     = "order_completed"
	EventWithdrawalResolved = "withdrawal_resolved"
	EventReviewModerated    = "review_moderated"
	EventDisputeOpened      = "dispute_opened"
	EventDisputeResolved    = "dispute_resolved"
)

// Event is one notification to a single recipient user.
type Event struct {
	Kind        string
	RecipientID string
	Subject     string
	Body        string
}

// Notifier dispatches an event. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// RecipientResolver turns a user id into a deliverable address.
type RecipientResolver interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

// SESNotifier sends events as email through AWS SESv2.
type SESNotifier struct {
	client   *sesv2.Client
	resolver RecipientResolver
	from     string
}

func NewSESNotifier(client *sesv2.Client, resolver RecipientResolver, from string) *SESNotifier {
	return &SESNotifier{client: client, resolver: resolver, from: from}
}

func (n *SESNotifier) Notify(ctx context.Context, ev Event) {
	if ev.RecipientID == "" {
		// Queue-only events (QC, dispute, negotiation) have no email
		// recipient; admins see them on their dashboards.
		return
	}
	addr, err := n.resolver.EmailForUser(ctx, ev.RecipientID)
	if err != nil {
		log.Printf("notify: resolve recipient %s for %s: %v", ev.RecipientID, ev.Kind, err)
		return
	}
	subject := ev.Subject
	if subject == "" {
		subject = fmt.Sprintf("Pengu update: %s", ev.Kind)
	}
	_, err = n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{addr}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(ev.Body)},
				},
			},
		},
	})
	if err != nil {
		// At-least-once is best effort here; the event is also visible in
		// the recipient's dashboard, so a lost email is not a lost update.
		log.Printf("notify: send %s to %s: %v", ev.Kind, ev.RecipientID, err)
	}
}

// LogNotifier is used when SES is not configured (local development).
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) {
	log.Printf("notify: %s -> %s: %s", ev.Kind, ev.RecipientID, ev.Subject)
}
