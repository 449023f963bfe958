package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// ----------------------------------------------------------------------------
// fakeRepo: in-memory balances and withdrawal requests mirroring the
// reserve/settle/release semantics of the real repository.
// ----------------------------------------------------------------------------
type balance struct {
	total    int64
	reserved int64
}

type fakeRepo struct {
	expertFunds  map[string]*balance
	studentFunds map[string]*balance
	requests     map[string]*models.WithdrawalRequest
	ledger       []models.FinancialTransaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		expertFunds:  make(map[string]*balance),
		studentFunds: make(map[string]*balance),
		requests:     make(map[string]*models.WithdrawalRequest),
	}
}

func (f *fakeRepo) funds(actorType, actorID string) *balance {
	if actorType == models.ActorExpert {
		return f.expertFunds[actorID]
	}
	return f.studentFunds[actorID]
}

func (f *fakeRepo) Create(ctx context.Context, wr *models.WithdrawalRequest) (*models.WithdrawalRequest, error) {
	b := f.funds(wr.ActorType, wr.ActorID)
	if b == nil {
		return nil, models.ErrNotFound
	}
	if b.total-b.reserved < wr.Amount {
		return nil, models.ErrInsufficientBalance
	}
	b.reserved += wr.Amount
	cp := *wr
	cp.ID = fmt.Sprintf("wd-%d", len(f.requests)+1)
	cp.Status = models.WithdrawalPending
	f.requests[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	wr, ok := f.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *wr
	return &cp, nil
}

func (f *fakeRepo) Confirm(ctx context.Context, id string) error {
	wr, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	if wr.ActorType != models.ActorExpert || wr.Status != models.WithdrawalPending {
		return f.conflict(wr)
	}
	wr.Status = models.WithdrawalConfirmed
	return nil
}

func (f *fakeRepo) MarkPaid(ctx context.Context, id, note string) error {
	wr, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	payable := (wr.ActorType == models.ActorExpert && wr.Status == models.WithdrawalConfirmed) ||
		(wr.ActorType == models.ActorStudent && wr.Status == models.WithdrawalPending)
	if !payable {
		return f.conflict(wr)
	}
	wr.Status = models.WithdrawalPaid
	wr.AdminNote = note
	b := f.funds(wr.ActorType, wr.ActorID)
	b.total -= wr.Amount
	b.reserved -= wr.Amount
	f.ledger = append(f.ledger, models.FinancialTransaction{
		Type:    models.TxWithdrawal,
		Amount:  wr.Amount,
		ActorID: &wr.ActorID,
	})
	return nil
}

func (f *fakeRepo) Reject(ctx context.Context, id, note string) error {
	wr, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	rejectable := wr.Status == models.WithdrawalPending ||
		(wr.ActorType == models.ActorExpert && wr.Status == models.WithdrawalConfirmed)
	if !rejectable {
		return f.conflict(wr)
	}
	wr.Status = models.WithdrawalRejected
	wr.AdminNote = note
	f.funds(wr.ActorType, wr.ActorID).reserved -= wr.Amount
	return nil
}

func (f *fakeRepo) conflict(wr *models.WithdrawalRequest) error {
	if wr.Status.Resolved() {
		return models.ErrAlreadyResolved
	}
	return models.ErrConflict
}

func (f *fakeRepo) ListAll(ctx context.Context, status models.WithdrawalStatus, actorType string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListByActor(ctx context.Context, actorType, actorID string, page, limit int) ([]*models.WithdrawalRequest, int, error) {
	out := []*models.WithdrawalRequest{}
	for _, wr := range f.requests {
		if wr.ActorType == actorType && wr.ActorID == actorID {
			cp := *wr
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

// fakeDirectory serves expert profile and payout method lookups.
type fakeDirectory struct {
	experts map[string]*models.Expert // by profile id
	byUser  map[string]*models.Expert
	methods map[string]string // method id -> owner id
}

func (f *fakeDirectory) FindByID(ctx context.Context, id string) (*models.Expert, error) {
	ex, ok := f.experts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return ex, nil
}

func (f *fakeDirectory) FindByUserID(ctx context.Context, userID string) (*models.Expert, error) {
	ex, ok := f.byUser[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return ex, nil
}

func (f *fakeDirectory) FindPayoutMethod(ctx context.Context, id, ownerID string) (*models.PayoutMethod, error) {
	owner, ok := f.methods[id]
	if !ok || owner != ownerID {
		return nil, models.ErrNotFound
	}
	return &models.PayoutMethod{ID: id, OwnerID: owner}, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ context.Context, ev notify.Event) {
	f.events = append(f.events, ev)
}

func newFixture() (*fakeRepo, *fakeDirectory, *fakeNotifier, *Service) {
	fr := newFakeRepo()
	fr.expertFunds["expert-1"] = &balance{total: 5000}
	fr.studentFunds["student-1"] = &balance{total: 2000}
	ex := &models.Expert{ID: "expert-1", UserID: "expert-user-1", Status: models.ExpertActive}
	fd := &fakeDirectory{
		experts: map[string]*models.Expert{"expert-1": ex},
		byUser:  map[string]*models.Expert{"expert-user-1": ex},
		methods: map[string]string{"pm-expert": "expert-1", "pm-student": "student-1"},
	}
	fn := &fakeNotifier{}
	return fr, fd, fn, NewService(fr, fd, fn)
}

func TestRequestWithdrawalReservesFunds(t *testing.T) {
	fr, _, _, svc := newFixture()

	wr, err := svc.RequestWithdrawal(context.Background(), "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 3000, MethodID: "pm-expert"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if wr.Status != models.WithdrawalPending {
		t.Errorf("status = %s; want %s", wr.Status, models.WithdrawalPending)
	}
	if wr.ActorType != models.ActorExpert || wr.ActorID != "expert-1" {
		t.Errorf("actor = %s/%s; want expert/expert-1", wr.ActorType, wr.ActorID)
	}
	b := fr.expertFunds["expert-1"]
	if b.total != 5000 || b.reserved != 3000 {
		t.Errorf("balance/reserved = %d/%d; want 5000/3000 (reserve, not deduct)", b.total, b.reserved)
	}
}

func TestRequestWithdrawalOverCommitmentRejected(t *testing.T) {
	_, _, _, svc := newFixture()
	ctx := context.Background()
	in := models.CreateWithdrawalInput{Amount: 3000, MethodID: "pm-expert"}

	if _, err := svc.RequestWithdrawal(ctx, "expert-user-1", models.RoleExpert, in); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	// 3000 reserved of 5000 leaves 2000 available; a second 3000 must fail.
	_, err := svc.RequestWithdrawal(ctx, "expert-user-1", models.RoleExpert, in)
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("error = %v; want ErrInsufficientBalance", err)
	}
}

func TestRequestWithdrawalForeignMethodRejected(t *testing.T) {
	_, _, _, svc := newFixture()

	_, err := svc.RequestWithdrawal(context.Background(), "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 1000, MethodID: "pm-student"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound for someone else's method", err)
	}
}

func TestRequestWithdrawalInactiveExpertForbidden(t *testing.T) {
	_, fd, _, svc := newFixture()
	fd.byUser["expert-user-1"].Status = models.ExpertSuspended

	_, err := svc.RequestWithdrawal(context.Background(), "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 1000, MethodID: "pm-expert"})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("error = %v; want ErrForbidden", err)
	}
}

func TestExpertPayoutPath(t *testing.T) {
	fr, _, fn, svc := newFixture()
	ctx := context.Background()

	wr, err := svc.RequestWithdrawal(ctx, "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 3000, MethodID: "pm-expert"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	// Paying before confirming is a sequencing conflict.
	err = svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionPay})
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("pay before confirm error = %v; want ErrConflict", err)
	}

	if err := svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionConfirm}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionPay, Note: "bKash txn 123"}); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	b := fr.expertFunds["expert-1"]
	if b.total != 2000 || b.reserved != 0 {
		t.Errorf("balance/reserved = %d/%d; want 2000/0 after payout", b.total, b.reserved)
	}
	if len(fr.ledger) != 1 || fr.ledger[0].Type != models.TxWithdrawal || fr.ledger[0].Amount != 3000 {
		t.Fatalf("ledger = %+v; want exactly one WITHDRAWAL/3000 row", fr.ledger)
	}
	if len(fn.events) != 1 || fn.events[0].Kind != notify.EventWithdrawalResolved {
		t.Errorf("notifications = %+v; want one withdrawal_resolved", fn.events)
	}
	if fn.events[0].RecipientID != "expert-user-1" {
		t.Errorf("recipient = %s; want the expert's user id", fn.events[0].RecipientID)
	}

	// Replaying the pay is idempotent: no second deduction, no second ledger row.
	err = svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionPay})
	if !errors.Is(err, models.ErrAlreadyResolved) {
		t.Errorf("replay error = %v; want ErrAlreadyResolved", err)
	}
	if b.total != 2000 || len(fr.ledger) != 1 {
		t.Errorf("replay changed funds or ledger: total=%d ledger=%d", b.total, len(fr.ledger))
	}
}

func TestRejectReleasesReservation(t *testing.T) {
	fr, _, _, svc := newFixture()
	ctx := context.Background()

	wr, err := svc.RequestWithdrawal(ctx, "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 3000, MethodID: "pm-expert"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if err := svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionReject, Note: "account mismatch"}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	b := fr.expertFunds["expert-1"]
	if b.total != 5000 || b.reserved != 0 {
		t.Errorf("balance/reserved = %d/%d; want 5000/0 after reject", b.total, b.reserved)
	}
	if len(fr.ledger) != 0 {
		t.Errorf("ledger rows = %d; want 0 for a rejected request", len(fr.ledger))
	}
}

func TestStudentPathSkipsConfirm(t *testing.T) {
	fr, _, _, svc := newFixture()
	ctx := context.Background()

	wr, err := svc.RequestWithdrawal(ctx, "student-1", models.RoleStudent,
		models.CreateWithdrawalInput{Amount: 1500, MethodID: "pm-student"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	// confirm is an expert-path action.
	err = svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionConfirm})
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("confirm on student request error = %v; want ErrConflict", err)
	}

	if err := svc.Resolve(ctx, wr.ID, models.UpdateWithdrawalInput{Action: models.WithdrawalActionApprove}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	b := fr.studentFunds["student-1"]
	if b.total != 500 || b.reserved != 0 {
		t.Errorf("balance/reserved = %d/%d; want 500/0", b.total, b.reserved)
	}
}

func TestGetWithdrawalVisibility(t *testing.T) {
	_, _, _, svc := newFixture()
	ctx := context.Background()

	wr, err := svc.RequestWithdrawal(ctx, "expert-user-1", models.RoleExpert,
		models.CreateWithdrawalInput{Amount: 1000, MethodID: "pm-expert"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	if _, err := svc.GetWithdrawal(ctx, wr.ID, "expert-user-1", models.RoleExpert); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := svc.GetWithdrawal(ctx, wr.ID, "admin-1", models.RoleAdmin); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	if _, err := svc.GetWithdrawal(ctx, wr.ID, "student-1", models.RoleStudent); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stranger read error = %v; want ErrNotFound", err)
	}
}
