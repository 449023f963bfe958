package order

import (
	"context"
	"errors"
	"testing"

	"pengu-backend/internal/models"
	"pengu-backend/internal/notify"
)

// ----------------------------------------------------------------------------
// fakeRepo: in-memory order store mirroring the guarded transitions of the
// real repository, plus a ledger slice so tests can assert on the money
// movements ApproveMilestone performs.
// ----------------------------------------------------------------------------
type fakeRepo struct {
	orders       map[string]*models.Order
	milestones   map[string][]*models.Milestone // order id -> ordered milestones
	experts      map[string]*models.Expert
	studentFunds map[string]int64 // wallet balance by student user id
	ledger       []models.FinancialTransaction
	reviews      []models.Review
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:       make(map[string]*models.Order),
		milestones:   make(map[string][]*models.Milestone),
		experts:      make(map[string]*models.Expert),
		studentFunds: make(map[string]int64),
	}
}

func (f *fakeRepo) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	cp.Milestones = f.milestones[orderID]
	return &cp, nil
}

func (f *fakeRepo) ListByStudent(ctx context.Context, studentID string, page, limit int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListByExpert(ctx context.Context, expertID string, page, limit int) ([]*models.Order, int, error) {
	out := []*models.Order{}
	for _, o := range f.orders {
		if o.ExpertID != nil && *o.ExpertID == expertID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListAll(ctx context.Context, status models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) AssignExpert(ctx context.Context, orderID, expertID string) error {
	ex, ok := f.experts[expertID]
	if !ok {
		return models.ErrNotFound
	}
	if ex.Status != models.ExpertActive || !ex.Online {
		return models.ErrExpertUnavailable
	}
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if !o.Status.Assignable() {
		return models.ErrOrderAlreadyAssigned
	}
	o.ExpertID = &expertID
	o.Status = models.OrderAssigned
	return nil
}

func (f *fakeRepo) milestone(orderID, milestoneID string) (*models.Order, *models.Milestone, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil, models.ErrNotFound
	}
	for _, m := range f.milestones[orderID] {
		if m.ID == milestoneID {
			return o, m, nil
		}
	}
	return nil, nil, models.ErrNotFound
}

func (f *fakeRepo) StartMilestone(ctx context.Context, orderID, milestoneID string) error {
	o, m, err := f.milestone(orderID, milestoneID)
	if err != nil {
		return err
	}
	if m.Status != models.MilestonePending {
		return models.ErrMilestoneNotStartable
	}
	for _, prior := range f.milestones[orderID] {
		if prior.Position < m.Position && prior.Status != models.MilestoneApproved {
			return models.ErrMilestoneNotStartable
		}
	}
	m.Status = models.MilestoneInProgress
	o.Status = models.OrderInProgress
	return nil
}

func (f *fakeRepo) SubmitMilestone(ctx context.Context, orderID, milestoneID string, files []models.Attachment) error {
	o, m, err := f.milestone(orderID, milestoneID)
	if err != nil {
		return err
	}
	if m.Status != models.MilestoneInProgress {
		return models.ErrMilestoneNotDeliverable
	}
	m.Status = models.MilestoneDelivered
	m.Submissions = files
	o.Status = models.OrderReview
	return nil
}

func (f *fakeRepo) ApproveMilestone(ctx context.Context, orderID, milestoneID string, commission, expertCredit int64) (bool, error) {
	o, m, err := f.milestone(orderID, milestoneID)
	if err != nil {
		return false, err
	}
	if m.Status != models.MilestoneDelivered {
		return false, models.ErrMilestoneNotDeliverable
	}
	m.Status = models.MilestoneApproved
	for _, other := range f.milestones[orderID] {
		if other.Status != models.MilestoneApproved {
			o.Status = models.OrderInProgress
			return false, nil
		}
	}
	o.Status = models.OrderCompleted
	ex := f.experts[*o.ExpertID]
	ex.Balance += expertCredit
	ex.Earnings += expertCredit
	ex.CompletedOrders++
	f.ledger = append(f.ledger,
		models.FinancialTransaction{Type: models.TxCommission, Amount: commission, OrderID: &o.ID},
		models.FinancialTransaction{Type: models.TxExpertCredit, Amount: expertCredit, OrderID: &o.ID},
	)
	f.reviews = append(f.reviews, models.Review{
		OrderID:   o.ID,
		StudentID: o.StudentID,
		ExpertID:  *o.ExpertID,
		Status:    models.ReviewPending,
	})
	return true, nil
}

func (f *fakeRepo) RejectMilestone(ctx context.Context, orderID, milestoneID string) error {
	o, m, err := f.milestone(orderID, milestoneID)
	if err != nil {
		return err
	}
	if m.Status != models.MilestoneDelivered {
		return models.ErrMilestoneNotDeliverable
	}
	m.Status = models.MilestoneInProgress
	o.Status = models.OrderInProgress
	return nil
}

func (f *fakeRepo) OpenDispute(ctx context.Context, orderID, reason string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if !o.Status.Disputable() {
		return models.ErrInvalidOrderTransition
	}
	o.DisputeReturnStatus = o.Status
	o.DisputeReason = reason
	o.Status = models.OrderDispute
	return nil
}

func (f *fakeRepo) ResolveDispute(ctx context.Context, orderID string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if o.Status != models.OrderDispute {
		return models.ErrInvalidOrderTransition
	}
	o.Status = o.DisputeReturnStatus
	o.DisputeReturnStatus = ""
	return nil
}

func (f *fakeRepo) RefundDispute(ctx context.Context, orderID string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if o.Status != models.OrderDispute {
		return models.ErrInvalidOrderTransition
	}
	o.Status = models.OrderCancelled
	o.DisputeReturnStatus = ""
	f.studentFunds[o.StudentID] += o.Amount
	f.ledger = append(f.ledger,
		models.FinancialTransaction{Type: models.TxRefund, Amount: o.Amount, OrderID: &o.ID})
	return nil
}

// fakeDirectory serves expert lookups from the fakeRepo's expert map.
type fakeDirectory struct {
	repo *fakeRepo
}

func (f fakeDirectory) GetExpert(ctx context.Context, expertID string) (*models.Expert, error) {
	ex, ok := f.repo.experts[expertID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return ex, nil
}

func (f fakeDirectory) GetExpertByUser(ctx context.Context, userID string) (*models.Expert, error) {
	for _, ex := range f.repo.experts {
		if ex.UserID == userID {
			return ex, nil
		}
	}
	return nil, models.ErrNotFound
}

type fakeNotifier struct {
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ context.Context, ev notify.Event) {
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) count(kind string) int {
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// seedOrder builds an assigned order with two milestones, the first already
// delivered and awaiting QC.
func seedOrder(fr *fakeRepo) {
	expertID := "expert-1"
	fr.experts[expertID] = &models.Expert{
		ID:     expertID,
		UserID: "expert-user-1",
		Status: models.ExpertActive,
		Online: true,
	}
	fr.orders["order-1"] = &models.Order{
		ID:        "order-1",
		StudentID: "student-1",
		ExpertID:  &expertID,
		Status:    models.OrderReview,
		Amount:    50000,
	}
	fr.milestones["order-1"] = []*models.Milestone{
		{ID: "ms-1", OrderID: "order-1", Position: 0, Status: models.MilestoneDelivered},
		{ID: "ms-2", OrderID: "order-1", Position: 1, Status: models.MilestonePending},
	}
}

func newTestService(fr *fakeRepo, fn *fakeNotifier) *Service {
	return NewService(fr, fakeDirectory{repo: fr}, fn, 20)
}

func TestAssignExpertUnavailable(t *testing.T) {
	fr := newFakeRepo()
	fr.experts["expert-1"] = &models.Expert{ID: "expert-1", UserID: "u1", Status: models.ExpertActive, Online: false}
	fr.orders["order-1"] = &models.Order{ID: "order-1", Status: models.OrderPaidConfirmed}
	svc := newTestService(fr, &fakeNotifier{})

	err := svc.AssignExpert(context.Background(), "order-1", models.AssignExpertInput{ExpertID: "expert-1"})
	if !errors.Is(err, models.ErrExpertUnavailable) {
		t.Errorf("error = %v; want ErrExpertUnavailable", err)
	}
	if fr.orders["order-1"].ExpertID != nil {
		t.Error("offline expert was assigned")
	}
}

func TestAssignExpertNotifiesUser(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	fr.experts["expert-1"] = &models.Expert{ID: "expert-1", UserID: "expert-user-1", Status: models.ExpertActive, Online: true}
	fr.orders["order-1"] = &models.Order{ID: "order-1", Status: models.OrderPaidConfirmed}
	svc := newTestService(fr, fn)

	if err := svc.AssignExpert(context.Background(), "order-1", models.AssignExpertInput{ExpertID: "expert-1"}); err != nil {
		t.Fatalf("AssignExpert failed: %v", err)
	}
	if fr.orders["order-1"].Status != models.OrderAssigned {
		t.Errorf("order status = %s; want %s", fr.orders["order-1"].Status, models.OrderAssigned)
	}
	if fn.count(notify.EventExpertAssigned) != 1 {
		t.Errorf("assignment notifications = %d; want 1", fn.count(notify.EventExpertAssigned))
	}
	if len(fn.events) > 0 && fn.events[0].RecipientID != "expert-user-1" {
		t.Errorf("recipient = %s; want the expert's user id", fn.events[0].RecipientID)
	}
}

func TestAssignExpertPastReassignmentWindow(t *testing.T) {
	fr := newFakeRepo()
	fr.experts["expert-1"] = &models.Expert{ID: "expert-1", UserID: "u1", Status: models.ExpertActive, Online: true}
	fr.orders["order-1"] = &models.Order{ID: "order-1", Status: models.OrderInProgress}
	svc := newTestService(fr, &fakeNotifier{})

	err := svc.AssignExpert(context.Background(), "order-1", models.AssignExpertInput{ExpertID: "expert-1"})
	if !errors.Is(err, models.ErrOrderAlreadyAssigned) {
		t.Errorf("error = %v; want ErrOrderAlreadyAssigned", err)
	}
}

func TestStartMilestoneRequiresPriorApproval(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})

	err := svc.StartMilestone(context.Background(), "order-1", "ms-2", "expert-user-1")
	if !errors.Is(err, models.ErrMilestoneNotStartable) {
		t.Errorf("error = %v; want ErrMilestoneNotStartable", err)
	}
}

func TestSubmitMilestoneRequiresFiles(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})

	err := svc.SubmitMilestone(context.Background(), "order-1", "ms-1", "expert-user-1", nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v; want ErrValidation", err)
	}
}

func TestSubmitMilestoneNotifiesReviewQueue(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	seedOrder(fr)
	fr.milestones["order-1"][0].Status = models.MilestoneInProgress
	svc := newTestService(fr, fn)

	files := []models.Attachment{{Name: "final.pdf", Format: "pdf", URL: "https://files/final.pdf"}}
	if err := svc.SubmitMilestone(context.Background(), "order-1", "ms-1", "expert-user-1", files); err != nil {
		t.Fatalf("SubmitMilestone failed: %v", err)
	}
	if got := fr.milestones["order-1"][0].Status; got != models.MilestoneDelivered {
		t.Errorf("milestone status = %s; want %s", got, models.MilestoneDelivered)
	}
	if fn.count(notify.EventMilestoneDelivered) != 1 {
		t.Errorf("delivery notifications = %d; want 1", fn.count(notify.EventMilestoneDelivered))
	}
}

func TestSubmitMilestoneWrongExpert(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	fr.milestones["order-1"][0].Status = models.MilestoneInProgress
	svc := newTestService(fr, &fakeNotifier{})

	files := []models.Attachment{{Name: "draft.pdf", Format: "pdf", URL: "https://files/draft.pdf"}}
	err := svc.SubmitMilestone(context.Background(), "order-1", "ms-1", "someone-else", files)
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("error = %v; want ErrForbidden", err)
	}
}

func TestRejectDeliverableRequestsRevisionOnce(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	seedOrder(fr)
	svc := newTestService(fr, fn)

	if err := svc.ReviewDeliverable(context.Background(), "order-1", "ms-1", false, "missing citations"); err != nil {
		t.Fatalf("ReviewDeliverable failed: %v", err)
	}
	if got := fr.milestones["order-1"][0].Status; got != models.MilestoneInProgress {
		t.Errorf("milestone status = %s; want back to %s", got, models.MilestoneInProgress)
	}
	if got := fr.orders["order-1"].Status; got != models.OrderInProgress {
		t.Errorf("order status = %s; want %s", got, models.OrderInProgress)
	}
	if fn.count(notify.EventRevisionRequested) != 1 {
		t.Errorf("revision notifications = %d; want exactly 1", fn.count(notify.EventRevisionRequested))
	}

	// A second review of the same milestone is a state conflict, not a
	// second notification.
	err := svc.ReviewDeliverable(context.Background(), "order-1", "ms-1", false, "still wrong")
	if !errors.Is(err, models.ErrMilestoneNotDeliverable) {
		t.Errorf("replay error = %v; want ErrMilestoneNotDeliverable", err)
	}
	if fn.count(notify.EventRevisionRequested) != 1 {
		t.Errorf("revision notifications after replay = %d; want 1", fn.count(notify.EventRevisionRequested))
	}
}

func TestApproveIntermediateMilestoneKeepsOrderOpen(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})

	if err := svc.ReviewDeliverable(context.Background(), "order-1", "ms-1", true, ""); err != nil {
		t.Fatalf("ReviewDeliverable failed: %v", err)
	}
	if got := fr.orders["order-1"].Status; got != models.OrderInProgress {
		t.Errorf("order status = %s; want %s", got, models.OrderInProgress)
	}
	if len(fr.ledger) != 0 {
		t.Errorf("ledger rows = %d; want none before completion", len(fr.ledger))
	}
	if fr.experts["expert-1"].Balance != 0 {
		t.Errorf("expert balance = %d; want 0 before completion", fr.experts["expert-1"].Balance)
	}
}

func TestApproveFinalMilestoneCompletesAndCredits(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	seedOrder(fr)
	fr.milestones["order-1"][0].Status = models.MilestoneApproved
	fr.milestones["order-1"][1].Status = models.MilestoneDelivered
	svc := newTestService(fr, fn)

	if err := svc.ReviewDeliverable(context.Background(), "order-1", "ms-2", true, ""); err != nil {
		t.Fatalf("ReviewDeliverable failed: %v", err)
	}
	if got := fr.orders["order-1"].Status; got != models.OrderCompleted {
		t.Errorf("order status = %s; want %s", got, models.OrderCompleted)
	}
	// 20% commission on 50000: platform 10000, expert 40000.
	ex := fr.experts["expert-1"]
	if ex.Balance != 40000 || ex.Earnings != 40000 {
		t.Errorf("expert balance/earnings = %d/%d; want 40000/40000", ex.Balance, ex.Earnings)
	}
	if ex.CompletedOrders != 1 {
		t.Errorf("completed orders = %d; want 1", ex.CompletedOrders)
	}
	if len(fr.ledger) != 2 {
		t.Fatalf("ledger rows = %d; want 2", len(fr.ledger))
	}
	if fr.ledger[0].Type != models.TxCommission || fr.ledger[0].Amount != 10000 {
		t.Errorf("ledger[0] = %s/%d; want COMMISSION/10000", fr.ledger[0].Type, fr.ledger[0].Amount)
	}
	if fr.ledger[1].Type != models.TxExpertCredit || fr.ledger[1].Amount != 40000 {
		t.Errorf("ledger[1] = %s/%d; want EXPERT_CREDIT/40000", fr.ledger[1].Type, fr.ledger[1].Amount)
	}
	if len(fr.reviews) != 1 || fr.reviews[0].Status != models.ReviewPending {
		t.Errorf("pre-created review missing or not PENDING: %+v", fr.reviews)
	}
	if fn.count(notify.EventOrderCompleted) != 2 {
		t.Errorf("completion notifications = %d; want 2 (student and expert)", fn.count(notify.EventOrderCompleted))
	}
}

func TestDisputeRoundTrip(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	seedOrder(fr)
	svc := newTestService(fr, fn)
	ctx := context.Background()

	if err := svc.OpenDispute(ctx, "order-1", "student-1", models.RoleStudent, "work is plagiarized"); err != nil {
		t.Fatalf("OpenDispute failed: %v", err)
	}
	if fr.orders["order-1"].Status != models.OrderDispute {
		t.Errorf("order status = %s; want %s", fr.orders["order-1"].Status, models.OrderDispute)
	}
	if fn.count(notify.EventDisputeOpened) != 1 {
		t.Errorf("dispute-opened notifications = %d; want 1", fn.count(notify.EventDisputeOpened))
	}
	if err := svc.ResolveDispute(ctx, "order-1", models.ResolveDisputeInput{}); err != nil {
		t.Fatalf("ResolveDispute failed: %v", err)
	}
	if fr.orders["order-1"].Status != models.OrderReview {
		t.Errorf("order status = %s; want restored %s", fr.orders["order-1"].Status, models.OrderReview)
	}
	if fn.count(notify.EventDisputeResolved) != 1 {
		t.Errorf("dispute-resolved notifications = %d; want 1", fn.count(notify.EventDisputeResolved))
	}
}

func TestResolveDisputeRefundCreditsStudentWallet(t *testing.T) {
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	seedOrder(fr)
	svc := newTestService(fr, fn)
	ctx := context.Background()

	if err := svc.OpenDispute(ctx, "order-1", "student-1", models.RoleStudent, "never delivered"); err != nil {
		t.Fatalf("OpenDispute failed: %v", err)
	}
	if err := svc.ResolveDispute(ctx, "order-1", models.ResolveDisputeInput{Outcome: models.DisputeOutcomeRefund}); err != nil {
		t.Fatalf("ResolveDispute failed: %v", err)
	}
	if fr.orders["order-1"].Status != models.OrderCancelled {
		t.Errorf("order status = %s; want %s", fr.orders["order-1"].Status, models.OrderCancelled)
	}
	if fr.studentFunds["student-1"] != 50000 {
		t.Errorf("student wallet = %d; want the full 50000 back", fr.studentFunds["student-1"])
	}
	if len(fr.ledger) != 1 || fr.ledger[0].Type != models.TxRefund || fr.ledger[0].Amount != 50000 {
		t.Errorf("ledger = %+v; want one REFUND/50000 row", fr.ledger)
	}
	if fn.count(notify.EventDisputeResolved) != 1 {
		t.Errorf("dispute-resolved notifications = %d; want 1", fn.count(notify.EventDisputeResolved))
	}
}

func TestListExpertOrdersResolvesProfile(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})
	ctx := context.Background()

	orders, total, err := svc.ListExpertOrders(ctx, "expert-user-1", 1, 10)
	if err != nil {
		t.Fatalf("ListExpertOrders failed: %v", err)
	}
	if total != 1 || len(orders) != 1 || orders[0].ID != "order-1" {
		t.Errorf("orders = %d (%+v); want the one assignment", total, orders)
	}

	// A user without an expert profile has no assignments, not an error.
	orders, total, err = svc.ListExpertOrders(ctx, "someone-else", 1, 10)
	if err != nil {
		t.Fatalf("ListExpertOrders without profile failed: %v", err)
	}
	if total != 0 || len(orders) != 0 {
		t.Errorf("orders = %d; want none", total)
	}
}

func TestOpenDisputeWrongStudent(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})

	err := svc.OpenDispute(context.Background(), "order-1", "student-2", models.RoleStudent, "nope")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound", err)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	fr := newFakeRepo()
	seedOrder(fr)
	svc := newTestService(fr, &fakeNotifier{})
	ctx := context.Background()

	if _, err := svc.GetOrder(ctx, "order-1", "student-1", models.RoleStudent); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := svc.GetOrder(ctx, "order-1", "expert-user-1", models.RoleExpert); err != nil {
		t.Errorf("assigned expert read failed: %v", err)
	}
	if _, err := svc.GetOrder(ctx, "order-1", "student-2", models.RoleStudent); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stranger read error = %v; want ErrNotFound", err)
	}
}
