package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"gymdesk/internal/dedup"
	"gymdesk/internal/domain"
)

func seedEnrolledClient(s *memStore) {
	s.addProfile(domain.Profile{ID: "c1", FullName: "Bruno Lima"})
	plan := "plan-1"
	s.plans = append(s.plans, mkPlan(plan, "c1", "300", base))
	for i := 1; i <= 3; i++ {
		s.payments = append(s.payments, mkPayment("p"+string(rune('0'+i)), "c1", &plan, i, "100", base.Add(time.Duration(i)*time.Second)))
	}
	s.instructors["c1"] = 2
}

func TestSoftDelete(t *testing.T) {
	s := newMemStore()
	seedEnrolledClient(s)
	svc := NewClientService(s, dedup.DefaultOptions())

	reason := "pediu cancelamento"
	res, err := svc.SoftDelete(context.Background(), "admin-1", "c1", &reason)
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if res.CancelledPayments != 3 || res.CancelledPlans != 1 || res.DeactivatedInstructor != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	for _, p := range s.payments {
		if p.Status != domain.PaymentCancelled {
			t.Errorf("payment %s is %s, want cancelled", p.ID, p.Status)
		}
	}
	if s.plans[0].Status != domain.PlanCancelled {
		t.Errorf("plan is %s, want cancelled", s.plans[0].Status)
	}
	if got := s.profile("c1").EnrollmentStatus; got != domain.EnrollmentCancelled {
		t.Errorf("enrollment is %s, want cancelled", got)
	}

	if len(s.trash) != 1 {
		t.Fatalf("expected one trash record, got %d", len(s.trash))
	}
	item := s.trash[0]
	if item.ItemType != domain.TrashItemProfile || item.OriginalID != "c1" || item.DeletedBy != "admin-1" || item.ID != res.TrashID {
		t.Errorf("unexpected trash item %+v", item)
	}
	if item.Reason == nil || *item.Reason != reason {
		t.Errorf("reason not stored: %v", item.Reason)
	}

	var snap clientSnapshot
	if err := json.Unmarshal(item.Snapshot, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.PendingPayments != 3 || !snap.PendingAmount.Equal(dec("300")) || snap.ActivePlans != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if !reflect.DeepEqual(snap.ActivePlanIDs, []string{"plan-1"}) {
		t.Errorf("unexpected plan ids %v", snap.ActivePlanIDs)
	}
	if snap.Profile.EnrollmentStatus != domain.EnrollmentActive {
		t.Error("snapshot should hold the profile as it was before cancelling")
	}
}

func TestSoftDelete_LeavesPaidAndFrozenRowsAlone(t *testing.T) {
	s := newMemStore()
	seedEnrolledClient(s)
	s.payments[0].Status = domain.PaymentPaid
	svc := NewClientService(s, dedup.DefaultOptions())

	res, err := svc.SoftDelete(context.Background(), "admin-1", "c1", nil)
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if res.CancelledPayments != 2 {
		t.Errorf("expected 2 cancelled, got %d", res.CancelledPayments)
	}
	if s.payments[0].Status != domain.PaymentPaid {
		t.Error("paid payment must keep its status")
	}
}

func TestSoftDelete_Errors(t *testing.T) {
	s := newMemStore()
	seedEnrolledClient(s)
	svc := NewClientService(s, dedup.DefaultOptions())

	if _, err := svc.SoftDelete(context.Background(), "admin-1", "nope", nil); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}

	if _, err := svc.SoftDelete(context.Background(), "admin-1", "c1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SoftDelete(context.Background(), "admin-1", "c1", nil); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestSoftDelete_NonAtomicFailureReportsProgress(t *testing.T) {
	s := newMemStore()
	s.atomic = false
	seedEnrolledClient(s)
	s.fail["Profiles.SetEnrollmentStatus"] = errBoom
	svc := NewClientService(s, dedup.DefaultOptions())

	_, err := svc.SoftDelete(context.Background(), "admin-1", "c1", nil)

	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected StepError, got %v", err)
	}
	want := []string{stepArchive, stepCancelPayments, stepCancelPlans}
	if se.Step != stepCancelEnrollment || !reflect.DeepEqual(se.Applied, want) {
		t.Fatalf("step=%s applied=%v", se.Step, se.Applied)
	}
	if s.profile("c1").EnrollmentStatus != domain.EnrollmentActive {
		t.Error("enrollment should be unchanged")
	}
	if len(s.trash) != 1 {
		t.Error("trash record stays applied on a non-atomic store")
	}
}

func TestSoftDelete_AtomicFailureKeepsClientIntact(t *testing.T) {
	s := newMemStore()
	seedEnrolledClient(s)
	s.fail["Instructors.DeactivateByClient"] = errBoom
	svc := NewClientService(s, dedup.DefaultOptions())

	if _, err := svc.SoftDelete(context.Background(), "admin-1", "c1", nil); err == nil {
		t.Fatal("expected error")
	}
	if len(s.trash) != 0 || s.payments[0].Status != domain.PaymentPending || s.profile("c1").EnrollmentStatus != domain.EnrollmentActive {
		t.Error("atomic store should roll everything back")
	}
}

func TestFreezeUnfreeze(t *testing.T) {
	s := newMemStore()
	seedEnrolledClient(s)
	s.payments[0].Status = domain.PaymentPaid
	svc := NewClientService(s, dedup.DefaultOptions())
	ctx := context.Background()

	plan, err := svc.Freeze(ctx, "plan-1")
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if plan.Status != domain.PlanFrozen {
		t.Errorf("plan status %s", plan.Status)
	}
	if s.payments[0].Status != domain.PaymentPaid || s.payments[1].Status != domain.PaymentFrozen || s.payments[2].Status != domain.PaymentFrozen {
		t.Errorf("unexpected payment statuses after freeze: %s %s %s", s.payments[0].Status, s.payments[1].Status, s.payments[2].Status)
	}

	if _, err := svc.Freeze(ctx, "plan-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("freezing twice should fail, got %v", err)
	}

	if _, err := svc.Unfreeze(ctx, "plan-1"); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if s.plans[0].Status != domain.PlanActive || s.payments[1].Status != domain.PaymentPending {
		t.Error("unfreeze should restore active plan and pending payments")
	}

	if _, err := svc.Unfreeze(ctx, "plan-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unfreezing an active plan should fail, got %v", err)
	}
	if _, err := svc.Freeze(ctx, "missing"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	s := newMemStore()
	seedDoubleSubmission(s)
	s.payments[0].Status = domain.PaymentPaid
	s.accessLogs = append(s.accessLogs, domain.AccessLog{ID: "l1", ClientID: "c1", AccessType: "entry", AccessedAt: base})
	svc := NewClientService(s, dedup.DefaultOptions())

	h, err := svc.History(context.Background(), "c1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(h.Payments) != 8 || len(h.Plans) != 2 || len(h.AccessLogs) != 1 {
		t.Errorf("unexpected sizes: %d payments %d plans %d logs", len(h.Payments), len(h.Plans), len(h.AccessLogs))
	}
	if !h.Totals.Paid.Equal(dec("100")) || !h.Totals.Pending.Equal(dec("600")) {
		t.Errorf("unexpected totals %+v", h.Totals)
	}
	if h.Duplicates != (DuplicateBanner{Payments: 1, Plans: 1, TotalRecords: 5}) {
		t.Errorf("unexpected banner %+v", h.Duplicates)
	}
	if !h.Payments[0].CreatedAt.After(h.Payments[len(h.Payments)-1].CreatedAt) {
		t.Error("payments should be newest first")
	}
}

func TestHistory_UnknownClient(t *testing.T) {
	svc := NewClientService(newMemStore(), dedup.DefaultOptions())
	if _, err := svc.History(context.Background(), "x"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}
