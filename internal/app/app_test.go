package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ctx   context.Context
	svc   *app.Services
	store *memory.Store
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	svc := app.New(app.Deps{
		Store:      store,
		Now:        clock.Now,
		BcryptCost: bcrypt.MinCost,
	})
	f := &fixture{ctx: context.Background(), svc: svc, store: store, clock: clock}
	if _, err := svc.Achievements.EnsureCatalog(f.ctx); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	return f
}

func (f *fixture) register(t *testing.T, first, email string, role domain.Role) domain.Account {
	t.Helper()
	acc, err := f.svc.Accounts.Provision(f.ctx, app.Registration{
		FirstName: first,
		LastName:  "Test",
		Email:     email,
		Password:  "secret-pass",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return acc
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	acc, err := f.svc.Accounts.Get(f.ctx, id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return acc.Balance
}

// assertLedgerMatches checks that the signed ledger total equals the stored balance.
func (f *fixture) assertLedgerMatches(t *testing.T, id int64) {
	t.Helper()
	entries, err := f.svc.Accounts.History(f.ctx, id, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var sum int64
	for _, e := range entries {
		if e.Direction == domain.DirectionCredit {
			sum += e.Amount
		} else {
			sum -= e.Amount
		}
	}
	if got := f.balance(t, id); got != sum {
		t.Fatalf("ledger total %d does not match balance %d", sum, got)
	}
}

func TestRegisterGrantsInitialPoints(t *testing.T) {
	f := newFixture(t)
	acc, err := f.svc.Accounts.Register(f.ctx, app.Registration{
		FirstName: "Ana",
		LastName:  "Pop",
		Email:     "Ana@Example.com",
		Password:  "secret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acc.Balance != 150 || acc.Role != domain.RoleLearner || acc.Email != "ana@example.com" {
		t.Fatalf("unexpected account %+v", acc)
	}
	entries, _ := f.svc.Accounts.History(f.ctx, acc.ID, acc.ID)
	if len(entries) != 1 || entries[0].Reason != domain.ReasonInitialGrant || entries[0].BalanceAfter != 150 {
		t.Fatalf("expected one initial grant entry, got %+v", entries)
	}

	_, err = f.svc.Accounts.Register(f.ctx, app.Registration{FirstName: "Ana", LastName: "Pop", Email: "ana@example.com", Password: "secret-pass"})
	if !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	_, err = f.svc.Accounts.Register(f.ctx, app.Registration{FirstName: "Root", LastName: "Admin", Email: "root@example.com", Password: "secret-pass", Role: domain.RoleAdministrator})
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for admin self-registration, got %v", err)
	}

	if _, err := f.svc.Accounts.Authenticate(f.ctx, "ANA@example.com", "secret-pass"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := f.svc.Accounts.Authenticate(f.ctx, "ana@example.com", "wrong"); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestBookingDebitAndRejectRefund(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	when := f.clock.Now().Add(48 * time.Hour)

	res, err := f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: when, Message: "Grammar help"})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if res.Balance != 50 || res.Booking.Status != domain.BookingPending || res.Booking.DurationMinutes != 60 {
		t.Fatalf("unexpected booking result %+v", res)
	}

	_, err = f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: when})
	if !domain.IsKind(err, domain.KindInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := f.balance(t, learner.ID); got != 50 {
		t.Fatalf("failed booking must not move points, balance %d", got)
	}

	_, err = f.svc.Bookings.Respond(f.ctx, learner.ID, res.Booking.ID, app.BookingResponse{Action: domain.ActionReject})
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden when requester responds, got %v", err)
	}

	rejected, err := f.svc.Bookings.Respond(f.ctx, provider.ID, res.Booking.ID, app.BookingResponse{Action: domain.ActionReject})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Booking.Status != domain.BookingRejected || rejected.Booking.Response != domain.DefaultRejectResponse {
		t.Fatalf("unexpected rejected booking %+v", rejected.Booking)
	}
	if rejected.Balance != 150 {
		t.Fatalf("expected refund to 150, got %d", rejected.Balance)
	}

	_, err = f.svc.Bookings.Cancel(f.ctx, learner.ID, res.Booking.ID)
	if !domain.IsKind(err, domain.KindInvalidTransition) {
		t.Fatalf("expected invalid transition cancelling a rejected booking, got %v", err)
	}
	if got := f.balance(t, learner.ID); got != 150 {
		t.Fatalf("no second refund expected, balance %d", got)
	}
	f.assertLedgerMatches(t, learner.ID)
}

func TestBookingValidation(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	other := f.register(t, "Otto", "otto@example.com", domain.RoleLearner)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	future := f.clock.Now().Add(time.Hour)

	cases := []struct {
		name string
		req  app.BookingRequest
		kind domain.Kind
	}{
		{"past schedule", app.BookingRequest{ProviderID: provider.ID, ScheduledAt: f.clock.Now()}, domain.KindValidation},
		{"learner as provider", app.BookingRequest{ProviderID: other.ID, ScheduledAt: future}, domain.KindValidation},
		{"unknown provider", app.BookingRequest{ProviderID: 999, ScheduledAt: future}, domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Bookings.Create(f.ctx, learner.ID, tc.req)
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}

	if _, err := f.svc.Accounts.SetAvailability(f.ctx, provider.ID, false); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	_, err := f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: future})
	if err == nil || !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected unavailable provider to be rejected, got %v", err)
	}
	if got := f.balance(t, learner.ID); got != 150 {
		t.Fatalf("validation failures must not move points, balance %d", got)
	}
}

func TestBookingConfirmCancelAndComplete(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	stranger := f.register(t, "Sam", "sam@example.com", domain.RoleLearner)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	when := f.clock.Now().Add(24 * time.Hour)

	first, err := f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: when})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	confirmed, err := f.svc.Bookings.Respond(f.ctx, provider.ID, first.Booking.ID, app.BookingResponse{
		Action:      domain.ActionConfirm,
		MeetingLink: "https://meet.example.com/abc",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Booking.Response != domain.DefaultConfirmResponse || confirmed.Booking.MeetingLink == "" {
		t.Fatalf("unexpected confirmed booking %+v", confirmed.Booking)
	}
	if _, err := f.svc.Bookings.Respond(f.ctx, provider.ID, first.Booking.ID, app.BookingResponse{Action: domain.ActionReject}); !domain.IsKind(err, domain.KindInvalidTransition) {
		t.Fatalf("expected invalid transition responding twice, got %v", err)
	}

	if _, err := f.svc.Bookings.Cancel(f.ctx, stranger.ID, first.Booking.ID); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for non-party cancel, got %v", err)
	}
	cancelled, err := f.svc.Bookings.Cancel(f.ctx, provider.ID, first.Booking.ID)
	if err != nil {
		t.Fatalf("cancel confirmed: %v", err)
	}
	if cancelled.Booking.Status != domain.BookingCancelled || cancelled.Balance != 150 {
		t.Fatalf("expected cancelled with refund, got %+v", cancelled)
	}

	second, err := f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: when})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := f.svc.Bookings.Complete(f.ctx, provider.ID, second.Booking.ID); !domain.IsKind(err, domain.KindInvalidTransition) {
		t.Fatalf("expected pending booking not completable, got %v", err)
	}
	if _, err := f.svc.Bookings.Respond(f.ctx, provider.ID, second.Booking.ID, app.BookingResponse{Action: domain.ActionConfirm}); err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	done, err := f.svc.Bookings.Complete(f.ctx, provider.ID, second.Booking.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Booking.Status != domain.BookingCompleted || done.Balance != 50 {
		t.Fatalf("completion keeps the charge, got %+v", done)
	}
	if _, err := f.svc.Bookings.Cancel(f.ctx, learner.ID, second.Booking.ID); !domain.IsKind(err, domain.KindInvalidTransition) {
		t.Fatalf("expected completed booking immutable, got %v", err)
	}

	mine, err := f.svc.Bookings.List(f.ctx, learner.ID)
	if err != nil || len(mine) != 2 {
		t.Fatalf("expected two bookings for learner, got %d (%v)", len(mine), err)
	}
	theirs, err := f.svc.Bookings.List(f.ctx, provider.ID)
	if err != nil || len(theirs) != 2 {
		t.Fatalf("expected two bookings for provider, got %d (%v)", len(theirs), err)
	}
	f.assertLedgerMatches(t, learner.ID)
}

func TestConcurrentBookingsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	when := f.clock.Now().Add(24 * time.Hour)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Bookings.Create(f.ctx, learner.ID, app.BookingRequest{ProviderID: provider.ID, ScheduledAt: when})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !domain.IsKind(err, domain.KindInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one booking, got %d", succeeded)
	}
	if got := f.balance(t, learner.ID); got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}
	f.assertLedgerMatches(t, learner.ID)
}
