package booking

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

var allStatuses = []Status{
	StatusPendingConfirmation, StatusConfirmed, StatusProviderAssigned, StatusEnRoute,
	StatusInProgress, StatusCompleted, StatusCanceled, StatusDisputed,
}

func TestCanTransitionGraph(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPendingConfirmation, StatusConfirmed}: true,
		{StatusPendingConfirmation, StatusCanceled}:  true,
		{StatusConfirmed, StatusProviderAssigned}:    true,
		{StatusConfirmed, StatusCanceled}:            true,
		{StatusProviderAssigned, StatusEnRoute}:      true,
		{StatusProviderAssigned, StatusCanceled}:     true,
		{StatusEnRoute, StatusInProgress}:            true,
		{StatusEnRoute, StatusCanceled}:              true,
		{StatusInProgress, StatusCompleted}:          true,
		{StatusInProgress, StatusCanceled}:           true,
		{StatusInProgress, StatusDisputed}:           true,
		{StatusCompleted, StatusDisputed}:            true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoCancel(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCanceled, StatusDisputed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if CanTransition(s, StatusCanceled) {
			t.Errorf("%s must not be cancelable", s)
		}
	}
	if StatusInProgress.Terminal() {
		t.Error("IN_PROGRESS is not terminal")
	}
}

func TestLowercaseVocabularyIsRejected(t *testing.T) {
	for _, s := range []Status{"pending", "accepted", "in-progress", "completed", "cancelled"} {
		if s.Valid() {
			t.Errorf("%q should not be a valid status", s)
		}
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusPendingConfirmation)
	next[0] = StatusDisputed
	if !CanTransition(StatusPendingConfirmation, StatusConfirmed) {
		t.Fatal("mutating the result changed the transition graph")
	}
	if len(NextStatuses(StatusCanceled)) != 0 {
		t.Fatal("expected no next status for CANCELED")
	}
}

func TestAuthorize(t *testing.T) {
	customerID := uuid.New()
	providerID := uuid.New()
	stranger := uuid.New()

	cash := &Booking{CustomerID: customerID, ProviderID: &providerID, PaymentMethod: PaymentMethodCash}
	esewa := &Booking{CustomerID: customerID, ProviderID: &providerID, PaymentMethod: PaymentMethodEsewa}

	customer := Actor{ID: customerID, Role: RoleCustomer}
	provider := Actor{ID: providerID, Role: RoleProvider}
	otherProvider := Actor{ID: stranger, Role: RoleProvider}
	admin := Actor{ID: uuid.New(), Role: RoleAdmin}

	tests := []struct {
		name   string
		actor  Actor
		b      *Booking
		target Status
		ok     bool
	}{
		{"system confirms gateway booking", SystemActor, esewa, StatusConfirmed, true},
		{"provider confirms cash booking", provider, cash, StatusConfirmed, true},
		{"provider cannot confirm gateway booking", provider, esewa, StatusConfirmed, false},
		{"customer cannot confirm", customer, cash, StatusConfirmed, false},
		{"admin assigns", admin, cash, StatusProviderAssigned, true},
		{"own provider accepts", provider, cash, StatusProviderAssigned, true},
		{"other provider cannot accept", otherProvider, cash, StatusProviderAssigned, false},
		{"provider goes en route", provider, cash, StatusEnRoute, true},
		{"admin cannot go en route", admin, cash, StatusEnRoute, false},
		{"customer cannot start work", customer, cash, StatusInProgress, false},
		{"provider cannot complete directly", provider, cash, StatusCompleted, false},
		{"system completes", SystemActor, cash, StatusCompleted, true},
		{"customer cancels", customer, cash, StatusCanceled, true},
		{"stranger cannot cancel", otherProvider, cash, StatusCanceled, false},
		{"system cancels", SystemActor, cash, StatusCanceled, true},
		{"customer disputes", customer, cash, StatusDisputed, true},
		{"system cannot dispute", SystemActor, cash, StatusDisputed, false},
		{"customer id with provider role", Actor{ID: customerID, Role: RoleProvider}, cash, StatusCanceled, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.b, tc.target)
			if tc.ok && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrNotAllowed) {
				t.Fatalf("expected ErrNotAllowed, got %v", err)
			}
		})
	}
}

func TestAuthorizeCompletion(t *testing.T) {
	providerID := uuid.New()
	b := &Booking{CustomerID: uuid.New(), ProviderID: &providerID}

	if err := AuthorizeCompletion(Actor{ID: providerID, Role: RoleProvider}, b); err != nil {
		t.Fatalf("assigned provider should complete: %v", err)
	}
	if err := AuthorizeCompletion(Actor{ID: uuid.New(), Role: RoleAdmin}, b); err != nil {
		t.Fatalf("admin should complete: %v", err)
	}
	if err := AuthorizeCompletion(Actor{ID: b.CustomerID, Role: RoleCustomer}, b); err == nil {
		t.Fatal("customer must not complete")
	}
}

func TestCanView(t *testing.T) {
	providerID := uuid.New()
	b := &Booking{CustomerID: uuid.New()}

	if CanView(Actor{ID: providerID, Role: RoleProvider}, b) {
		t.Fatal("unassigned provider must not see the booking")
	}
	b.ProviderID = &providerID
	if !CanView(Actor{ID: providerID, Role: RoleProvider}, b) {
		t.Fatal("assigned provider should see the booking")
	}
	if !CanView(Actor{ID: b.CustomerID, Role: RoleCustomer}, b) {
		t.Fatal("owner should see the booking")
	}
	if CanView(Actor{ID: uuid.New(), Role: RoleCustomer}, b) {
		t.Fatal("other customers must not see the booking")
	}
}
