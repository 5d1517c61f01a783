package validator

import "testing"

type slotRequest struct {
	Slot    string `json:"slot" validate:"required,slot_token"`
	Gateway string `json:"gateway" validate:"required,gateway"`
	Status  string `json:"status" validate:"omitempty,booking_status"`
}

func TestValidate_CustomTags(t *testing.T) {
	if errs := Validate(&slotRequest{Slot: "09:00-11:00", Gateway: "esewa", Status: "EN_ROUTE"}); errs != nil {
		t.Fatalf("expected valid request, got %v", errs)
	}

	errs := Validate(&slotRequest{Slot: "11:00-09:00", Gateway: "paypal", Status: "in-progress"})
	for _, field := range []string{"slot", "gateway", "status"} {
		if _, ok := errs[field]; !ok {
			t.Fatalf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestValidate_LowercaseStatusRejected(t *testing.T) {
	errs := Validate(&slotRequest{Slot: "09:00-10:00", Gateway: "khalti", Status: "completed"})
	if errs["status"] == "" {
		t.Fatalf("expected lowercase status to be rejected, got %v", errs)
	}
}
