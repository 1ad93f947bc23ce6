package validation

import (
	"errors"
	"testing"

	"github.com/mmynk/splittat/internal/errs"
)

type itemPayload struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"min=1"`
}

type payload struct {
	Email string        `json:"email" validate:"required,email"`
	Items []itemPayload `json:"items" validate:"min=1,dive"`
}

func TestStruct_Valid(t *testing.T) {
	p := payload{
		Email: "a@example.com",
		Items: []itemPayload{{Name: "Tea", Price: 2, Quantity: 1}},
	}
	if err := Struct(p); err != nil {
		t.Fatalf("Struct() error = %v", err)
	}
}

func TestStruct_FieldErrors(t *testing.T) {
	p := payload{
		Email: "nope",
		Items: []itemPayload{{Name: "", Price: -1, Quantity: 0}},
	}
	err := Struct(p)

	var he *errs.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *errs.HTTPError, got %T", err)
	}
	if he.Status != 400 {
		t.Errorf("Status = %d, want 400", he.Status)
	}

	got := make(map[string]string)
	for _, fe := range he.Errors {
		got[fe.Field] = fe.Error
	}
	want := map[string]string{
		"email":    "must be a valid email address",
		"name":     "is required",
		"price":    "must be greater than or equal to 0",
		"quantity": "must be at least 1",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s: got %q, want %q", field, got[field], msg)
		}
	}
}

func TestStruct_EmptySlice(t *testing.T) {
	err := Struct(payload{Email: "a@example.com"})
	var he *errs.HTTPError
	if !errors.As(err, &he) || len(he.Errors) != 1 || he.Errors[0].Field != "items" {
		t.Fatalf("unexpected error: %+v", err)
	}
	if he.Errors[0].Error != "must have at least 1 entries" {
		t.Errorf("message = %q", he.Errors[0].Error)
	}
}
