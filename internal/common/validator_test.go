package common

import (
	"errors"
	"sync"
	"testing"
)

type registerForm struct {
	Username     string `validate:"required"`
	Password     string `validate:"required"`
	Confirmation string `validate:"eqfield=Password"`
}

func TestGenericEchoValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		form      registerForm
		wantField string
		wantTag   string
	}{
		{"valid", registerForm{"alice", "pw1", "pw1"}, "", ""},
		{"missing username", registerForm{"", "", "x"}, "Username", "required"},
		{"missing password", registerForm{"alice", "", ""}, "Password", "required"},
		{"mismatch", registerForm{"alice", "pw1", "pw2"}, "Confirmation", "eqfield"},
	}

	validator := &GenericEchoValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(&tt.form)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fieldErr.Field != tt.wantField || fieldErr.Tag != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", fieldErr.Field, fieldErr.Tag, tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestGenericEchoValidator_ConcurrentFirstUse(t *testing.T) {
	// zero value, so the first calls race to initialize the validator
	validator := &GenericEchoValidator{}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(valid bool) {
			defer wg.Done()
			form := registerForm{"alice", "pw1", "pw1"}
			if !valid {
				form.Confirmation = "pw2"
			}
			err := validator.Validate(&form)
			if valid && err != nil {
				errs <- err
			}
			if !valid && err == nil {
				errs <- errors.New("expected mismatch to fail validation")
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNewGenericEchoValidator(t *testing.T) {
	validator := NewGenericEchoValidator()
	if validator.Validator == nil {
		t.Fatalf("expected validator to be initialized")
	}
	var fieldErr *FieldError
	if err := validator.Validate(&registerForm{}); !errors.As(err, &fieldErr) || fieldErr.Field != "Username" {
		t.Fatalf("expected Username failure, got %v", err)
	}
}
