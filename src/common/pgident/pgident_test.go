package pgident

import (
	"testing"
)

const sqlInjectionAttempt = "users; DROP TABLE users;--"

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantErr    bool
	}{
		{
			name:       "valid simple identifier",
			identifier: "orders",
			wantErr:    false,
		},
		{
			name:       "valid identifier with underscore",
			identifier: "sales_orders",
			wantErr:    false,
		},
		{
			name:       "valid identifier starting with underscore",
			identifier: "_private_table",
			wantErr:    false,
		},
		{
			name:       "valid identifier with numbers",
			identifier: "table_123",
			wantErr:    false,
		},
		{
			name:       "empty identifier",
			identifier: "",
			wantErr:    true,
		},
		{
			name:       "identifier with spaces",
			identifier: "sales orders",
			wantErr:    true,
		},
		{
			name:       "identifier with semicolon (SQL injection)",
			identifier: sqlInjectionAttempt,
			wantErr:    true,
		},
		{
			name:       "identifier with dash",
			identifier: "sales-orders",
			wantErr:    true,
		},
		{
			name:       "identifier starting with number",
			identifier: "1_table",
			wantErr:    true,
		},
		{
			name:       "identifier too long (>63 chars)",
			identifier: "this_is_a_very_long_table_name_that_exceeds_the_postgresql_limit_of_63_characters",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.identifier)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.identifier, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAll(t *testing.T) {
	if err := ValidateAll("sales", "orders", "id"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateAll("sales", sqlInjectionAttempt); err == nil {
		t.Error("expected error for injection attempt")
	}
}

func TestQualify(t *testing.T) {
	got := Qualify("sales", "orders")
	want := `"sales"."orders"`
	if got != want {
		t.Errorf("Qualify() = %s, want %s", got, want)
	}
}

func TestQuote(t *testing.T) {
	got := Quote("amount")
	want := `"amount"`
	if got != want {
		t.Errorf("Quote() = %s, want %s", got, want)
	}
}
