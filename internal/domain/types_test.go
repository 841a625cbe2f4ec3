package domain

import (
	"errors"
	"testing"
)

func TestReportStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    ReportStatus
		expected string
	}{
		{"Pending", PENDING, "Pending"},
		{"Completed", COMPLETED, "Completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if ReportStatus("Draft").IsValid() {
		t.Errorf("Draft is not a persisted status")
	}
}

func TestSpeciesValidation(t *testing.T) {
	for _, sp := range AllSpecies() {
		if !sp.IsValid() {
			t.Errorf("Expected %s to be valid", sp)
		}
	}
	if Species("Dragon").IsValid() {
		t.Errorf("Dragon should not be a valid species")
	}
	if !CAPRINE.IsSmallRuminant() || !OVINE.IsSmallRuminant() || BOVINE.IsSmallRuminant() {
		t.Errorf("Small ruminant grouping is wrong")
	}
}

func TestParseSpecies(t *testing.T) {
	tests := []struct {
		input   string
		want    Species
		wantErr bool
	}{
		{"Bovine", BOVINE, false},
		{" caprine ", CAPRINE, false},
		{"AVIAN", AVIAN, false},
		{"Dragon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSpecies(tt.input)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if ve.Field != "species" {
					t.Errorf("Expected field species, got %s", ve.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseUrgency(t *testing.T) {
	tests := []struct {
		input   string
		want    Urgency
		wantErr bool
	}{
		{"", ROUTINE, false},
		{"urgent", URGENT, false},
		{"Emergency", EMERGENCY, false},
		{"whenever", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUrgency(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUrgency(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestConsultationStatusValidation(t *testing.T) {
	for _, s := range []ConsultationStatus{SUBMITTED, REVIEWED, CLOSED} {
		if !s.IsValid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if ConsultationStatus("Archived").IsValid() {
		t.Errorf("Archived should not be valid")
	}
	if !MALE.IsValid() || Sex("Both").IsValid() {
		t.Errorf("Sex validation is wrong")
	}
}
