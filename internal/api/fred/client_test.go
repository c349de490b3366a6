package fred

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	data := "DATE,CPIAUCSL\n2024-01-01,308.4\n2024-02-01,.\n2024-03-01,310.3\n"

	obs, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("len(obs) = %d, want 3", len(obs))
	}
	if obs[0].Value == nil || *obs[0].Value != 308.4 {
		t.Errorf("obs[0].Value = %v, want 308.4", obs[0].Value)
	}
	if obs[1].Value != nil {
		t.Errorf("obs[1].Value = %v, want nil for a gap", *obs[1].Value)
	}
	if obs[2].Date.Month() != 3 {
		t.Errorf("obs[2].Date = %v", obs[2].Date)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	obs, err := ParseCSV(strings.NewReader(""))
	if err != nil || obs != nil {
		t.Errorf("ParseCSV(\"\") = %v, %v, want nil, nil", obs, err)
	}
}
