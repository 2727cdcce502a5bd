package valueobject

import "testing"

func TestSeverityOrdering(t *testing.T) {
	all := AllSeverities()
	for i := 1; i < len(all); i++ {
		if all[i].Rank() <= all[i-1].Rank() {
			t.Fatalf("%s must rank above %s", all[i], all[i-1])
		}
	}

	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical must be at least high")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low must not be at least medium")
	}
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity(" CRITICAL ")
	if err != nil || s != SeverityCritical {
		t.Fatalf("ParseSeverity() = %v, %v", s, err)
	}

	if _, err := ParseSeverity("urgent"); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}
