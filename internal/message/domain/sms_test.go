package domain

import "testing"

func TestSmsHashDeterministic(t *testing.T) {
	a := SmsHash("+15551234567", "your package is waiting", 1700000000000)
	b := SmsHash("+15551234567", "your package is waiting", 1700000000000)
	if a != b {
		t.Errorf("same content produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestSmsHashDistinguishesContent(t *testing.T) {
	base := SmsHash("+15551234567", "hello", 1700000000000)

	if got := SmsHash("+15550000000", "hello", 1700000000000); got == base {
		t.Error("different address produced the same hash")
	}
	if got := SmsHash("+15551234567", "hello!", 1700000000000); got == base {
		t.Error("different body produced the same hash")
	}
	if got := SmsHash("+15551234567", "hello", 1700000000001); got == base {
		t.Error("different timestamp produced the same hash")
	}
}

func TestIsClassified(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name string
		c    Classification
		want bool
	}{
		{"nil verdict", Classification{}, false},
		{"empty verdict", Classification{Verdict: str("")}, false},
		{"sentinel verdict", Classification{Verdict: str(VerdictUnknown)}, false},
		{"real verdict", Classification{Verdict: str("phishing")}, true},
		{"safe verdict", Classification{Verdict: str("safe")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsClassified(); got != tt.want {
				t.Errorf("IsClassified() = %v, want %v", got, tt.want)
			}
		})
	}
}
