// SPDX-License-Identifier: MPL-2.0

package sharedscope

import (
	"errors"
	"testing"
)

func TestSatisfies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		rng     string
		want    bool
	}{
		{"1.2.3", "", true},
		{"1.2.3", "*", true},
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "=1.2.4", false},
		{"1.9.0", "^1.2.3", true},
		{"2.0.0", "^1.2.3", false},
		{"1.2.0", "^1.2.3", false},
		{"0.2.9", "^0.2.1", true},
		{"0.3.0", "^0.2.1", false},
		{"1.2.9", "~1.2.3", true},
		{"1.3.0", "~1.2.3", false},
		{"3.0.0", ">2.0.0", true},
		{"2.0.0", ">2.0.0", false},
		{"2.0.0", "<=2.0.0", true},
		{"1.5.0", ">=1.0.0 <2.0.0", true},
		{"2.5.0", ">=1.0.0 <2.0.0", false},
		{"v1.0.0", "^1.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.version+" "+tt.rng, func(t *testing.T) {
			t.Parallel()
			got, err := Satisfies(tt.version, tt.rng)
			if err != nil {
				t.Fatalf("Satisfies() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.want)
			}
		})
	}
}

func TestSatisfiesInvalid(t *testing.T) {
	t.Parallel()

	if _, err := Satisfies("1.0.0", "^nope"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Satisfies(bad range) error = %v", err)
	}
	if _, err := Satisfies("next", "*"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Satisfies(bad version) error = %v", err)
	}
}
