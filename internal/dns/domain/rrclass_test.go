package domain

import (
	"testing"
)

func TestRRClass_IsValid(t *testing.T) {
	cases := []struct {
		class RRClass
		want  bool
	}{
		{1, true},
		{3, true},
		{4, true},
		{254, true},
		{255, true},
		{0, false},
		{2, false},
		{9999, false},
	}
	for _, tc := range cases {
		if got := tc.class.IsValid(); got != tc.want {
			t.Errorf("IsValid(%d) = %v, want %v", tc.class, got, tc.want)
		}
	}
}

func TestRRClass_String(t *testing.T) {
	cases := []struct {
		class RRClass
		want  string
	}{
		{1, "IN"},
		{3, "CH"},
		{4, "HS"},
		{254, "NONE"},
		{255, "ANY"},
		{9999, "UNKNOWN(9999)"},
	}
	for _, tc := range cases {
		if got := tc.class.String(); got != tc.want {
			t.Errorf("String(%d) = %v, want %v", tc.class, got, tc.want)
		}
	}
}
