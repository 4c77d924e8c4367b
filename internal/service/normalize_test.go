package service

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+15550000001", "+15550000001"},
		{"(555) 000-0001", "+15550000001"},
		{"555.000.0001", "+15550000001"},
		{"15550000001", "+15550000001"},
		{"+447700900123", "+447700900123"},
		{"12345", ""},
		{"", ""},
		{"not a number", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ada@Example.COM "); got != "ada@example.com" {
		t.Errorf("got %q", got)
	}
}
