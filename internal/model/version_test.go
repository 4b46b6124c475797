package model

import "testing"

func TestVersion_Next(t *testing.T) {
	tests := []struct {
		name  string
		in    Version
		major bool
		want  Version
	}{
		{"minor from zero", Version{}, false, Version{0, 1}},
		{"minor keeps major", Version{2, 7}, false, Version{2, 8}},
		{"major resets minor", Version{2, 7}, true, Version{3, 0}},
		{"major from zero", Version{}, true, Version{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Next(tt.major); got != tt.want {
				t.Fatalf("Next(%v) = %v, want %v", tt.major, got, tt.want)
			}
			if !tt.in.Less(tt.in.Next(tt.major)) {
				t.Fatalf("expected %v < %v", tt.in, tt.in.Next(tt.major))
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	good := map[string]Version{
		"1.2":   {1, 2},
		"0.0":   {0, 0},
		"3":     {3, 0},
		" 4.10": {4, 10},
	}
	for in, want := range good {
		got, err := ParseVersion(in)
		if err != nil {
			t.Fatalf("ParseVersion(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseVersion(%q) = %v, want %v", in, got, want)
		}
		if got.String() != want.String() {
			t.Fatalf("String mismatch for %q", in)
		}
	}
	for _, bad := range []string{"", "a.b", "1.x", "-1.0", "1.-2"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("ParseVersion(%q) expected error", bad)
		}
	}
}

func TestVersion_LessOrdersMajorFirst(t *testing.T) {
	if !(Version{1, 99}).Less(Version{2, 0}) {
		t.Fatal("1.99 should sort before 2.0")
	}
	if (Version{2, 0}).Less(Version{1, 99}) {
		t.Fatal("2.0 should not sort before 1.99")
	}
	if (Version{1, 1}).Less(Version{1, 1}) {
		t.Fatal("equal versions are not less")
	}
}
