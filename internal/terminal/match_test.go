package terminal

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"echo hi", "echo hi"},
		{"  echo hi  ", "echo hi"},
		{"echo\t hi", "echo hi"},
		{"./waf   configure   --board sitl", "./waf configure --board sitl"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchesTrackedSimple(t *testing.T) {
	tests := []struct {
		name     string
		tracked  string
		observed string
		want     bool
	}{
		{"exact", "echo hi", "echo hi", true},
		{"whitespace differences", "echo   hi", " echo hi ", true},
		{"unrelated", "echo hi", "echo bye", false},
		{"no tracked command passes through", "", "anything at all", true},
		{"prefix is not a match", "echo hi", "echo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesTracked(tt.tracked, tt.observed); got != tt.want {
				t.Errorf("matchesTracked(%q, %q) = %v, want %v", tt.tracked, tt.observed, got, tt.want)
			}
		})
	}
}

func TestMatchesTrackedCompound(t *testing.T) {
	tracked := "cd ardupilot && ./waf configure --board sitl && ./waf copter"

	for _, observed := range []string{
		"cd ardupilot",
		"./waf configure --board sitl",
		"./waf copter",
		tracked,
	} {
		if !matchesTracked(tracked, observed) {
			t.Errorf("expected %q to match tracked %q", observed, tracked)
		}
	}

	for _, observed := range []string{
		"make px4",
		"cd",
		"./waf plane",
	} {
		if matchesTracked(tracked, observed) {
			t.Errorf("expected %q NOT to match tracked %q", observed, tracked)
		}
	}
}

func TestMatchesTrackedSeparators(t *testing.T) {
	tests := []struct {
		tracked  string
		observed string
		want     bool
	}{
		{"a && b", "b", true},
		{"a || b", "b", true},
		{"a ; b", "b", true},
		{"a;b", "a", true},
		{"a && b", "a && b", true},
		{"a && b", "c", false},
	}
	for _, tt := range tests {
		if got := matchesTracked(tt.tracked, tt.observed); got != tt.want {
			t.Errorf("matchesTracked(%q, %q) = %v, want %v", tt.tracked, tt.observed, got, tt.want)
		}
	}
}

func TestLastPart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"echo hi", "echo hi"},
		{"echo hi && echo bye", "echo bye"},
		{"a ; b ; c", "c"},
		{"a && b || c", "c"},
		{"a && ", "a"},
	}
	for _, tt := range tests {
		if got := lastPart(tt.in); got != tt.want {
			t.Errorf("lastPart(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
