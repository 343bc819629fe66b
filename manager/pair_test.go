package manager

import "testing"

func TestNewPlayerPair_Canonical(t *testing.T) {
	a := NewPlayerPair("alice", "bob")
	b := NewPlayerPair("bob", "alice")

	if a != b {
		t.Errorf("NewPlayerPair is not order-independent: %v != %v", a, b)
	}
}

func TestPlayerPair_Contains(t *testing.T) {
	pair := NewPlayerPair("alice", "gnubg")

	tests := []struct {
		name string
		want bool
	}{
		{"alice", true},
		{"gnubg", true},
		{"bob", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := pair.Contains(tt.name); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPlayerPair_Other(t *testing.T) {
	pair := NewPlayerPair("bob", "alice")

	if got := pair.Other("alice"); got != "bob" {
		t.Errorf("Other(alice) = %q, want bob", got)
	}
	if got := pair.Other("bob"); got != "alice" {
		t.Errorf("Other(bob) = %q, want alice", got)
	}
}

func TestPlayerPair_AsMapKey(t *testing.T) {
	m := map[PlayerPair]int{}
	m[NewPlayerPair("alice", "bob")] = 1
	m[NewPlayerPair("bob", "alice")] = 2

	if len(m) != 1 {
		t.Errorf("map has %d entries, want 1 (unordered pair collision)", len(m))
	}
}
