package manager

// EngineIdentity is the reserved participant name for games against the
// built-in AI. Real Slack users cannot collide with it because the opponent
// syntax requires an @ prefix for humans.
const EngineIdentity = "gnubg"

// PlayerPair is the canonical unordered pair of participant names used as
// the session map key. The two names are stored in lexicographic order so
// (a, b) and (b, a) produce the same key.
type PlayerPair struct {
	first, second string
}

// NewPlayerPair returns the canonical pair for the two participants.
func NewPlayerPair(a, b string) PlayerPair {
	if b < a {
		a, b = b, a
	}
	return PlayerPair{first: a, second: b}
}

// Contains reports whether name is one of the pair's participants.
func (p PlayerPair) Contains(name string) bool {
	return p.first == name || p.second == name
}

// Other returns the participant that is not name. If name is not in the
// pair, the first participant is returned.
func (p PlayerPair) Other(name string) string {
	if p.first == name {
		return p.second
	}
	return p.first
}
