package session

// ChallengeState is the tri-state of the magic-number check: never issued,
// issued but not yet echoed back, or validated.
type ChallengeState uint8

const (
	// ChallengeAbsent means no magic number was ever issued for this login.
	ChallengeAbsent ChallengeState = iota
	// ChallengePending means a magic number is outstanding or was cleared
	// after a mismatch; the credential must not be released.
	ChallengePending
	// ChallengeValidated means the user echoed the number back correctly.
	ChallengeValidated
)

// State is the per-(channel, user) authentication bag.
//
// The version counter is managed by [Store]: Read captures it, Write commits
// only against the captured value. A State obtained from Read must not be
// written by two goroutines; each writer re-reads.
type State struct {
	// Credential is the provider-issued authentication result, opaque here.
	// Empty when the user is not logged in.
	Credential []byte

	// MagicNumber is the outstanding challenge code rendered as decimal text
	// with leading zeros. Empty unless a challenge is pending.
	MagicNumber string

	// Challenge gates release of Credential in challenge mode.
	Challenge ChallengeState

	version uint64
}

// ClearAuth wipes the credential and challenge fields after a mismatch or a
// validation failure, forcing a fresh login. A stale code must never stay
// retryable: the code space is small enough to brute-force.
func (s *State) ClearAuth() {
	s.Credential = nil
	s.MagicNumber = ""
	if s.Challenge == ChallengeValidated || s.Challenge == ChallengePending {
		s.Challenge = ChallengePending
	}
}

// Authenticated reports whether a credential is present at all. It does not
// check the challenge gate; that is the engine's decision.
func (s *State) Authenticated() bool {
	return s != nil && len(s.Credential) > 0
}

// Version exposes the optimistic-concurrency counter for observability and
// tests. Zero means the state was never stored.
func (s *State) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}
