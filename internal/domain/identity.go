package domain

import "time"

// MatchConfidence describes how an identity resolution was made.
type MatchConfidence string

const (
	MatchExact    MatchConfidence = "exact"
	MatchFallback MatchConfidence = "fallback"
	MatchNew      MatchConfidence = "new"
)

// MergeRecord is one audit entry in an identity's merge history.
type MergeRecord struct {
	MergedID string    `json:"merged_id"`
	MergedAt time.Time `json:"merged_at"`
	Reason   string    `json:"reason"`
}

// Identity is a pseudonymous actor. Identities are created on first valid
// event and never deleted, only anonymized under retention policy.
type Identity struct {
	IdentityID   string        `json:"identity_id"`
	Fingerprint  string        `json:"fingerprint,omitempty"`
	FallbackIDs  []string      `json:"fallback_ids,omitempty"`
	FirstSeenAt  time.Time     `json:"first_seen_at"`
	LastSeenAt   time.Time     `json:"last_seen_at"`
	MergeHistory []MergeRecord `json:"merge_history,omitempty"`
	Anonymized   bool          `json:"anonymized,omitempty"`
}

// IdentitySignals is the priority-ordered input to identity resolution:
// primary fingerprint hash first, then a fallback local-storage id, then a
// session-scoped id.
type IdentitySignals struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	FallbackID  string `json:"fallback_id,omitempty"`
	SessionID   string `json:"session_id"`
}
