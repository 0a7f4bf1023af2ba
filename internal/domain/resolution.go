package domain

// Resolution is the outcome of identity resolution: the identity an event
// belongs to plus how the match was made. Merges are deterministic; the
// confidence only describes which signal matched.
type Resolution struct {
	IdentityID string          `json:"identity_id"`
	Confidence MatchConfidence `json:"match_confidence"`
}
