package domain

import "time"

// ConsentCategory names one consent bucket.
type ConsentCategory string

const (
	ConsentNecessary       ConsentCategory = "necessary"
	ConsentAnalytics       ConsentCategory = "analytics"
	ConsentMarketing       ConsentCategory = "marketing"
	ConsentPersonalization ConsentCategory = "personalization"
)

// ConsentPreferences holds the per-category booleans of one consent record.
type ConsentPreferences struct {
	Necessary       bool `json:"necessary"`
	Analytics       bool `json:"analytics"`
	Marketing       bool `json:"marketing"`
	Personalization bool `json:"personalization"`
}

// Allows reports whether the preferences grant the given category.
func (p ConsentPreferences) Allows(category ConsentCategory) bool {
	switch category {
	case ConsentNecessary:
		return p.Necessary
	case ConsentAnalytics:
		return p.Analytics
	case ConsentMarketing:
		return p.Marketing
	case ConsentPersonalization:
		return p.Personalization
	default:
		return false
	}
}

// ConsentRecord is the authoritative per-identity consent state. Owned by
// the consent gate; read-only everywhere else.
type ConsentRecord struct {
	IdentityID  string             `json:"identity_id"`
	Preferences ConsentPreferences `json:"preferences"`
	Version     int                `json:"version"`
	RecordedAt  time.Time          `json:"recorded_at"`
	Revoked     bool               `json:"revoked"`
}
