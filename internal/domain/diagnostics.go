package domain

import "time"

// CheckStatus indicates whether a single readiness check passed.
type CheckStatus string

const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusFail CheckStatus = "fail"
)

// CheckItem is one readiness check result with an optional remedy hint.
type CheckItem struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail"`
	Hint   string      `json:"hint,omitempty"`
}

// CheckReport aggregates readiness checks for the settings screen.
type CheckReport struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Healthy     bool        `json:"healthy"`
	Items       []CheckItem `json:"items"`
}
