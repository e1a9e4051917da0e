package model

import "time"

// Package is the outbound tip built from a decrypted snapshot.
type Package struct {
	Timestamp           time.Time         `json:"timestamp"`
	Source              string            `json:"source"`
	Summary             []Event           `json:"summary"`
	PotentialMotivePath []string          `json:"potential_motive_path"`
	CriticalNotes       []string          `json:"critical_notes"`
	AdditionalFindings  map[string]string `json:"additional_findings,omitempty"`
}
