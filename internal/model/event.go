// Package model defines the core case data types.
package model

import "time"

// Event kinds.
const (
	KindObservation = "observation"
	KindKey         = "key"
)

// Event is a single logged observation. Events are never mutated after logging.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Kind       string    `json:"kind"`
}

// Relation is a directed, labeled edge between two entities.
type Relation struct {
	Source     string  `json:"source" yaml:"source"`
	Target     string  `json:"target" yaml:"target"`
	Relation   string  `json:"relation" yaml:"relation"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Centrality is one entry of a centrality ranking.
type Centrality struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
}

// Update is a synthetic real-time update produced by a feed simulator.
type Update struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
}

// ValidKinds are the allowed event kinds.
var ValidKinds = map[string]bool{
	KindObservation: true,
	KindKey:         true,
}
