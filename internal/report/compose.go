package report

import (
	"time"

	"github.com/pmll/casefile/internal/model"
)

// SummarySize is how many short-term events a snapshot carries.
const SummarySize = 3

// EventSource exposes the head of short-term memory.
type EventSource interface {
	Head(n int) []model.Event
}

// Ranker exposes a centrality ranking.
type Ranker interface {
	CentralityRanking() []model.Centrality
}

// Compose builds a snapshot from the first SummarySize short-term events,
// a precomputed path, caller notes and the graph's centrality ranking.
func Compose(mem EventSource, g Ranker, path, notes []string, extra map[string]string) model.Snapshot {
	s := model.Snapshot{
		EventSummary:  mem.Head(SummarySize),
		MotivePath:    append([]string{}, path...),
		CriticalNotes: append([]string{}, notes...),
		Centrality:    g.CentralityRanking(),
	}
	if len(extra) > 0 {
		s.Extra = make(map[string]string, len(extra))
		for k, v := range extra {
			s.Extra[k] = v
		}
	}
	return s
}

// BuildPackage repackages a decrypted snapshot as an outbound tip.
func BuildPackage(s model.Snapshot, source string, at time.Time, findings map[string]string) model.Package {
	return model.Package{
		Timestamp:           at,
		Source:              source,
		Summary:             s.EventSummary,
		PotentialMotivePath: s.MotivePath,
		CriticalNotes:       s.CriticalNotes,
		AdditionalFindings:  findings,
	}
}
