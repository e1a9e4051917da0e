package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is the composed report view of memory and graph analysis.
//
// Its JSON form is canonical: the four fixed fields are always written first
// and in this order, followed by any Extra fields sorted by key. Extra
// values are strings so a decoded snapshot equals the encoded one.
type Snapshot struct {
	EventSummary  []Event           `json:"event_summary"`
	MotivePath    []string          `json:"motive_path"`
	CriticalNotes []string          `json:"critical_notes"`
	Centrality    []Centrality      `json:"centrality"`
	Extra         map[string]string `json:"-"`
}

var snapshotFields = []string{"event_summary", "motive_path", "critical_notes", "centrality"}

// MarshalJSON writes the snapshot in canonical field order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	values := []any{s.EventSummary, s.MotivePath, s.CriticalNotes, s.Centrality}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range snapshotFields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeField(&buf, name, values[i]); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		if isSnapshotField(k) {
			return nil, fmt.Errorf("extra field %q shadows a snapshot field", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeField(&buf, k, s.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the fixed fields and collects everything else into Extra.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Snapshot
	targets := []any{&out.EventSummary, &out.MotivePath, &out.CriticalNotes, &out.Centrality}
	for i, name := range snapshotFields {
		msg, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, targets[i]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		delete(raw, name)
	}

	if len(raw) > 0 {
		out.Extra = make(map[string]string, len(raw))
		for k, msg := range raw {
			var v string
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			out.Extra[k] = v
		}
	}

	*s = out
	return nil
}

func writeField(buf *bytes.Buffer, name string, v any) error {
	k, _ := json.Marshal(name)
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(b)
	return nil
}

func isSnapshotField(name string) bool {
	for _, f := range snapshotFields {
		if f == name {
			return true
		}
	}
	return false
}
