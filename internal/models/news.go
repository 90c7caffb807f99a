package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verdict is the truth label attached to every news item.
type Verdict string

const (
	VerdictTrue      Verdict = "true"
	VerdictFalse     Verdict = "false"
	VerdictUncertain Verdict = "uncertain"
)

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictUncertain:
		return true
	default:
		return false
	}
}

// ParseVerdict normalizes raw input, mapping anything unknown to uncertain.
func ParseVerdict(raw string) Verdict {
	v := Verdict(strings.ToLower(strings.TrimSpace(raw)))
	if v.Valid() {
		return v
	}
	return VerdictUncertain
}

// Agents is the four-perspective annotation shown next to a verdict.
type Agents struct {
	Logic   string   `json:"logic"`
	Context string   `json:"context"`
	Expert  string   `json:"expert"`
	Synth   []string `json:"synth"`
}

// Complete reports whether every field carries content.
func (a Agents) Complete() bool {
	if strings.TrimSpace(a.Logic) == "" || strings.TrimSpace(a.Context) == "" || strings.TrimSpace(a.Expert) == "" {
		return false
	}
	if len(a.Synth) == 0 {
		return false
	}
	for _, s := range a.Synth {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// ID identifies an item inside a batch. Producers emit either JSON numbers or
// strings; integer-looking ids are written back as numbers.
type ID string

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes canonical integers as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// NewsItem is a single annotated news entry. Items are treated as values:
// a refresh produces a new batch instead of mutating existing entries.
type NewsItem struct {
	ID      ID      `json:"id"`
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Date    string  `json:"date"`
	Summary string  `json:"summary"`
	URL     string  `json:"url,omitempty"`
	Verdict Verdict `json:"verdict"`
	Agents  *Agents `json:"agents,omitempty"`
}

// ErrInvalidBatch is wrapped by every ValidateBatch failure.
var ErrInvalidBatch = errors.New("invalid batch")

// ValidateBatch checks the invariants every batch must hold before it is
// persisted or returned: known verdicts, complete agents, unique non-empty ids.
func ValidateBatch(items []NewsItem) error {
	seen := make(map[ID]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", ErrInvalidBatch, i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidBatch, item.ID)
		}
		seen[item.ID] = struct{}{}
		if !item.Verdict.Valid() {
			return fmt.Errorf("%w: item %q has verdict %q", ErrInvalidBatch, item.ID, item.Verdict)
		}
		if item.Agents == nil || !item.Agents.Complete() {
			return fmt.Errorf("%w: item %q has incomplete agents", ErrInvalidBatch, item.ID)
		}
	}
	return nil
}

// ArchivedItem is the document stored in the Elasticsearch archive.
type ArchivedItem struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	URL       string    `json:"url,omitempty"`
	Date      string    `json:"date"`
	Verdict   Verdict   `json:"verdict"`
	Agents    Agents    `json:"agents"`
	Keywords  []string  `json:"keywords"`
	FetchedAt time.Time `json:"timestamp"`
}
