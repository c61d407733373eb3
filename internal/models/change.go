package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is a row-level change pushed over realtime channels.
type Change struct {
	Seq             int64           `json:"seq"`
	Table           string          `json:"table"`
	Type            ChangeType      `json:"type"`
	RecordID        int64           `json:"record_id"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
	Origin          string          `json:"origin,omitempty"`
}

// NewChange builds a change for rec. For deletes the record is carried as
// old_record.
func NewChange(table string, typ ChangeType, rec Record) (Change, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return Change{}, fmt.Errorf("failed to encode %s record: %w", table, err)
	}
	ch := Change{
		Table:           table,
		Type:            typ,
		RecordID:        rec.RecordID(),
		CommitTimestamp: time.Now(),
	}
	if typ == ChangeDelete {
		ch.OldRecord = raw
	} else {
		ch.Record = raw
	}
	return ch, nil
}

// Column returns the string form of a top-level column of the record (or the
// old record for deletes).
func (c Change) Column(name string) (string, bool) {
	raw := c.Record
	if len(raw) == 0 {
		raw = c.OldRecord
	}
	if len(raw) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", false
	}
	v, ok := fields[name]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Decode unmarshals the record (or old record for deletes) into dst.
func (c Change) Decode(dst any) error {
	raw := c.Record
	if len(raw) == 0 {
		raw = c.OldRecord
	}
	if len(raw) == 0 {
		return fmt.Errorf("change %d on %s carries no record", c.Seq, c.Table)
	}
	return json.Unmarshal(raw, dst)
}
