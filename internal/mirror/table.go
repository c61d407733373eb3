package mirror

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

// version orders writes of one row: by updated_at, then by realtime sequence.
// Local results carry seq 0.
type version struct {
	updatedAt time.Time
	seq       int64
}

func (v version) supersedes(held version) bool {
	if v.updatedAt.Equal(held.updatedAt) {
		return v.seq >= held.seq
	}
	return v.updatedAt.After(held.updatedAt)
}

type entry[T models.Record] struct {
	row   T
	raw   json.RawMessage
	ver   version
	stamp uint64
}

// Event is a change applied to a Table, as seen by a View. Type is INSERT when
// the row is new to the mirror, whatever the remote change said.
type Event[T models.Record] struct {
	Type models.ChangeType
	Row  T
}

// maxTombstones bounds how many deleted ids a table remembers between fetches.
const maxTombstones = 1024

// tombstone is the newest version seen for a deleted row and the tick it was
// recorded at.
type tombstone struct {
	ver   version
	stamp uint64
}

// table is the untyped side of Table used by the store.
type table interface {
	Name() string
	apply(ch models.Change) (bool, error)
	load(rows []json.RawMessage) error
	replace(rows []json.RawMessage, mark uint64) error
	mark() uint64
	reset()
	closeViews()
}

// Table is the single in-memory copy of one mirrored table, keyed by id. Both
// local write results and realtime changes go through the same version check,
// so echoes of a write never duplicate or roll back a row.
type Table[T models.Record] struct {
	name string

	mu      sync.RWMutex
	rows    map[int64]*entry[T]
	order   []int64
	deleted map[int64]tombstone
	tick    uint64
	views   map[*View[T]]struct{}
}

func newTable[T models.Record](name string) *Table[T] {
	return &Table[T]{
		name:    name,
		rows:    make(map[int64]*entry[T]),
		deleted: make(map[int64]tombstone),
		views:   make(map[*View[T]]struct{}),
	}
}

func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) Get(id int64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.row, true
}

// List returns the rows in the order they entered the mirror.
func (t *Table[T]) List() []T {
	return t.Filter(func(T) bool { return true })
}

func (t *Table[T]) Filter(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		if row := t.rows[id].row; keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// put merges a row returned by a local write.
func (t *Table[T]) put(row T) bool {
	raw, err := json.Marshal(row)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upsertLocked(row, raw, 0)
}

// drop removes a row after a local delete.
func (t *Table[T]) drop(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id, version{})
}

func (t *Table[T]) apply(ch models.Change) (bool, error) {
	var row T
	if err := ch.Decode(&row); err != nil {
		if ch.Type != models.ChangeDelete || ch.RecordID == 0 {
			return false, fmt.Errorf("failed to decode %s change: %w", t.name, err)
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.removeLocked(ch.RecordID, version{seq: ch.Seq}), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ch.Type == models.ChangeDelete {
		return t.removeLocked(row.RecordID(), version{updatedAt: row.RecordUpdatedAt(), seq: ch.Seq}), nil
	}
	return t.upsertLocked(row, ch.Record, ch.Seq), nil
}

func (t *Table[T]) load(rows []json.RawMessage) error {
	decoded, err := t.decode(rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, row := range decoded {
		t.upsertLocked(row, rows[i], 0)
	}
	return nil
}

// replace makes rows the table content. Rows missing from rows are removed
// unless something touched them after mark was taken.
func (t *Table[T]) replace(rows []json.RawMessage, mark uint64) error {
	decoded, err := t.decode(rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[int64]bool, len(decoded))
	for i, row := range decoded {
		present[row.RecordID()] = true
		t.upsertLocked(row, rows[i], 0)
	}
	for _, id := range append([]int64(nil), t.order...) {
		if e := t.rows[id]; !present[id] && e.stamp <= mark {
			t.removeLocked(id, e.ver)
		}
	}
	// The fetch confirms deletions made before mark.
	for id, gone := range t.deleted {
		if !present[id] && gone.stamp <= mark {
			delete(t.deleted, id)
		}
	}
	return nil
}

func (t *Table[T]) decode(rows []json.RawMessage) ([]T, error) {
	out := make([]T, len(rows))
	for i, raw := range rows {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", t.name, err)
		}
	}
	return out, nil
}

func (t *Table[T]) mark() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tick
}

func (t *Table[T]) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range append([]int64(nil), t.order...) {
		t.removeLocked(id, version{})
	}
	t.deleted = make(map[int64]tombstone)
}

func (t *Table[T]) upsertLocked(row T, raw json.RawMessage, seq int64) bool {
	id := row.RecordID()
	v := version{updatedAt: row.RecordUpdatedAt(), seq: seq}
	if gone, ok := t.deleted[id]; ok && !v.updatedAt.After(gone.ver.updatedAt) {
		return false
	}

	t.tick++
	typ := models.ChangeUpdate
	if held, ok := t.rows[id]; ok {
		if !v.supersedes(held.ver) {
			return false
		}
		held.row, held.raw, held.ver, held.stamp = row, raw, v, t.tick
	} else {
		typ = models.ChangeInsert
		t.rows[id] = &entry[T]{row: row, raw: raw, ver: v, stamp: t.tick}
		t.order = append(t.order, id)
		delete(t.deleted, id)
	}
	t.notifyLocked(typ, row, raw)
	return true
}

// removeLocked drops id and remembers the newest version seen for it, so a
// late insert or update of the deleted row is ignored.
func (t *Table[T]) removeLocked(id int64, v version) bool {
	held, ok := t.rows[id]
	if ok && held.ver.supersedes(v) {
		v = held.ver
	}
	t.tick++
	if gone, seen := t.deleted[id]; !seen || v.supersedes(gone.ver) {
		t.deleted[id] = tombstone{ver: v, stamp: t.tick}
		t.capTombstonesLocked()
	}
	if !ok {
		return false
	}

	delete(t.rows, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.notifyLocked(models.ChangeDelete, held.row, held.raw)
	return true
}

// capTombstonesLocked forgets the oldest tombstones beyond maxTombstones.
func (t *Table[T]) capTombstonesLocked() {
	if len(t.deleted) <= maxTombstones {
		return
	}
	ids := make([]int64, 0, len(t.deleted))
	for id := range t.deleted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return t.deleted[ids[i]].stamp < t.deleted[ids[j]].stamp })
	for _, id := range ids[:len(ids)-maxTombstones] {
		delete(t.deleted, id)
	}
}

func (t *Table[T]) notifyLocked(typ models.ChangeType, row T, raw json.RawMessage) {
	if len(t.views) == 0 {
		return
	}
	probe := models.Change{Table: t.name, Type: typ, Record: raw}
	for v := range t.views {
		if !v.filter.Match(probe) {
			continue
		}
		select {
		case v.events <- Event[T]{Type: typ, Row: row}:
		default:
			v.dropped.Add(1)
		}
	}
}

func (t *Table[T]) snapshot(filter realtime.Filter) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []T
	for _, id := range t.order {
		e := t.rows[id]
		if filter.Match(models.Change{Table: t.name, Record: e.raw}) {
			out = append(out, e.row)
		}
	}
	return out
}

func (t *Table[T]) addView(v *View[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.views[v] = struct{}{}
}

func (t *Table[T]) removeView(v *View[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.views[v]; ok {
		delete(t.views, v)
		close(v.events)
	}
}

func (t *Table[T]) closeViews() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for v := range t.views {
		delete(t.views, v)
		close(v.events)
	}
}
