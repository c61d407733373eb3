package mirror

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func bookingAt(id int64, status string, at time.Time) models.Booking {
	return models.Booking{ID: id, UserID: 1, Status: status, UpdatedAt: at}
}

func change(t *testing.T, typ models.ChangeType, b models.Booking, seq int64) models.Change {
	t.Helper()
	ch, err := models.NewChange(models.TableBookings, typ, b)
	require.NoError(t, err)
	ch.Seq = seq
	return ch
}

func raws(t *testing.T, rows ...models.Booking) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func TestTableIgnoresStaleChanges(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)

	applied, err := tb.apply(change(t, models.ChangeInsert, bookingAt(1, models.StatusPending, base), 1))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, _ = tb.apply(change(t, models.ChangeUpdate, bookingAt(1, models.StatusConfirmed, base.Add(time.Second)), 3))
	assert.True(t, applied)

	// Older timestamp loses whatever its sequence.
	applied, _ = tb.apply(change(t, models.ChangeUpdate, bookingAt(1, models.StatusCancelled, base), 9))
	assert.False(t, applied)

	// Same timestamp, older sequence loses.
	applied, _ = tb.apply(change(t, models.ChangeUpdate, bookingAt(1, models.StatusCancelled, base.Add(time.Second)), 2))
	assert.False(t, applied)

	held, ok := tb.Get(1)
	require.True(t, ok)
	assert.Equal(t, models.StatusConfirmed, held.Status)
	assert.Equal(t, 1, tb.Len())
}

func TestTableEchoOfLocalWriteIsNotDuplicated(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	row := bookingAt(4, models.StatusCompleted, base)

	assert.True(t, tb.put(row))
	applied, _ := tb.apply(change(t, models.ChangeUpdate, row, 12))
	assert.True(t, applied)
	applied, _ = tb.apply(change(t, models.ChangeInsert, row, 11))
	assert.False(t, applied)

	assert.Equal(t, 1, tb.Len())
	assert.Len(t, tb.List(), 1)
}

func TestTableDeletedRowStaysDeleted(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	tb.put(bookingAt(2, models.StatusPending, base))

	applied, _ := tb.apply(change(t, models.ChangeDelete, bookingAt(2, models.StatusPending, base), 5))
	assert.True(t, applied)
	_, ok := tb.Get(2)
	assert.False(t, ok)

	// A late insert of the same version does not bring it back.
	applied, _ = tb.apply(change(t, models.ChangeInsert, bookingAt(2, models.StatusPending, base), 4))
	assert.False(t, applied)
	assert.False(t, tb.put(bookingAt(2, models.StatusPending, base)))
	assert.Equal(t, 0, tb.Len())

	// A write made after the delete is a new row.
	applied, _ = tb.apply(change(t, models.ChangeInsert, bookingAt(2, models.StatusPending, base.Add(time.Minute)), 6))
	assert.True(t, applied)
	assert.Equal(t, 1, tb.Len())
}

func TestTableReplaceKeepsRowsTouchedAfterMark(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	tb.put(bookingAt(1, models.StatusPending, base))
	tb.put(bookingAt(2, models.StatusPending, base))

	mark := tb.mark()
	// Row 3 arrives while the fetch is in flight and is missing from its result.
	tb.put(bookingAt(3, models.StatusPending, base))

	require.NoError(t, tb.replace(raws(t, bookingAt(1, models.StatusConfirmed, base.Add(time.Second))), mark))

	var ids []int64
	for _, b := range tb.List() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
	held, _ := tb.Get(1)
	assert.Equal(t, models.StatusConfirmed, held.Status)
}

func TestTableViewsSeeMatchingEvents(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	v := &View[models.Booking]{table: tb, filter: realtime.Eq("user_id", 1), events: make(chan Event[models.Booking], 1)}
	tb.addView(v)

	tb.put(bookingAt(1, models.StatusPending, base))
	other := bookingAt(2, models.StatusPending, base)
	other.UserID = 2
	tb.put(other)
	tb.put(bookingAt(3, models.StatusPending, base))

	ev := <-v.Changes()
	assert.Equal(t, models.ChangeInsert, ev.Type)
	assert.Equal(t, int64(1), ev.Row.ID)
	assert.Equal(t, int64(1), v.Dropped())
	assert.Len(t, v.Snapshot(), 2)

	tb.closeViews()
	_, open := <-v.Changes()
	assert.False(t, open)
}

func TestRequestTrackerKeepsRecentRequests(t *testing.T) {
	tr := newRequestTracker(2)
	ctx := WithRequestID(t.Context(), "first")

	id := tr.begin(ctx, "one")
	assert.Equal(t, "first", id)
	again := tr.begin(ctx, "two")
	assert.NotEqual(t, "first", again)

	tr.finish(id, nil)
	tr.finish(again, assert.AnError)
	third := tr.begin(t.Context(), "three")
	tr.finish(third, nil)

	_, ok := tr.get("first")
	assert.False(t, ok)
	r, ok := tr.get(again)
	require.True(t, ok)
	assert.Equal(t, RequestFailed, r.State)
	assert.ErrorIs(t, r.Err, assert.AnError)
}

func TestRequestTrackerSeparatesRefusals(t *testing.T) {
	tr := newRequestTracker(10)

	forbidden := tr.begin(t.Context(), "subscribe contact_messages")
	tr.finishAllowingRefusal(forbidden, fmt.Errorf("wrapped: %w", ErrForbidden))
	anonymous := tr.begin(t.Context(), "fetch bookings")
	tr.finishAllowingRefusal(anonymous, ErrUnauthorized)
	broken := tr.begin(t.Context(), "fetch users")
	tr.finishAllowingRefusal(broken, assert.AnError)

	isFailed := func(r *Request) bool { return r.State == RequestFailed }
	isRefused := func(r *Request) bool { return r.State == RequestRefused }

	failed := tr.list(isFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, broken, failed[0].ID)
	assert.Len(t, tr.list(isRefused), 2)

	r, ok := tr.get(forbidden)
	require.True(t, ok)
	assert.ErrorIs(t, r.Err, ErrForbidden)
}

func TestTableFetchForgetsConfirmedTombstones(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	for id := int64(1); id <= 3; id++ {
		tb.put(bookingAt(id, models.StatusPending, base))
	}
	tb.drop(1)
	tb.drop(2)

	mark := tb.mark()
	// Row 3 is deleted while the fetch is in flight.
	tb.drop(3)
	require.NoError(t, tb.replace(nil, mark))

	tb.mu.RLock()
	_, kept := tb.deleted[3]
	remembered := len(tb.deleted)
	tb.mu.RUnlock()
	assert.True(t, kept)
	assert.Equal(t, 1, remembered)

	// A late echo of the row deleted mid-fetch still stays out.
	applied, _ := tb.apply(change(t, models.ChangeInsert, bookingAt(3, models.StatusPending, base), 1))
	assert.False(t, applied)
}

func TestTableTombstonesAreBounded(t *testing.T) {
	tb := newTable[models.Booking](models.TableBookings)
	for id := int64(1); id <= maxTombstones+10; id++ {
		tb.put(bookingAt(id, models.StatusPending, base))
		tb.drop(id)
	}

	tb.mu.RLock()
	remembered := len(tb.deleted)
	_, oldest := tb.deleted[1]
	_, newest := tb.deleted[maxTombstones+10]
	tb.mu.RUnlock()
	assert.Equal(t, maxTombstones, remembered)
	assert.False(t, oldest)
	assert.True(t, newest)
}
