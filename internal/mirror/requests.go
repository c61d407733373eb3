package mirror

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RequestState string

const (
	RequestPending   RequestState = "pending"
	RequestSucceeded RequestState = "succeeded"
	RequestFailed    RequestState = "failed"
	// RequestRefused marks a call the session was not allowed to make, such
	// as a customer following an admin table. It is not a failure.
	RequestRefused RequestState = "refused"
)

// Request is one tracked backend call. Each call has its own state and error,
// so concurrent operations never overwrite each other's status.
type Request struct {
	ID         string
	Op         string
	State      RequestState
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type requestIDKey struct{}

// WithRequestID makes the next store call on ctx use id for its request.
// Follow-up requests made by the same call, and ids already tracked, get a
// generated id instead.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestTracker keeps pending requests and the most recent finished ones.
type requestTracker struct {
	mu       sync.Mutex
	requests map[string]*Request
	finished []string
	keep     int
}

func newRequestTracker(keep int) *requestTracker {
	return &requestTracker{requests: make(map[string]*Request), keep: keep}
}

func (t *requestTracker) begin(ctx context.Context, op string) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, taken := t.requests[id]; id == "" || taken {
		id = uuid.NewString()
	}
	t.requests[id] = &Request{ID: id, Op: op, State: RequestPending, StartedAt: time.Now()}
	return id
}

func (t *requestTracker) finish(id string, err error) {
	state := RequestSucceeded
	if err != nil {
		state = RequestFailed
	}
	t.end(id, state, err)
}

// finishAllowingRefusal is finish for calls where ErrForbidden or
// ErrUnauthorized are expected outcomes of the session's role.
func (t *requestTracker) finishAllowingRefusal(id string, err error) {
	if refused(err) {
		t.end(id, RequestRefused, err)
		return
	}
	t.finish(id, err)
}

func refused(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

func (t *requestTracker) end(id string, state RequestState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.requests[id]
	if !ok {
		return
	}
	r.FinishedAt = time.Now()
	r.Err = err
	r.State = state

	t.finished = append(t.finished, id)
	for len(t.finished) > t.keep {
		delete(t.requests, t.finished[0])
		t.finished = t.finished[1:]
	}
}

func (t *requestTracker) get(id string) (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.requests[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}

func (t *requestTracker) list(match func(*Request) bool) []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Request
	for _, r := range t.requests {
		if match(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
