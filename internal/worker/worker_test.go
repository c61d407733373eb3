package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWorker(t *testing.T, db *database.DB, rdb *redis.Client) *OutboxWorker {
	t.Helper()
	return NewOutboxWorker(db, rdb, config.WorkerConfig{MaxRetries: 3, PollInterval: 10 * time.Millisecond}, nil)
}

// taskByID returns the stored task when it has the given status.
func taskByID(t *testing.T, db *database.DB, id int64, status string) *models.OutboxTask {
	t.Helper()
	if status == models.OutboxFailed {
		tasks, err := db.GetFailedOutboxTasks(context.Background())
		require.NoError(t, err)
		for i := range tasks {
			if tasks[i].ID == id {
				return &tasks[i]
			}
		}
		return nil
	}

	var got string
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT status FROM outbox WHERE id = ?`, id).Scan(&got))
	if got != status {
		return nil
	}
	return &models.OutboxTask{ID: id, Status: got}
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []models.EmailTask
	types []string
	err   error
}

func (f *fakeMailer) SendEmail(_ context.Context, taskType string, task models.EmailTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.types = append(f.types, taskType)
	f.sent = append(f.sent, task)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeLedger struct {
	upserted []int64
	deleted  []int64
}

func (f *fakeLedger) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.upserted = append(f.upserted, b.ID)
	return nil
}

func (f *fakeLedger) DeleteBookingRow(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type notifierFunc func(ctx context.Context, text string) error

func (f notifierFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	mailer := &fakeMailer{}
	w.RegisterEmail(mailer)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, models.TaskEmailConfirmation, 7, models.EmailTask{To: "ann@example.com", ActionURL: "https://x/confirm"}))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	assert.NotNil(t, taskByID(t, db, task.ID, models.OutboxCompleted))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "https://x/confirm", mailer.sent[0].ActionURL)
	assert.Equal(t, []string{models.TaskEmailConfirmation}, mailer.types)

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessTaskRetryThenFail(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	w.RegisterEmail(&fakeMailer{err: errors.New("smtp down")})
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.TaskAdminEmail, 1, models.EmailTask{To: "admin@example.com"}))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	assert.NotNil(t, taskByID(t, db, task.ID, models.OutboxRetry))

	// Not due yet.
	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	task.RetryCount = 2
	w.processTask(ctx, &task)
	failed := taskByID(t, db, task.ID, models.OutboxFailed)
	require.NotNil(t, failed)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "smtp down", *failed.LastError)
}

func TestMalformedPayloadFailsImmediately(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	w.RegisterTelegram(notifierFunc(func(context.Context, string) error { return nil }))
	ctx := context.Background()

	task := models.OutboxTask{TaskType: models.TaskTelegramNotify, Payload: "{not json"}
	require.NoError(t, db.CreateOutboxTask(ctx, &task))
	w.processTask(ctx, &task)

	assert.NotNil(t, taskByID(t, db, task.ID, models.OutboxFailed))
}

func TestUnknownTaskTypeFails(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, "carrier_pigeon", 1, map[string]string{}))
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)
	assert.NotNil(t, taskByID(t, db, task.ID, models.OutboxFailed))
}

func TestSheetsHandlersUseCurrentBooking(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	ledger := &fakeLedger{}
	w.RegisterSheets(db, ledger)
	ctx := context.Background()

	b := &models.Booking{UserID: 1, ServiceType: models.ServiceTypeDeepCleaning, BookingDate: "2026-10-20", BookingTime: "09:00", Address: "1 Main St", TotalAmount: 90}
	require.NoError(t, db.CreateBooking(ctx, b))

	require.NoError(t, w.Enqueue(ctx, models.TaskSheetsUpsert, b.ID, map[string]int64{"booking_id": b.ID}))
	require.NoError(t, w.Enqueue(ctx, models.TaskSheetsUpsert, 9999, map[string]int64{"booking_id": 9999}))
	require.NoError(t, w.Enqueue(ctx, models.TaskSheetsDelete, b.ID, map[string]int64{"booking_id": b.ID}))

	for i := 0; i < 3; i++ {
		task, ok := w.tryLocalQueue()
		require.True(t, ok)
		w.processTask(ctx, &task)
	}

	assert.Equal(t, []int64{b.ID}, ledger.upserted)
	assert.Equal(t, []int64{b.ID}, ledger.deleted)
}

func TestEnqueueUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newTestDB(t)
	w := newTestWorker(t, db, rdb)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.TaskTelegramNotify, 3, models.TelegramTask{Text: "hi"}))
	_, ok := w.tryLocalQueue()
	assert.False(t, ok)

	n, err := rdb.LLen(ctx, redisQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	assert.Equal(t, models.TaskTelegramNotify, task.TaskType)
	assert.Equal(t, int64(3), task.ReferenceID)
}

func TestFailedTaskGoesToDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newTestDB(t)
	w := newTestWorker(t, db, rdb)
	ctx := context.Background()

	task := models.OutboxTask{TaskType: "unknown", Payload: "{}"}
	require.NoError(t, db.CreateOutboxTask(ctx, &task))
	w.processTask(ctx, &task)

	n, err := rdb.LLen(ctx, deadLetterKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStartDrainsQueueAndPolls(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	mailer := &fakeMailer{}
	w.RegisterEmail(mailer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stored without passing through the queue: only the poller sees it.
	orphan := models.OutboxTask{TaskType: models.TaskAdminEmail, Payload: `{"to":"admin@example.com"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, &orphan))
	require.NoError(t, w.Enqueue(ctx, models.TaskEmailPasswordReset, 1, models.EmailTask{To: "bob@example.com"}))

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return mailer.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 2, mailer.count())
}

func TestQueuedCopySkippedAfterPoll(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	mailer := &fakeMailer{}
	w.RegisterEmail(mailer)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.TaskAdminEmail, 1, models.EmailTask{To: "admin@example.com"}))
	assert.Equal(t, 1, w.pollOnce(ctx))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processQueued(ctx, &task)
	assert.Equal(t, 1, mailer.count())
}

func TestDiscardCompletesTasks(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, nil)
	w.Discard(models.TaskSheetsUpsert)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.TaskSheetsUpsert, 1, nil))
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)
	assert.NotNil(t, taskByID(t, db, task.ID, models.OutboxCompleted))
}

type purgerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f purgerFunc) DeleteExpiredAuthTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

func TestTokenJanitorRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)
	store := purgerFunc(func(context.Context, time.Time) (int64, error) {
		calls <- struct{}{}
		return 1, nil
	})

	done := make(chan struct{})
	go func() {
		RunTokenJanitor(ctx, store, 5*time.Millisecond, nil)
		close(done)
	}()

	<-calls
	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRetryPolicy(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Base: time.Second, Max: 5 * time.Second, Factor: 2}
	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 5*time.Second, policy.Delay(5))
	assert.Equal(t, time.Second, RetryPolicy{}.Delay(0))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))

	jittered := RetryPolicy{Base: time.Second, Factor: 2, Jitter: 0.5}
	for range 20 {
		d := jittered.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}
