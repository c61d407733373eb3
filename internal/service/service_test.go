package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.SiteURL = "https://sparkclean.test"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.RequireEmailConfirmation = true
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.ConfirmationTokenTTL = time.Hour
	cfg.Auth.ResetTokenTTL = time.Hour
	cfg.Auth.LoginRateLimit = 5
	cfg.Auth.LoginRateWindow = time.Minute
	cfg.Admins = []string{"boss@sparkclean.test"}
	return cfg
}

// changeRecorder collects published changes.
type changeRecorder struct {
	mu      sync.Mutex
	changes []models.Change
}

func (r *changeRecorder) Publish(ch models.Change) models.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch.Seq = int64(len(r.changes) + 1)
	r.changes = append(r.changes, ch)
	return ch
}

func (r *changeRecorder) of(table string, typ models.ChangeType) []models.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Change
	for _, ch := range r.changes {
		if ch.Table == table && ch.Type == typ {
			out = append(out, ch)
		}
	}
	return out
}

// eventRecorder collects published domain events.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) PublishJSON(eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

type queuedTask struct {
	Type        string
	ReferenceID int64
	Payload     json.RawMessage
}

// taskRecorder stands in for the outbox queue.
type taskRecorder struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (r *taskRecorder) Enqueue(ctx context.Context, taskType string, referenceID int64, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, queuedTask{Type: taskType, ReferenceID: referenceID, Payload: raw})
	return nil
}

func (r *taskRecorder) ofType(taskType string) []queuedTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queuedTask
	for _, t := range r.tasks {
		if t.Type == taskType {
			out = append(out, t)
		}
	}
	return out
}

func createUser(t *testing.T, db *database.DB, email string) Actor {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", FullName: "Test User"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func createAdmin(t *testing.T, db *database.DB, email string) Actor {
	t.Helper()
	a := createUser(t, db, email)
	require.NoError(t, db.SetUserRole(context.Background(), a.UserID, models.RoleAdmin))
	a.Role = models.RoleAdmin
	return a
}
