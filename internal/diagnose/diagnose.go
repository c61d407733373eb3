// Package diagnose checks the settings that sign-up, email confirmation and
// sign-in depend on, and renders a fix-it guide for whatever is broken.
package diagnose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

const minSecretLength = 32

// Tables the application cannot run without.
var requiredTables = []string{
	models.TableUsers, models.TableBookings, models.TableServices, models.TableContactMessages,
	models.TableAddresses, models.TablePickupDeliveries, models.TableUserComplaints,
	models.TableSupportTickets, models.TableSupportMessages, models.TableChatSessions,
	models.TableChatMessages, models.TableAdminNotifications, models.TableGalleryImages,
	"auth_tokens", "outbox",
}

// Result is the outcome of one check. Fix says what to do when it is not ok.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
	Fix    string `json:"fix,omitempty"`
}

type Report struct {
	GeneratedAt time.Time
	Results     []Result
	// Unconfirmed lists accounts still waiting for email confirmation.
	Unconfirmed []models.User
}

// Failed reports whether any check failed.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail {
			return true
		}
	}
	return false
}

type Store interface {
	PingContext(ctx context.Context) error
	MissingTables(ctx context.Context, tables ...string) []string
	ListUnconfirmedUsers(ctx context.Context) ([]models.User, error)
}

// SMTPDialer opens and closes an authenticated SMTP connection.
type SMTPDialer func(cfg config.SMTPConfig) error

func dialSMTP(cfg config.SMTPConfig) error {
	closer, err := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password).Dial()
	if err != nil {
		return err
	}
	return closer.Close()
}

type Checker struct {
	cfg    *config.Config
	store  Store
	dial   SMTPDialer
	now    func() time.Time
	logger zerolog.Logger
}

// New returns a checker. A nil dial uses a real SMTP connection.
func New(cfg *config.Config, store Store, dial SMTPDialer, logger *zerolog.Logger) *Checker {
	if dial == nil {
		dial = dialSMTP
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "diagnose").Logger()
	}
	return &Checker{cfg: cfg, store: store, dial: dial, now: time.Now, logger: l}
}

// Run executes every check. The database checks are skipped when the
// database does not answer.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{GeneratedAt: c.now()}
	add := func(r Result) {
		c.logger.Debug().Str("check", r.Name).Str("status", string(r.Status)).Msg(r.Detail)
		report.Results = append(report.Results, r)
	}

	dbOK := c.checkDatabase(ctx, add)
	add(c.checkJWTSecret())
	add(c.checkConfirmationConfig())
	add(c.checkSMTP())
	if dbOK {
		add(c.checkSchema(ctx))
		res, users := c.checkUnconfirmed(ctx)
		report.Unconfirmed = users
		add(res)
	}
	return report
}

func (c *Checker) checkDatabase(ctx context.Context, add func(Result)) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.store.PingContext(ctx); err != nil {
		add(Result{
			Name:   "database",
			Status: StatusFail,
			Detail: fmt.Sprintf("%s database does not answer: %v", c.cfg.Database.Driver, err),
			Fix:    "Check the database section of the config and that the server is reachable.",
		})
		return false
	}
	add(Result{Name: "database", Status: StatusOK, Detail: c.cfg.Database.Driver + " database answers"})
	return true
}

func (c *Checker) checkSchema(ctx context.Context) Result {
	missing := c.store.MissingTables(ctx, requiredTables...)
	if len(missing) > 0 {
		return Result{
			Name:   "schema",
			Status: StatusFail,
			Detail: "missing tables: " + strings.Join(missing, ", "),
			Fix:    "Start the API once against this database; it creates the schema on startup.",
		}
	}
	return Result{Name: "schema", Status: StatusOK, Detail: fmt.Sprintf("%d tables present", len(requiredTables))}
}

func (c *Checker) checkJWTSecret() Result {
	secret := c.cfg.Auth.JWTSecret
	switch {
	case secret == "" || secret == "CHANGE_ME":
		return Result{Name: "jwt_secret", Status: StatusFail, Detail: "jwt secret is not set",
			Fix: "Set AUTH_JWT_SECRET to a random value of at least 32 characters."}
	case len(secret) < minSecretLength:
		return Result{Name: "jwt_secret", Status: StatusWarn,
			Detail: fmt.Sprintf("jwt secret has %d characters", len(secret)),
			Fix:    fmt.Sprintf("Use at least %d random characters, e.g. `openssl rand -hex 32`.", minSecretLength)}
	}
	return Result{Name: "jwt_secret", Status: StatusOK, Detail: "jwt secret is long enough"}
}

func (c *Checker) checkConfirmationConfig() Result {
	if !c.cfg.Auth.RequireEmailConfirmation {
		return Result{Name: "email_confirmation", Status: StatusWarn,
			Detail: "new accounts can sign in without confirming their email",
			Fix:    "Set auth.require_email_confirmation to true once SMTP works."}
	}
	if !c.cfg.SMTP.Enabled() {
		return Result{Name: "email_confirmation", Status: StatusFail,
			Detail: "confirmation is required but SMTP is not configured, so nobody can confirm",
			Fix:    "Configure smtp.host and smtp.from, or disable auth.require_email_confirmation."}
	}
	if !strings.HasPrefix(c.cfg.App.SiteURL, "http://") && !strings.HasPrefix(c.cfg.App.SiteURL, "https://") {
		return Result{Name: "email_confirmation", Status: StatusFail,
			Detail: fmt.Sprintf("site url %q is not absolute, confirmation links will not open", c.cfg.App.SiteURL),
			Fix:    "Set app.site_url to the public URL of the web app."}
	}
	return Result{Name: "email_confirmation", Status: StatusOK,
		Detail: "confirmation links point to " + c.cfg.App.SiteURL}
}

func (c *Checker) checkSMTP() Result {
	if !c.cfg.SMTP.Enabled() {
		return Result{Name: "smtp", Status: StatusWarn, Detail: "smtp is not configured, emails are dropped",
			Fix: "Set SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD and SMTP_FROM."}
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTP.Host, c.cfg.SMTP.Port)
	if err := c.dial(c.cfg.SMTP); err != nil {
		return Result{Name: "smtp", Status: StatusFail,
			Detail: fmt.Sprintf("cannot sign in to %s: %v", addr, err),
			Fix:    "Check the SMTP credentials and that the port is open from this host."}
	}
	return Result{Name: "smtp", Status: StatusOK, Detail: "signed in to " + addr}
}

func (c *Checker) checkUnconfirmed(ctx context.Context) (Result, []models.User) {
	users, err := c.store.ListUnconfirmedUsers(ctx)
	if err != nil {
		return Result{Name: "unconfirmed_users", Status: StatusFail, Detail: err.Error()}, nil
	}
	if len(users) == 0 {
		return Result{Name: "unconfirmed_users", Status: StatusOK, Detail: "every account is confirmed"}, nil
	}
	status := StatusOK
	fix := ""
	if c.cfg.Auth.RequireEmailConfirmation {
		status = StatusWarn
		fix = "Ask the users to request a new link, or confirm them with the SQL in the guide."
	}
	return Result{
		Name:   "unconfirmed_users",
		Status: status,
		Detail: fmt.Sprintf("%d accounts have not confirmed their email", len(users)),
		Fix:    fix,
	}, users
}
