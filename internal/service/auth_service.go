package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/metrics"
	"sparkclean/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type SignInResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// AuthService implements sign up, email confirmation, sign in/out and
// password reset.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	hasher   domain.PasswordHasher
	tokens   domain.TokenIssuer
	tasks    domain.TaskEnqueuer
	config   *config.Config
	now      func() time.Time
	broadcaster
}

func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionStore,
	hasher domain.PasswordHasher,
	tokens domain.TokenIssuer,
	tasks domain.TaskEnqueuer,
	changes domain.ChangePublisher,
	eventBus domain.EventPublisher,
	cfg *config.Config,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		tokens:      tokens,
		tasks:       tasks,
		config:      cfg,
		now:         time.Now,
		broadcaster: broadcaster{changes: changes, events: eventBus, logger: logger},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := requireFields("email", req.Email, "password", req.Password); err != nil {
		return nil, err
	}
	if !validEmail(req.Email) {
		return nil, invalid("is not a valid address", "email")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, invalid(err.Error(), "password")
	}

	role := models.RoleCustomer
	if s.config.IsAdminEmail(req.Email) {
		role = models.RoleAdmin
	}
	user := &models.User{
		Email:          req.Email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(req.FullName),
		Phone:          strings.TrimSpace(req.Phone),
		Role:           role,
		EmailConfirmed: !s.config.Auth.RequireEmailConfirmation,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if !user.EmailConfirmed {
		if err := s.sendToken(ctx, user, models.TokenPurposeConfirm); err != nil {
			return nil, err
		}
	}

	user.FirstName = models.DeriveFirstName(user.FullName, user.Email)
	s.change(models.TableUsers, models.ChangeInsert, *user)
	s.event(events.EventUserSignedUp, events.NoticePayload{
		Table:   models.TableUsers,
		ID:      user.ID,
		UserID:  user.ID,
		Email:   user.Email,
		Title:   "New customer",
		Message: fmt.Sprintf("%s signed up", user.Email),
	})
	s.logger.Info().Int64("user_id", user.ID).Msg("user signed up")
	return user, nil
}

// sendToken stores a single-use token and queues the matching email.
func (s *AuthService) sendToken(ctx context.Context, user *models.User, purpose string) error {
	ttl, path, taskType := s.config.Auth.ConfirmationTokenTTL, "/auth/confirm", models.TaskEmailConfirmation
	if purpose == models.TokenPurposeReset {
		ttl, path, taskType = s.config.Auth.ResetTokenTTL, "/reset-password", models.TaskEmailPasswordReset
	}

	token := &models.AuthToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.users.CreateAuthToken(ctx, token); err != nil {
		return err
	}

	actionURL := strings.TrimRight(s.config.App.SiteURL, "/") + path + "?token=" + url.QueryEscape(token.Token)
	payload := models.EmailTask{
		To:        user.Email,
		Name:      models.DeriveFirstName(user.FullName, user.Email),
		ActionURL: actionURL,
	}
	if s.tasks == nil {
		return nil
	}
	if err := s.tasks.Enqueue(ctx, taskType, user.ID, payload); err != nil {
		return fmt.Errorf("failed to queue %s email: %w", purpose, err)
	}
	return nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalid("required", "token")
	}
	t, err := s.users.ConsumeAuthToken(ctx, token, models.TokenPurposeConfirm, s.now())
	if err != nil {
		if errors.Is(err, database.ErrTokenInvalid) {
			return nil, invalid("is invalid or expired", "token")
		}
		return nil, err
	}
	if err := s.users.ConfirmUserEmail(ctx, t.UserID); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	s.change(models.TableUsers, models.ChangeUpdate, *user)
	return user, nil
}

// ResendConfirmation queues a new confirmation email. Unknown and already
// confirmed addresses succeed silently so the endpoint cannot be used to probe
// for accounts.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailConfirmed {
		return nil
	}
	return s.sendToken(ctx, user, models.TokenPurposeConfirm)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = normalizeEmail(email)
	if err := requireFields("email", email, "password", password); err != nil {
		return nil, err
	}

	allowed, err := s.sessions.CheckRateLimit(ctx, "login:"+email, s.config.Auth.LoginRateLimit, s.config.Auth.LoginRateWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		metrics.IncAuth("rate_limited")
		return nil, ErrRateLimited
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncAuth("invalid")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		metrics.IncAuth("invalid")
		return nil, ErrInvalidCredentials
	}
	if s.config.Auth.RequireEmailConfirmation && !user.EmailConfirmed {
		metrics.IncAuth("unconfirmed")
		return nil, ErrEmailNotConfirmed
	}

	if s.config.IsAdminEmail(user.Email) && user.Role != models.RoleAdmin {
		if err := s.users.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return nil, err
		}
		user.Role = models.RoleAdmin
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.config.Auth.AccessTokenTTL),
	}
	if err := s.sessions.StoreSession(ctx, session); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(*session)
	if err != nil {
		return nil, err
	}

	metrics.IncAuth("success")
	user.FirstName = models.DeriveFirstName(user.FullName, user.Email)
	return &SignInResult{AccessToken: token, TokenType: "bearer", ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to a live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil || session == nil {
		return nil, ErrUnauthorized
	}
	if session.UserID != claims.UserID || !session.ExpiresAt.After(s.now()) {
		return nil, ErrUnauthorized
	}
	return session, nil
}

func (s *AuthService) SignOut(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	return s.sessions.RevokeSession(ctx, session.ID)
}

// ForgotPassword queues a reset email. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("required", "email")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sendToken(ctx, user, models.TokenPurposeReset)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := requireFields("token", token, "password", newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return invalid(err.Error(), "password")
	}
	t, err := s.users.ConsumeAuthToken(ctx, token, models.TokenPurposeReset, s.now())
	if err != nil {
		if errors.Is(err, database.ErrTokenInvalid) {
			return invalid("is invalid or expired", "token")
		}
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, t.UserID, hash); err != nil {
		return err
	}
	// Following the emailed link proves ownership of the address.
	if err := s.users.ConfirmUserEmail(ctx, t.UserID); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", t.UserID).Msg("password reset")
	return nil
}
