package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

// SupportService handles support tickets and the live chat.
type SupportService struct {
	repo domain.SupportRepository
	broadcaster
}

func NewSupportService(repo domain.SupportRepository, changes domain.ChangePublisher, eventBus domain.EventPublisher, logger *zerolog.Logger) *SupportService {
	return &SupportService{repo: repo, broadcaster: broadcaster{changes: changes, events: eventBus, logger: logger}}
}

func (s *SupportService) CreateTicket(ctx context.Context, actor Actor, t *models.SupportTicket) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	t.Subject = strings.TrimSpace(t.Subject)
	t.Description = strings.TrimSpace(t.Description)
	if err := requireFields("subject", t.Subject, "description", t.Description); err != nil {
		return err
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(t.Priority) {
		return invalid("is unknown", "priority")
	}
	t.UserID = actor.UserID
	t.Status = models.TicketOpen

	if err := s.repo.CreateSupportTicket(ctx, t); err != nil {
		return err
	}
	s.change(models.TableSupportTickets, models.ChangeInsert, *t)
	s.event(events.EventTicketOpened, events.NoticePayload{
		Table:   models.TableSupportTickets,
		ID:      t.ID,
		UserID:  t.UserID,
		Email:   actor.Email,
		Title:   "Support ticket: " + t.Subject,
		Message: fmt.Sprintf("[%s] %s", t.Priority, t.Description),
	})
	return nil
}

func (s *SupportService) ListTickets(ctx context.Context, actor Actor) ([]models.SupportTicket, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = 0
	}
	return s.repo.ListSupportTickets(ctx, userID)
}

// UpdateTicketStatus changes a ticket status. Legacy labels such as "pending"
// are accepted and stored as open. Customers may only close their own tickets.
func (s *SupportService) UpdateTicketStatus(ctx context.Context, actor Actor, id int64, status string) (*models.SupportTicket, error) {
	normalized, ok := models.NormalizeTicketStatus(strings.TrimSpace(status))
	if !ok {
		return nil, invalid("is unknown", "status")
	}
	t, err := s.ticket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && normalized != models.TicketClosed {
		return nil, ErrForbidden
	}
	if t.Status == normalized {
		return t, nil
	}
	updated, err := s.repo.UpdateSupportTicketStatus(ctx, id, normalized)
	if err != nil {
		return nil, err
	}
	s.change(models.TableSupportTickets, models.ChangeUpdate, *updated)
	return updated, nil
}

func (s *SupportService) AddTicketMessage(ctx context.Context, actor Actor, ticketID int64, content string) (*models.SupportMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("required", "content")
	}
	t, err := s.ticket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TicketClosed {
		return nil, invalid("ticket is closed", "ticket_id")
	}

	m := &models.SupportMessage{TicketID: ticketID, SenderID: actor.UserID, SenderRole: senderRole(actor), Content: content}
	if err := s.repo.CreateSupportMessage(ctx, m); err != nil {
		return nil, err
	}
	s.change(models.TableSupportMessages, models.ChangeInsert, *m)
	return m, nil
}

func (s *SupportService) ListTicketMessages(ctx context.Context, actor Actor, ticketID int64) ([]models.SupportMessage, error) {
	if _, err := s.ticket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.repo.ListSupportMessages(ctx, ticketID)
}

func (s *SupportService) ticket(ctx context.Context, actor Actor, id int64) (*models.SupportTicket, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	t, err := s.repo.GetSupportTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(t.UserID) {
		return nil, database.ErrNotFound
	}
	return t, nil
}

// StartChat returns the customer's open chat session, creating a waiting one
// when there is none.
func (s *SupportService) StartChat(ctx context.Context, actor Actor) (*models.ChatSession, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetOpenChatSession(ctx, actor.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	session := &models.ChatSession{UserID: actor.UserID, Status: models.ChatWaiting}
	if err := s.repo.CreateChatSession(ctx, session); err != nil {
		return nil, err
	}
	s.change(models.TableChatSessions, models.ChangeInsert, *session)
	return session, nil
}

// PostChatMessage appends a message to an open session. The first admin reply
// to a waiting session assigns that admin and activates the session.
func (s *SupportService) PostChatMessage(ctx context.Context, actor Actor, sessionID int64, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("required", "content")
	}
	session, err := s.chatSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.ChatClosed {
		return nil, invalid("chat session is closed", "session_id")
	}

	m := &models.ChatMessage{SessionID: sessionID, SenderID: actor.UserID, SenderRole: senderRole(actor), Content: content}
	session, err = s.repo.CreateChatMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	s.change(models.TableChatMessages, models.ChangeInsert, *m)

	if actor.IsAdmin() && session.Status == models.ChatWaiting {
		adminID := actor.UserID
		if session, err = s.repo.UpdateChatSession(ctx, sessionID, models.ChatActive, &adminID); err != nil {
			return nil, err
		}
	}
	s.change(models.TableChatSessions, models.ChangeUpdate, *session)

	if !actor.IsAdmin() {
		s.event(events.EventChatMessageFromClient, events.NoticePayload{
			Table:   models.TableChatMessages,
			ID:      m.ID,
			UserID:  actor.UserID,
			Email:   actor.Email,
			Title:   fmt.Sprintf("Chat #%d", sessionID),
			Message: content,
		})
	}
	return m, nil
}

func (s *SupportService) ListChatMessages(ctx context.Context, actor Actor, sessionID int64) ([]models.ChatMessage, error) {
	if _, err := s.chatSession(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListChatMessages(ctx, sessionID)
}

func (s *SupportService) ListChatSessions(ctx context.Context, actor Actor, status string) ([]models.ChatSession, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if status != "" && !models.IsValidChatStatus(status) {
		return nil, invalid("is unknown", "status")
	}
	return s.repo.ListChatSessions(ctx, status)
}

// ChatSessionPatch is the admin update of a chat session.
type ChatSessionPatch struct {
	Status     *string `json:"status,omitempty"`
	AssignToMe bool    `json:"assign_to_me,omitempty"`
	Unassign   bool    `json:"unassign,omitempty"`
}

func (s *SupportService) UpdateChatSession(ctx context.Context, actor Actor, id int64, patch ChatSessionPatch) (*models.ChatSession, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	session, err := s.repo.GetChatSession(ctx, id)
	if err != nil {
		return nil, err
	}

	status := session.Status
	if patch.Status != nil {
		if !models.IsValidChatStatus(*patch.Status) {
			return nil, invalid("is unknown", "status")
		}
		status = *patch.Status
	}
	assigned := session.AssignedAdminID
	switch {
	case patch.Unassign:
		assigned = nil
	case patch.AssignToMe:
		adminID := actor.UserID
		assigned = &adminID
		if status == models.ChatWaiting {
			status = models.ChatActive
		}
	}

	updated, err := s.repo.UpdateChatSession(ctx, id, status, assigned)
	if err != nil {
		return nil, err
	}
	s.change(models.TableChatSessions, models.ChangeUpdate, *updated)
	return updated, nil
}

func (s *SupportService) chatSession(ctx context.Context, actor Actor, id int64) (*models.ChatSession, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	session, err := s.repo.GetChatSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(session.UserID) {
		return nil, database.ErrNotFound
	}
	return session, nil
}

func senderRole(actor Actor) string {
	if actor.IsAdmin() {
		return models.RoleAdmin
	}
	return models.RoleCustomer
}
