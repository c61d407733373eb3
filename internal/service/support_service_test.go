package service

import (
	"context"
	"testing"

	"sparkclean/internal/database"
	"sparkclean/internal/events"
	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportTickets(t *testing.T) {
	db := setupTestDB(t)
	bus := &eventRecorder{}
	svc := NewSupportService(db, &changeRecorder{}, bus, testLogger())
	ctx := context.Background()
	customer := Actor{UserID: 5, Email: "c@sparkclean.test", Role: models.RoleCustomer}
	other := Actor{UserID: 6, Role: models.RoleCustomer}
	admin := Actor{UserID: 1, Role: models.RoleAdmin}

	ticket := &models.SupportTicket{Subject: "Missed spot", Description: "The oven was skipped"}
	require.NoError(t, svc.CreateTicket(ctx, customer, ticket))
	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, models.PriorityMedium, ticket.Priority)
	assert.Equal(t, []string{events.EventTicketOpened}, bus.events)

	assert.ErrorIs(t, svc.CreateTicket(ctx, customer, &models.SupportTicket{Subject: "x"}), ErrValidation)
	assert.ErrorIs(t, svc.CreateTicket(ctx, customer, &models.SupportTicket{Subject: "x", Description: "y", Priority: "asap"}), ErrValidation)

	mine, err := svc.ListTickets(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, mine)
	all, err := svc.ListTickets(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.AddTicketMessage(ctx, other, ticket.ID, "hello")
	assert.ErrorIs(t, err, database.ErrNotFound)
	msg, err := svc.AddTicketMessage(ctx, customer, ticket.ID, "Any update?")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, msg.SenderRole)
	_, err = svc.AddTicketMessage(ctx, admin, ticket.ID, "On it")
	require.NoError(t, err)

	msgs, err := svc.ListTicketMessages(ctx, customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAdmin, msgs[1].SenderRole)

	_, err = svc.UpdateTicketStatus(ctx, customer, ticket.ID, models.TicketResolved)
	assert.ErrorIs(t, err, ErrForbidden)

	progress, err := svc.UpdateTicketStatus(ctx, admin, ticket.ID, models.TicketInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.TicketInProgress, progress.Status)

	reopened, err := svc.UpdateTicketStatus(ctx, admin, ticket.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, reopened.Status, "legacy pending is stored as open")

	_, err = svc.UpdateTicketStatus(ctx, admin, ticket.ID, "archived")
	assert.ErrorIs(t, err, ErrValidation)

	closed, err := svc.UpdateTicketStatus(ctx, customer, ticket.ID, models.TicketClosed)
	require.NoError(t, err)
	assert.Equal(t, models.TicketClosed, closed.Status)

	_, err = svc.AddTicketMessage(ctx, customer, ticket.ID, "one more thing")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLiveChat(t *testing.T) {
	db := setupTestDB(t)
	bus := &eventRecorder{}
	changes := &changeRecorder{}
	svc := NewSupportService(db, changes, bus, testLogger())
	ctx := context.Background()
	customer := Actor{UserID: 5, Role: models.RoleCustomer}
	other := Actor{UserID: 6, Role: models.RoleCustomer}
	admin := Actor{UserID: 1, Role: models.RoleAdmin}

	session, err := svc.StartChat(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, models.ChatWaiting, session.Status)

	same, err := svc.StartChat(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, session.ID, same.ID, "open session is reused")

	_, err = svc.PostChatMessage(ctx, customer, session.ID, "Hi, I need help")
	require.NoError(t, err)
	assert.Equal(t, []string{events.EventChatMessageFromClient}, bus.events)

	_, err = svc.PostChatMessage(ctx, other, session.ID, "sneaky")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = svc.PostChatMessage(ctx, customer, session.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.PostChatMessage(ctx, admin, session.ID, "Hello! How can I help?")
	require.NoError(t, err)
	assert.Len(t, bus.events, 1, "admin replies raise no client event")

	waiting, err := svc.ListChatSessions(ctx, admin, models.ChatWaiting)
	require.NoError(t, err)
	assert.Empty(t, waiting)
	active, err := svc.ListChatSessions(ctx, admin, models.ChatActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].AssignedAdminID)
	assert.Equal(t, admin.UserID, *active[0].AssignedAdminID)

	msgs, err := svc.ListChatMessages(ctx, customer, session.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = svc.ListChatSessions(ctx, customer, "")
	assert.ErrorIs(t, err, ErrForbidden)

	closedStatus := models.ChatClosed
	closed, err := svc.UpdateChatSession(ctx, admin, session.ID, ChatSessionPatch{Status: &closedStatus, Unassign: true})
	require.NoError(t, err)
	assert.Equal(t, models.ChatClosed, closed.Status)
	assert.Nil(t, closed.AssignedAdminID)

	_, err = svc.PostChatMessage(ctx, customer, session.ID, "still there?")
	assert.ErrorIs(t, err, ErrValidation)

	fresh, err := svc.StartChat(ctx, customer)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, fresh.ID)
}
