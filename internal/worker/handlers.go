package worker

import (
	"context"
	"errors"
	"fmt"

	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/models"
)

type EmailSender interface {
	SendEmail(ctx context.Context, taskType string, task models.EmailTask) error
}

type AdminNotifier interface {
	Notify(ctx context.Context, text string) error
}

type BookingReader interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// RegisterEmail routes the three email task types to mailer.
func (w *OutboxWorker) RegisterEmail(mailer EmailSender) {
	h := func(ctx context.Context, task *models.OutboxTask) error {
		var p models.EmailTask
		if err := Decode(task, &p); err != nil {
			return err
		}
		return mailer.SendEmail(ctx, task.TaskType, p)
	}
	w.Handle(models.TaskEmailConfirmation, h)
	w.Handle(models.TaskEmailPasswordReset, h)
	w.Handle(models.TaskAdminEmail, h)
}

func (w *OutboxWorker) RegisterTelegram(n AdminNotifier) {
	w.Handle(models.TaskTelegramNotify, func(ctx context.Context, task *models.OutboxTask) error {
		var p models.TelegramTask
		if err := Decode(task, &p); err != nil {
			return err
		}
		return n.Notify(ctx, p.Text)
	})
}

// RegisterSheets writes the current booking row, not the queued snapshot, so
// retried tasks never overwrite newer data.
func (w *OutboxWorker) RegisterSheets(bookings BookingReader, ledger domain.SheetsWriter) {
	w.Handle(models.TaskSheetsUpsert, func(ctx context.Context, task *models.OutboxTask) error {
		booking, err := bookings.GetBooking(ctx, task.ReferenceID)
		if errors.Is(err, database.ErrNotFound) {
			// Deleted since; the delete task clears the row.
			return nil
		}
		if err != nil {
			return fmt.Errorf("load booking %d: %w", task.ReferenceID, err)
		}
		return ledger.UpsertBooking(ctx, booking)
	})
	w.Handle(models.TaskSheetsDelete, func(ctx context.Context, task *models.OutboxTask) error {
		return ledger.DeleteBookingRow(ctx, task.ReferenceID)
	})
}

// Discard completes tasks of the given types without doing anything. Used
// for integrations that are switched off.
func (w *OutboxWorker) Discard(taskTypes ...string) {
	for _, t := range taskTypes {
		w.Handle(t, func(context.Context, *models.OutboxTask) error { return nil })
	}
}
