package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

const accessCheckTimeout = 5 * time.Second

// RealtimeAccess decides which realtime channels an actor may open. Customers
// are narrowed to their own rows; staff tables are for admins only.
type RealtimeAccess struct {
	support *SupportService
}

func NewRealtimeAccess(support *SupportService) *RealtimeAccess {
	return &RealtimeAccess{support: support}
}

// For returns the authorizer applied to the subscriptions of actor.
func (a *RealtimeAccess) For(actor Actor) realtime.Authorizer {
	return func(table string, requested realtime.Filter) (realtime.Filter, error) {
		if actor.IsAdmin() {
			return requested, nil
		}
		switch table {
		case models.TableServices, models.TableGalleryImages:
			return requested, nil
		}
		if err := actor.requireUser(); err != nil {
			return realtime.Filter{}, err
		}

		switch table {
		case models.TableBookings, models.TableAddresses, models.TablePickupDeliveries,
			models.TableUserComplaints, models.TableSupportTickets, models.TableChatSessions:
			return own(requested, "user_id", actor.UserID)
		case models.TableUsers:
			return own(requested, "id", actor.UserID)
		case models.TableSupportMessages:
			return a.thread(requested, "ticket_id", func(ctx context.Context, id int64) error {
				_, err := a.support.ticket(ctx, actor, id)
				return err
			})
		case models.TableChatMessages:
			return a.thread(requested, "session_id", func(ctx context.Context, id int64) error {
				_, err := a.support.chatSession(ctx, actor, id)
				return err
			})
		default:
			return realtime.Filter{}, ErrForbidden
		}
	}
}

// own narrows a subscription to the rows whose column equals the actor id.
// A filter on another column cannot be combined and is refused.
func own(requested realtime.Filter, column string, userID int64) (realtime.Filter, error) {
	narrowed := realtime.Eq(column, userID)
	if requested.IsZero() || requested == narrowed {
		return narrowed, nil
	}
	return realtime.Filter{}, fmt.Errorf("%w: only %s may be filtered", ErrForbidden, narrowed)
}

// thread allows message channels filtered to one thread the actor can read.
func (a *RealtimeAccess) thread(requested realtime.Filter, column string, check func(context.Context, int64) error) (realtime.Filter, error) {
	if requested.Column != column {
		return realtime.Filter{}, invalid("subscription must be filtered by "+column, "filter")
	}
	id, err := strconv.ParseInt(requested.Value, 10, 64)
	if err != nil {
		return realtime.Filter{}, invalid("must be a number", column)
	}
	ctx, cancel := context.WithTimeout(context.Background(), accessCheckTimeout)
	defer cancel()
	if err := check(ctx, id); err != nil {
		return realtime.Filter{}, err
	}
	return requested, nil
}
