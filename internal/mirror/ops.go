package mirror

import (
	"context"

	"sparkclean/internal/models"
	"sparkclean/internal/realtime"
)

func (s *Store) CreateBooking(ctx context.Context, b models.Booking) (*models.Booking, error) {
	created, err := track(s, ctx, "create_booking", func(ctx context.Context) (*models.Booking, error) {
		return s.backend.CreateBooking(ctx, &b)
	})
	if err != nil {
		return nil, err
	}
	s.Bookings().put(*created)
	return created, nil
}

func (s *Store) UpdateBooking(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error) {
	updated, err := track(s, ctx, "update_booking", func(ctx context.Context) (*models.Booking, error) {
		return s.backend.UpdateBooking(ctx, id, patch)
	})
	if err != nil {
		return nil, err
	}
	s.Bookings().put(*updated)
	return updated, nil
}

func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	_, err := track(s, ctx, "delete_booking", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.DeleteBooking(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Bookings().drop(id)
	return nil
}

func (s *Store) BookInspection(ctx context.Context, req models.InspectionRequest) (*models.Booking, error) {
	created, err := track(s, ctx, "book_inspection", func(ctx context.Context) (*models.Booking, error) {
		return s.backend.BookInspection(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	s.Bookings().put(*created)
	return created, nil
}

func (s *Store) UpdateInspectionPrice(ctx context.Context, id int64, price float64) (*models.Booking, error) {
	updated, err := track(s, ctx, "update_inspection_price", func(ctx context.Context) (*models.Booking, error) {
		return s.backend.UpdateInspectionPrice(ctx, id, price)
	})
	if err != nil {
		return nil, err
	}
	s.Bookings().put(*updated)
	return updated, nil
}

// UpdateUser edits the signed-in user's profile.
func (s *Store) UpdateUser(ctx context.Context, patch models.UserProfilePatch) (*models.User, error) {
	updated, err := track(s, ctx, "update_user", func(ctx context.Context) (*models.User, error) {
		return s.backend.UpdateProfile(ctx, patch)
	})
	if err != nil {
		return nil, err
	}
	s.Users().put(*updated)
	return updated, nil
}

func (s *Store) AdjustCredits(ctx context.Context, userID int64, delta float64) (*models.User, error) {
	updated, err := track(s, ctx, "adjust_credits", func(ctx context.Context) (*models.User, error) {
		return s.backend.AdjustCredits(ctx, userID, delta)
	})
	if err != nil {
		return nil, err
	}
	s.Users().put(*updated)
	return updated, nil
}

// CreateAddress stores an address. When it takes the default flag the user's
// addresses are refetched so the flags cleared by the server show up.
func (s *Store) CreateAddress(ctx context.Context, a models.Address) (*models.Address, error) {
	created, err := track(s, ctx, "create_address", func(ctx context.Context) (*models.Address, error) {
		return s.backend.CreateAddress(ctx, &a)
	})
	if err != nil {
		return nil, err
	}
	s.Addresses().put(*created)
	if created.IsDefault {
		s.reloadAddresses(ctx, created.UserID)
	}
	return created, nil
}

func (s *Store) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	updated, err := track(s, ctx, "update_address", func(ctx context.Context) (*models.Address, error) {
		return s.backend.UpdateAddress(ctx, id, patch)
	})
	if err != nil {
		return nil, err
	}
	s.Addresses().put(*updated)
	return updated, nil
}

// SetDefaultAddress moves the default flag to id. The backend does this in one
// transaction and returns every address of the user, which replaces the
// mirrored flags at once.
func (s *Store) SetDefaultAddress(ctx context.Context, id int64) ([]models.Address, error) {
	addrs, err := track(s, ctx, "set_default_address", func(ctx context.Context) ([]models.Address, error) {
		return s.backend.SetDefaultAddress(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	t := s.Addresses()
	for _, a := range addrs {
		t.put(a)
	}
	return addrs, nil
}

// DeleteAddress removes an address. Deleting the default promotes another one
// on the server, so the user's addresses are refetched.
func (s *Store) DeleteAddress(ctx context.Context, id int64) error {
	held, ok := s.Addresses().Get(id)
	_, err := track(s, ctx, "delete_address", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.DeleteAddress(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Addresses().drop(id)
	if ok && held.IsDefault {
		s.reloadAddresses(ctx, held.UserID)
	}
	return nil
}

func (s *Store) reloadAddresses(ctx context.Context, userID int64) {
	t := s.Addresses()
	rows, err := track(s, ctx, "fetch addresses", func(ctx context.Context) (int, error) {
		rows, err := s.backend.List(ctx, models.TableAddresses, realtime.Eq("user_id", userID))
		if err != nil {
			return 0, err
		}
		return len(rows), t.load(rows)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("reload addresses")
		return
	}
	s.logger.Debug().Int("rows", rows).Msg("addresses reloaded")
}

func (s *Store) SubmitContact(ctx context.Context, m models.ContactMessage) (*models.ContactMessage, error) {
	created, err := track(s, ctx, "submit_contact", func(ctx context.Context) (*models.ContactMessage, error) {
		return s.backend.SubmitContact(ctx, &m)
	})
	if err != nil {
		return nil, err
	}
	// Only admins may read contact messages; a customer's copy would be the
	// only row the mirror ever holds, so it is not kept.
	if session := s.Session(); session != nil && session.Role == models.RoleAdmin {
		s.ContactMessages().put(*created)
	}
	return created, nil
}

func (s *Store) UpdateContactStatus(ctx context.Context, id int64, status string) (*models.ContactMessage, error) {
	updated, err := track(s, ctx, "update_contact_status", func(ctx context.Context) (*models.ContactMessage, error) {
		return s.backend.UpdateContactStatus(ctx, id, status)
	})
	if err != nil {
		return nil, err
	}
	s.ContactMessages().put(*updated)
	return updated, nil
}

func (s *Store) SchedulePickup(ctx context.Context, p models.PickupDelivery) (*models.PickupDelivery, error) {
	created, err := track(s, ctx, "schedule_pickup", func(ctx context.Context) (*models.PickupDelivery, error) {
		return s.backend.SchedulePickup(ctx, &p)
	})
	if err != nil {
		return nil, err
	}
	s.PickupDeliveries().put(*created)
	return created, nil
}

func (s *Store) UpdatePickupStatus(ctx context.Context, id int64, status, deliveryDate string) (*models.PickupDelivery, error) {
	updated, err := track(s, ctx, "update_pickup_status", func(ctx context.Context) (*models.PickupDelivery, error) {
		return s.backend.UpdatePickupStatus(ctx, id, status, deliveryDate)
	})
	if err != nil {
		return nil, err
	}
	s.PickupDeliveries().put(*updated)
	return updated, nil
}

func (s *Store) FileComplaint(ctx context.Context, c models.UserComplaint) (*models.UserComplaint, error) {
	created, err := track(s, ctx, "file_complaint", func(ctx context.Context) (*models.UserComplaint, error) {
		return s.backend.FileComplaint(ctx, &c)
	})
	if err != nil {
		return nil, err
	}
	s.Complaints().put(*created)
	return created, nil
}

func (s *Store) UpdateComplaintStatus(ctx context.Context, id int64, status string) (*models.UserComplaint, error) {
	updated, err := track(s, ctx, "update_complaint_status", func(ctx context.Context) (*models.UserComplaint, error) {
		return s.backend.UpdateComplaintStatus(ctx, id, status)
	})
	if err != nil {
		return nil, err
	}
	s.Complaints().put(*updated)
	return updated, nil
}
