package service

import (
	"context"
	"strings"

	"sparkclean/internal/database"
	"sparkclean/internal/domain"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

type AddressService struct {
	repo domain.AddressRepository
	broadcaster
}

func NewAddressService(repo domain.AddressRepository, changes domain.ChangePublisher, logger *zerolog.Logger) *AddressService {
	return &AddressService{repo: repo, broadcaster: broadcaster{changes: changes, logger: logger}}
}

func (s *AddressService) ListAddresses(ctx context.Context, actor Actor) ([]models.Address, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	return s.repo.ListAddresses(ctx, actor.UserID)
}

// CreateAddress stores a new address for the actor. The first one becomes the
// default.
func (s *AddressService) CreateAddress(ctx context.Context, actor Actor, addr *models.Address) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	if err := requireFields("street", addr.Street, "city", addr.City); err != nil {
		return err
	}
	addr.UserID = actor.UserID

	cleared, err := s.repo.CreateAddress(ctx, addr)
	if err != nil {
		return err
	}
	for _, a := range cleared {
		s.change(models.TableAddresses, models.ChangeUpdate, a)
	}
	s.change(models.TableAddresses, models.ChangeInsert, *addr)
	return nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, actor Actor, id int64, patch models.AddressPatch) (*models.Address, error) {
	addr, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(addr)
	if err := requireFields("street", addr.Street, "city", addr.City); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAddress(ctx, addr); err != nil {
		return nil, err
	}
	s.change(models.TableAddresses, models.ChangeUpdate, *addr)
	return addr, nil
}

// SetDefaultAddress makes id the actor's only default address and returns
// all of the actor's addresses.
func (s *AddressService) SetDefaultAddress(ctx context.Context, actor Actor, id int64) ([]models.Address, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	addrs, err := s.repo.SetDefaultAddress(ctx, actor.UserID, id)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		s.change(models.TableAddresses, models.ChangeUpdate, a)
	}
	return addrs, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, actor Actor, id int64) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	deleted, promoted, err := s.repo.DeleteAddress(ctx, actor.UserID, id)
	if err != nil {
		return err
	}
	s.change(models.TableAddresses, models.ChangeDelete, *deleted)
	if promoted != nil {
		s.change(models.TableAddresses, models.ChangeUpdate, *promoted)
	}
	return nil
}

func (s *AddressService) owned(ctx context.Context, actor Actor, id int64) (*models.Address, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	addr, err := s.repo.GetAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	if addr.UserID != actor.UserID {
		return nil, database.ErrNotFound
	}
	return addr, nil
}
