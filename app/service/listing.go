package service

import (
	"context"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/session"
)

// ListingService is the thin CRUD layer over the store for listings.
type ListingService struct {
	store    *Store
	listings *repository.ListingRepository
}

func NewListingService(store *Store, listings *repository.ListingRepository) *ListingService {
	return &ListingService{store: store, listings: listings}
}

func (s *ListingService) Create(ctx context.Context, sess *session.Session, title, description string) (*entity.Listing, error) {
	return s.store.CreateListing(ctx, sess, NewListing{Title: title, Description: description})
}

func (s *ListingService) Get(ctx context.Context, sess *session.Session, id string) (*entity.Listing, error) {
	return sess.Loaders.Listing.Load(ctx, id)
}

func (s *ListingService) Update(ctx context.Context, sess *session.Session, id, title, description string) (*entity.Listing, error) {
	return s.store.UpdateListing(ctx, sess, ListingPatch{
		ID:          id,
		Title:       &title,
		Description: &description,
	})
}

func (s *ListingService) Delete(ctx context.Context, sess *session.Session, id string) error {
	deleted := true
	_, err := s.store.UpdateListing(ctx, sess, ListingPatch{ID: id, IsDeleted: &deleted})
	return err
}

func (s *ListingService) List(ctx context.Context) ([]*entity.Listing, error) {
	return s.listings.ListActive(ctx)
}
