package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertListingQuery = `(?s)INSERT INTO listings \(id, title, description, created_by_id, updated_by_id, created_date, updated_date, is_deleted\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?\)`
	findListingQuery   = `(?s)SELECT id, title, description, created_by_id, updated_by_id, created_date, updated_date, is_deleted\s+FROM listings WHERE id = \? AND is_deleted = 0`
	listListingsQuery  = `(?s)SELECT id, title, description, created_by_id, updated_by_id, created_date, updated_date, is_deleted\s+FROM listings WHERE is_deleted = 0 ORDER BY created_date DESC`
)

var listingColumns = []string{
	"id",
	"title",
	"description",
	"created_by_id",
	"updated_by_id",
	"created_date",
	"updated_date",
	"is_deleted",
}

func TestListingRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewListingRepository(db)
	now := time.Now()
	listing := &entity.Listing{
		ID:          "listing-id",
		Title:       "Vintage synth",
		Description: "Works, minor scratches.",
		CreatedByID: "user-id",
		UpdatedByID: "user-id",
		CreatedDate: now,
		UpdatedDate: now,
	}

	mock.ExpectExec(insertListingQuery).
		WithArgs(
			listing.ID,
			listing.Title,
			listing.Description,
			listing.CreatedByID,
			listing.UpdatedByID,
			listing.CreatedDate,
			listing.UpdatedDate,
			listing.IsDeleted,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), listing); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListingRepository_FindByID_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewListingRepository(db)

	mock.ExpectQuery(findListingQuery).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(listingColumns))

	listing, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if listing != nil {
		t.Fatalf("expected nil listing, got %+v", listing)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListingRepository_ListActive(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewListingRepository(db)
	now := time.Now()

	mock.ExpectQuery(listListingsQuery).
		WillReturnRows(sqlmock.NewRows(listingColumns).
			AddRow("newer", "Newer", "", "u", "u", now, now, false).
			AddRow("older", "Older", "", "u", "u", now.Add(-time.Hour), now.Add(-time.Hour), false))

	listings, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listings) != 2 || listings[0].ID != "newer" || listings[1].ID != "older" {
		t.Fatalf("unexpected listings: %+v", listings)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
