package repository

import (
	"context"
	"database/sql"

	"github.com/modelboard/webapp/app/entity"
)

const listingColumns = `id, title, description, created_by_id, updated_by_id, created_date, updated_date, is_deleted`

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func scanListing(row *sql.Row) (*entity.Listing, error) {
	listing := &entity.Listing{}
	err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Description,
		&listing.CreatedByID,
		&listing.UpdatedByID,
		&listing.CreatedDate,
		&listing.UpdatedDate,
		&listing.IsDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	query := `
		INSERT INTO listings (id, title, description, created_by_id, updated_by_id, created_date, updated_date, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		listing.ID,
		listing.Title,
		listing.Description,
		listing.CreatedByID,
		listing.UpdatedByID,
		listing.CreatedDate,
		listing.UpdatedDate,
		listing.IsDeleted,
	)
	return err
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*entity.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings WHERE id = ? AND is_deleted = 0
	`
	return scanListing(r.db.QueryRowContext(ctx, query, id))
}

func (r *ListingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	query := `
		UPDATE listings SET
			title = ?,
			description = ?,
			updated_by_id = ?,
			updated_date = ?,
			is_deleted = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		listing.Title,
		listing.Description,
		listing.UpdatedByID,
		listing.UpdatedDate,
		listing.IsDeleted,
		listing.ID,
	)
	return err
}

func (r *ListingRepository) ListActive(ctx context.Context) ([]*entity.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings WHERE is_deleted = 0 ORDER BY created_date DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*entity.Listing
	for rows.Next() {
		listing := &entity.Listing{}
		if err := rows.Scan(
			&listing.ID,
			&listing.Title,
			&listing.Description,
			&listing.CreatedByID,
			&listing.UpdatedByID,
			&listing.CreatedDate,
			&listing.UpdatedDate,
			&listing.IsDeleted,
		); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}
