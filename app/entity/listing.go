package entity

import "time"

type Listing struct {
	ID          string
	Title       string
	Description string
	CreatedByID string
	UpdatedByID string
	CreatedDate time.Time
	UpdatedDate time.Time
	IsDeleted   bool
}
