package domain

import "time"

// Department is the local replica of a directory department.
type Department struct {
	ID         string
	ExternalID string
	Name       string
	ParentID   *string
	Level      int
	Order      int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
