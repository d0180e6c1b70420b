package domain

import "time"

// User is the local replica of a directory member.
type User struct {
	ID           string
	ExternalID   string
	Name         string
	Email        string
	Mobile       string
	Avatar       string
	DepartmentID *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
