package domain

import "time"

// Role enumerates operator roles accepted on the admin endpoints.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
	RoleViewer   Role = "VIEWER"
)

// Token represents issued authentication token metadata.
type Token struct {
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
