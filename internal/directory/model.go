package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Role      Role
	Specialty *string
	Active    bool
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var ErrUserNotFound = errors.New("user not found")

// Directory resolves user identities for the scheduling core.
// Authentication itself happens elsewhere.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// ListProviders returns active, verified providers. A non-empty
	// specialty filters by substring match; when no specialist matches,
	// general practitioners are returned as a fallback.
	ListProviders(ctx context.Context, specialty string) ([]User, error)
}
