// internal/registration/domain.go
package registration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports that no registration link exists for a composite key.
var ErrNotFound = errors.New("registration not found")

// Record links one registrable entity (catalog item or session) to one
// remote person. At most one record exists per (registrable, person) pair.
type Record struct {
	ID            uuid.UUID `json:"id" db:"id"`
	RegistrableID uuid.UUID `json:"registrable_id" db:"registrable_id"`
	PersonID      int       `json:"person_id" db:"person_id"`
	// UpdatedAt is the remote system's last-changed instant, not ours.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	SyncedAt  time.Time `json:"synced_at" db:"synced_at"`
}

// FeedOutcome summarises one row of a feed pull. Code is the event or
// product code the row referred to.
type FeedOutcome struct {
	Code     string `json:"code"`
	PersonID int    `json:"person_id"`
	Outcome  string `json:"outcome"`
}
