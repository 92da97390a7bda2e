package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the owner account a sales record is ingested under. Account
// management lives outside this service; the pipeline only reads users to
// resolve ownership.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
