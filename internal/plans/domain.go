package plans

import (
	"time"

	"github.com/google/uuid"
)

// Plan represents a subscription plan with its feature and limit bundle.
type Plan struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	MaxUsers    int             `json:"max_users"`
	MaxAccounts int             `json:"max_accounts"`
	Features    map[string]bool `json:"features"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
