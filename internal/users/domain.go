package users

import (
	"time"

	"github.com/bootboard/bootboard/internal/auth"
)

// Member is the admin view of an identity.
type Member struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func memberFrom(identity auth.Identity) Member {
	return Member{
		ID:        identity.ID,
		Username:  identity.Subject,
		Nickname:  identity.DisplayName,
		Role:      identity.Role,
		CreatedAt: identity.CreatedAt,
	}
}
