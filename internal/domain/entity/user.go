package entity

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID           string    `json:"id" firestore:"id"`
	Email        string    `json:"email" firestore:"email"`
	Username     string    `json:"username" firestore:"username"`
	Role         string    `json:"role" firestore:"role"`
	WorkspaceIDs []string  `json:"workspace_ids" firestore:"workspaceIds"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}

// IsSupport reports whether the user has an elevated role for ticket
// handling.
func (u *User) IsSupport() bool {
	return u.Role == RoleAdmin
}

func (u *User) InWorkspace(workspaceID string) bool {
	for _, id := range u.WorkspaceIDs {
		if id == workspaceID {
			return true
		}
	}
	return false
}
