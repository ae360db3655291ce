package models

import "time"

type AdminAction string

const (
	AdminActionBan      AdminAction = "ban"
	AdminActionActivate AdminAction = "activate"
)

func (a AdminAction) Valid() bool {
	return a == AdminActionBan || a == AdminActionActivate
}

// ActionFor returns the action that flips the user's current status.
func ActionFor(u User) AdminAction {
	if u.IsActive {
		return AdminActionBan
	}
	return AdminActionActivate
}

// PendingAction pairs a target user with an action for the lifetime of one
// confirmation dialog.
type PendingAction struct {
	Token     string      `json:"token"`
	Action    AdminAction `json:"action"`
	Target    User        `json:"target"`
	Page      int         `json:"page"`
	CreatedAt time.Time   `json:"created_at"`
}
