package model

import "time"

// AdminAction enumerates audited administrative transitions.
type AdminAction string

const (
	ActionApproveUser AdminAction = "APPROVE_USER"
	ActionRejectUser  AdminAction = "REJECT_USER"
	ActionDeleteUser  AdminAction = "DELETE_USER"
	ActionSetRole     AdminAction = "SET_ROLE"
)

// AdminActionLog is an append-only row of `admin_action_logs`.  It is
// written in the same transaction as the state change it records.
type AdminActionLog struct {
	ID           string      `json:"id"`
	ActorID      string      `json:"actor_id"`
	TargetUserID *string     `json:"target_user_id"`
	Action       AdminAction `json:"action"`
	BeforeRole   *string     `json:"before_role"`
	AfterRole    *string     `json:"after_role"`
	CreatedAt    time.Time   `json:"created_at"`
}

// LogUser is the compact projection of a user joined into a log listing.
type LogUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// AdminLogEntry is a log row with its actor and optional target joined in.
type AdminLogEntry struct {
	AdminActionLog
	Actor  LogUser  `json:"actor"`
	Target *LogUser `json:"target"`
}
