package profile

import "time"

// DefaultDisplayName signs reports for practitioners without a profile name.
const DefaultDisplayName = "Médico"

// maxNameLength bounds full_name.
const maxNameLength = 200

type Profile struct {
	UserID    string    `db:"user_id" json:"user_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
