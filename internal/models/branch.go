package models

import "time"

type Branch struct {
	BranchID  string    `json:"branch_id" db:"branch_id"`
	Name      string    `json:"name" db:"name"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
