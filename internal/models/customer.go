package models

import "time"

type Customer struct {
	CustomerID  string    `json:"customer_id" db:"customer_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Gender      string    `json:"gender" db:"gender"`
	NIC         string    `json:"nic" db:"nic"`
	DateOfBirth string    `json:"date_of_birth" db:"date_of_birth"`
	ContactID   string    `json:"contact_id" db:"contact_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
