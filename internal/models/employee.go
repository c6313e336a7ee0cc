package models

import "time"

// Employee roles
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleAgent   = "Agent"
)

type Employee struct {
	EmployeeID  string    `json:"employee_id" db:"employee_id"`
	Role        string    `json:"role" db:"role"`
	Username    string    `json:"username" db:"username"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	NIC         string    `json:"nic" db:"nic"`
	Gender      string    `json:"gender" db:"gender"`
	DateOfBirth string    `json:"date_of_birth" db:"date_of_birth"`
	BranchID    string    `json:"branch_id" db:"branch_id"`
	ContactID   string    `json:"contact_id" db:"contact_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Contact is shared between employees, customers and branches; the owning
// row references it by contact_id.
type Contact struct {
	ContactID  string `json:"contact_id" db:"contact_id"`
	Type       string `json:"type" db:"type"` // employee, customer or branch
	ContactNo1 string `json:"contact_no_1" db:"contact_no_1"`
	ContactNo2 string `json:"contact_no_2,omitempty" db:"contact_no_2"`
	Address    string `json:"address" db:"address"`
	Email      string `json:"email" db:"email"`
}
