package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/microbank/backoffice/internal/models"
)

// minCustomerAge is the minimum age for opening a customer profile.
const minCustomerAge = 18

type CustomerService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// RegisterCustomerRequest represents the customer registration payload
// @Description Customer registration request structure
type RegisterCustomerRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2" example:"Nimal"`
	LastName    string `json:"last_name" validate:"required,min=2" example:"Perera"`
	Gender      string `json:"gender" validate:"required,oneof=Male Female" example:"Male"`
	NIC         string `json:"nic" validate:"required,min=10" example:"851234567V"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02" example:"1985-06-20"`
	ContactNo   string `json:"contact_no" validate:"required,min=10" example:"0712345678"`
	Email       string `json:"email" validate:"omitempty,email" example:"nimal@example.com"`
	Address     string `json:"address" validate:"required" example:"8 Temple Rd, Matara"`
}

func NewCustomerService(db *sql.DB) *CustomerService {
	return &CustomerService{db: db, validator: NewValidationHelper()}
}

// RegisterCustomer creates a new customer profile
// @Summary Register customer
// @Description Register a customer with contact details; applicants must be at least 18
// @Tags customers
// @Accept json
// @Produce json
// @Param request body RegisterCustomerRequest true "Customer registration request"
// @Success 200 {object} models.Customer
// @Failure 400 {string} string "Invalid request or under-age applicant"
// @Failure 409 {string} string "NIC already registered"
// @Failure 500 {string} string "Internal server error"
// @Router /agent/customers/register [post]
func (s *CustomerService) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req RegisterCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[CUSTOMER] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		SendErrorResponse(w, "Invalid date of birth", http.StatusBadRequest, nil)
		return
	}
	if ageInYears(dob, time.Now()) < minCustomerAge {
		log.Printf("[CUSTOMER] Registration rejected - applicant under %d (NIC %s)", minCustomerAge, req.NIC)
		SendErrorResponse(w, "Customer must be at least 18 years old", http.StatusBadRequest, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[CUSTOMER] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM customer WHERE nic = $1)`, req.NIC).Scan(&exists); err != nil {
		log.Printf("[CUSTOMER] NIC check failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "NIC already registered", http.StatusConflict, nil)
		return
	}

	contactID, err := nextSequentialID(tx, "contact", "contact_id", "CT")
	if err != nil {
		log.Printf("[CUSTOMER] Contact ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO contact (contact_id, type, contact_no_1, address, email)
		VALUES ($1, 'customer', $2, $3, $4)`,
		contactID, req.ContactNo, req.Address, req.Email); err != nil {
		log.Printf("[CUSTOMER] Contact creation failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}

	customerID, err := nextSequentialID(tx, "customer", "customer_id", "CUST")
	if err != nil {
		log.Printf("[CUSTOMER] Customer ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO customer (customer_id, first_name, last_name, gender, nic, date_of_birth, contact_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		customerID, req.FirstName, req.LastName, req.Gender, req.NIC, req.DateOfBirth, contactID); err != nil {
		log.Printf("[CUSTOMER] Customer creation failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[CUSTOMER] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CUSTOMER] Customer registered - ID: %s, NIC: %s", customerID, req.NIC)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Customer{
		CustomerID:  customerID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Gender:      req.Gender,
		NIC:         req.NIC,
		DateOfBirth: req.DateOfBirth,
		ContactID:   contactID,
	})
}

// ListCustomers returns all customers
// @Summary List customers
// @Tags customers
// @Produce json
// @Success 200 {array} models.Customer
// @Failure 500 {string} string "Internal server error"
// @Router /agent/customers [get]
func (s *CustomerService) ListCustomers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT customer_id, first_name, last_name, gender, nic, date_of_birth, contact_id, created_at
		FROM customer ORDER BY customer_id`)
	if err != nil {
		log.Printf("[CUSTOMER] Customer listing failed: %v", err)
		SendErrorResponse(w, "Failed to list customers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.CustomerID, &c.FirstName, &c.LastName, &c.Gender, &c.NIC,
			&c.DateOfBirth, &c.ContactID, &c.CreatedAt); err != nil {
			log.Printf("[CUSTOMER] Customer row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list customers", http.StatusInternalServerError, nil)
			return
		}
		customers = append(customers, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(customers)
}

// ageInYears returns whole years between dob and now.
func ageInYears(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}
