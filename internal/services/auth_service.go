package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"jsmith"`       // Employee username
	Password string `json:"password" validate:"required,min=6" example:"secret"` // Employee password
}

// RegisterEmployeeRequest represents the employee registration payload
// @Description Employee registration request structure
type RegisterEmployeeRequest struct {
	Username    string `json:"username" validate:"required,min=3" example:"jsmith"`
	Password    string `json:"password" validate:"required,min=6" example:"secret123"`
	Role        string `json:"role" validate:"required,oneof=Admin Manager Agent" example:"Agent"`
	FirstName   string `json:"first_name" validate:"required,min=2" example:"Jane"`
	LastName    string `json:"last_name" validate:"required,min=2" example:"Smith"`
	NIC         string `json:"nic" validate:"required,min=10" example:"991234567V"`
	Gender      string `json:"gender" validate:"required,oneof=Male Female" example:"Female"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02" example:"1995-04-12"`
	BranchID    string `json:"branch_id" validate:"required" example:"BR001"`
	ContactNo   string `json:"contact_no" validate:"required,min=10" example:"0771234567"`
	Email       string `json:"email" validate:"required,email" example:"jane@example.com"`
	Address     string `json:"address" validate:"required" example:"12 Main St, Galle"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token    string          `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Employee models.Employee `json:"employee"`                                                // Authenticated employee
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

// Login authenticates an employee
// @Summary Login employee
// @Description Authenticate an employee with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Invalid credentials"
// @Failure 500 {string} string "Internal server error"
// @Router /login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var emp models.Employee
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT employee_id, role, username, first_name, last_name, branch_id, password
		FROM employee WHERE username = $1`,
		req.Username).Scan(&emp.EmployeeID, &emp.Role, &emp.Username, &emp.FirstName, &emp.LastName, &emp.BranchID, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] Employee not found for username: %s", req.Username)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)) != nil {
		log.Printf("[AUTH] Invalid password for employee: %s", req.Username)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(emp.EmployeeID, emp.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for employee %s: %v", emp.EmployeeID, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for employee %s (%s)", emp.EmployeeID, emp.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Employee: emp})
}

// Register creates a new employee account
// @Summary Register a new employee
// @Description Create an employee with contact details; administrators only
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterEmployeeRequest true "Registration request"
// @Success 200 {object} models.Employee "Registration successful"
// @Failure 400 {string} string "Invalid request"
// @Failure 409 {string} string "Username or NIC already exists"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)
	log.Printf("[AUTH] Employee registration attempt by %s from IP: %s", actor, r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterEmployeeRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Transaction start failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM employee WHERE username = $1 OR nic = $2)`,
		req.Username, req.NIC).Scan(&exists); err != nil {
		log.Printf("[AUTH] Uniqueness check failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		s.sendErrorResponse(w, "Username or NIC already exists", http.StatusConflict, nil)
		return
	}

	contactID, err := nextSequentialID(tx, "contact", "contact_id", "CT")
	if err != nil {
		log.Printf("[AUTH] Contact ID generation failed: %v", err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO contact (contact_id, type, contact_no_1, address, email)
		VALUES ($1, 'employee', $2, $3, $4)`,
		contactID, req.ContactNo, req.Address, req.Email); err != nil {
		log.Printf("[AUTH] Contact creation failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}

	employeeID, err := nextSequentialID(tx, "employee", "employee_id", "EMP")
	if err != nil {
		log.Printf("[AUTH] Employee ID generation failed: %v", err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO employee (employee_id, role, username, password, first_name, last_name, nic, gender, date_of_birth, branch_id, contact_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
		employeeID, req.Role, req.Username, string(hashedPassword), req.FirstName, req.LastName,
		req.NIC, req.Gender, req.DateOfBirth, req.BranchID, contactID); err != nil {
		log.Printf("[AUTH] Employee creation failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[AUTH] Transaction commit failed for %s: %v", req.Username, err)
		s.sendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Employee created - ID: %s, Username: %s, Role: %s", employeeID, req.Username, req.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Employee{
		EmployeeID: employeeID,
		Role:       req.Role,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NIC:        req.NIC,
		Gender:     req.Gender,
		BranchID:   req.BranchID,
		ContactID:  contactID,
	})
}

// ListUsers returns all employees
// @Summary List employees
// @Description All employees with branch and contact details; administrators only
// @Tags auth
// @Produce json
// @Success 200 {array} models.Employee
// @Failure 500 {string} string "Internal server error"
// @Router /admin/users [get]
func (s *AuthService) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT employee_id, role, username, first_name, last_name, nic, gender, branch_id, contact_id, created_at
		FROM employee ORDER BY employee_id`)
	if err != nil {
		log.Printf("[AUTH] Employee listing failed: %v", err)
		s.sendErrorResponse(w, "Failed to list employees", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		var emp models.Employee
		if err := rows.Scan(&emp.EmployeeID, &emp.Role, &emp.Username, &emp.FirstName, &emp.LastName,
			&emp.NIC, &emp.Gender, &emp.BranchID, &emp.ContactID, &emp.CreatedAt); err != nil {
			log.Printf("[AUTH] Employee row scan failed: %v", err)
			s.sendErrorResponse(w, "Failed to list employees", http.StatusInternalServerError, nil)
			return
		}
		employees = append(employees, emp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(employees)
}

// DeleteUser removes an employee account
// @Summary Delete employee
// @Description Delete an employee by ID; administrators only
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Employee deleted"
// @Failure 400 {string} string "Cannot delete own account"
// @Failure 404 {string} string "Employee not found"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/users/{id} [delete]
func (s *AuthService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	if targetID == actor {
		s.sendErrorResponse(w, "Cannot delete your own account", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.Exec(`DELETE FROM employee WHERE employee_id = $1`, targetID)
	if err != nil {
		log.Printf("[AUTH] Employee deletion failed for %s: %v", targetID, err)
		s.sendErrorResponse(w, "Failed to delete employee", http.StatusInternalServerError, nil)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		s.sendErrorResponse(w, "Employee not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[AUTH] Employee %s deleted by %s", targetID, actor)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Employee deleted"})
}

// Logout blacklists the presented token
// @Summary Logout employee
// @Description Logout and blacklist the current token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		token = strings.TrimPrefix(token, "Bearer ")

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

func generateJWT(employeeID, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   employeeID,
		"role": role,
		"exp":  time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
