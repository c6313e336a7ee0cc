package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/microbank/backoffice/internal/models"
)

type BranchService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// CreateBranchRequest represents the branch creation payload
// @Description Branch creation request structure
type CreateBranchRequest struct {
	Name      string `json:"name" validate:"required,min=2" example:"Galle Main"`
	ContactNo string `json:"contact_no" validate:"required,min=10" example:"0912223344"`
	Email     string `json:"email" validate:"required,email" example:"galle@microbank.example"`
	Address   string `json:"address" validate:"required" example:"45 Lighthouse Rd, Galle"`
}

func NewBranchService(db *sql.DB) *BranchService {
	return &BranchService{db: db, validator: NewValidationHelper()}
}

// ListBranches returns all branches
// @Summary List branches
// @Tags branches
// @Produce json
// @Success 200 {array} models.Branch
// @Failure 500 {string} string "Internal server error"
// @Router /branches [get]
func (s *BranchService) ListBranches(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT branch_id, name, contact_id, created_at FROM branch ORDER BY branch_id`)
	if err != nil {
		log.Printf("[BRANCH] Branch listing failed: %v", err)
		SendErrorResponse(w, "Failed to list branches", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	branches := []models.Branch{}
	for rows.Next() {
		var b models.Branch
		if err := rows.Scan(&b.BranchID, &b.Name, &b.ContactID, &b.CreatedAt); err != nil {
			log.Printf("[BRANCH] Branch row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list branches", http.StatusInternalServerError, nil)
			return
		}
		branches = append(branches, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(branches)
}

// CreateBranch creates a new branch
// @Summary Create branch
// @Description Create a branch with contact details; administrators only
// @Tags branches
// @Accept json
// @Produce json
// @Param request body CreateBranchRequest true "Branch creation request"
// @Success 200 {object} models.Branch
// @Failure 400 {string} string "Invalid request"
// @Failure 409 {string} string "Branch name already exists"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/branches [post]
func (s *BranchService) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[BRANCH] Branch validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[BRANCH] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM branch WHERE name = $1)`, req.Name).Scan(&exists); err != nil {
		log.Printf("[BRANCH] Uniqueness check failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "Branch name already exists", http.StatusConflict, nil)
		return
	}

	contactID, err := nextSequentialID(tx, "contact", "contact_id", "CT")
	if err != nil {
		log.Printf("[BRANCH] Contact ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO contact (contact_id, type, contact_no_1, address, email)
		VALUES ($1, 'branch', $2, $3, $4)`,
		contactID, req.ContactNo, req.Address, req.Email); err != nil {
		log.Printf("[BRANCH] Contact creation failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}

	branchID, err := nextSequentialID(tx, "branch", "branch_id", "BR")
	if err != nil {
		log.Printf("[BRANCH] Branch ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO branch (branch_id, name, contact_id, created_at)
		VALUES ($1, $2, $3, NOW())`,
		branchID, req.Name, contactID); err != nil {
		log.Printf("[BRANCH] Branch creation failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[BRANCH] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to create branch", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BRANCH] Branch created - ID: %s, Name: %s", branchID, req.Name)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Branch{BranchID: branchID, Name: req.Name, ContactID: contactID})
}

// DeleteBranch removes an empty branch
// @Summary Delete branch
// @Description Delete a branch with no employees or accounts; administrators only
// @Tags branches
// @Produce json
// @Success 200 {object} map[string]string "Branch deleted"
// @Failure 400 {string} string "Branch still referenced"
// @Failure 404 {string} string "Branch not found"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/branches/{id} [delete]
func (s *BranchService) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "id")

	var inUse bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM employee WHERE branch_id = $1)
		    OR EXISTS(SELECT 1 FROM account WHERE branch_id = $1)`,
		branchID).Scan(&inUse)
	if err != nil {
		log.Printf("[BRANCH] Reference check failed for %s: %v", branchID, err)
		SendErrorResponse(w, "Failed to delete branch", http.StatusInternalServerError, nil)
		return
	}
	if inUse {
		SendErrorResponse(w, "Branch still has employees or accounts", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.Exec(`DELETE FROM branch WHERE branch_id = $1`, branchID)
	if err != nil {
		log.Printf("[BRANCH] Deletion failed for %s: %v", branchID, err)
		SendErrorResponse(w, "Failed to delete branch", http.StatusInternalServerError, nil)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[BRANCH] Branch %s deleted", branchID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Branch deleted"})
}
