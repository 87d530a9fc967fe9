package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/services"
)

// TransactionHandler handles the transactions nested under a budget.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// Category is either the ID of one of the user's categories or a free label.
type CreateTransactionRequest struct {
	Description string                 `json:"description" binding:"required,max=255"`
	Amount      *decimal.Decimal       `json:"amount" binding:"required" swaggertype:"number"`
	Type        models.TransactionType `json:"type" binding:"omitempty,transaction_type" enums:"income,expense"`
	Category    string                 `json:"category" binding:"max=100"`
	Date        string                 `json:"date" binding:"required,date_only" format:"date"`
	Notes       *string                `json:"notes" binding:"omitempty,max=1000"`
}

// CreateTransaction handles recording a transaction under a budget.
// @Summary     Create a transaction
// @Description Record a transaction. type defaults to expense and category to "other".
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Budget ID"
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidBody(err))
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tx, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, c.Param("id"), services.TransactionInput{
		Description: req.Description,
		Amount:      *req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Date:        date,
		Notes:       req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionCreate, "transaction", tx.ID, c.ClientIP(),
		map[string]interface{}{"budget_id": tx.BudgetID, "amount": tx.Amount, "type": tx.Type})

	c.JSON(http.StatusCreated, tx)
}

// GetTransactions lists a budget's transactions.
// @Summary     Get budget transactions
// @Description List a budget's transactions, most recent date first
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Budget ID"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page (max 100)"
// @Success     200 {array}  models.Transaction "Transactions"
// @Header      200 {integer} X-Total-Count "Total number of transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetBudgetTransactions(c.Request.Context(), userID, c.Param("id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondWithList(c, result)
}

// GetTransaction returns one transaction of a budget.
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string true "Budget ID"
// @Param       transactionId path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or transaction not found"
// @Router      /budgets/{id}/transactions/{transactionId} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.GetTransactionByID(c.Request.Context(), userID, c.Param("id"), c.Param("transactionId"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// UpdateTransaction applies a partial update to a transaction.
// @Summary     Update transaction
// @Description Apply the fields present in the body. A null notes clears it; an omitted notes is kept.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string                    true "Budget ID"
// @Param       transactionId path string                    true "Transaction ID"
// @Param       request       body services.TransactionPatch true "Fields to change"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget, transaction or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/transactions/{transactionId} [patch]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req services.TransactionPatch
	changes, err := bindPatch(c, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.UpdateTransaction(c.Request.Context(), userID, c.Param("id"), c.Param("transactionId"), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionUpdate, "transaction", tx.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, tx)
}

// DeleteTransaction removes a transaction from a budget.
// @Summary     Delete transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string true "Budget ID"
// @Param       transactionId path string true "Transaction ID"
// @Success     200 {object} SuccessResponse "Transaction deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or transaction not found"
// @Router      /budgets/{id}/transactions/{transactionId} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID := c.Param("transactionId")
	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, c.Param("id"), transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionDelete, "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
