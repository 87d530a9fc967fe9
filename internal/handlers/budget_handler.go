package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"budgettracker/internal/models"
	"budgettracker/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name        string              `json:"name" binding:"required,max=100"`
	Amount      *decimal.Decimal    `json:"amount" binding:"required" swaggertype:"number"`
	Period      models.BudgetPeriod `json:"period" binding:"required,budget_period" enums:"monthly,yearly,custom"`
	StartDate   *models.Date        `json:"start_date" swaggertype:"string" format:"date"`
	EndDate     *models.Date        `json:"end_date" swaggertype:"string" format:"date"`
	Description *string             `json:"description" binding:"omitempty,max=500"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a new budget. start_date defaults to today.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidBody(err))
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), userID, services.BudgetInput{
		Name:        req.Name,
		Amount:      *req.Amount,
		Period:      req.Period,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionCreate, "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"name": budget.Name, "amount": budget.Amount, "period": budget.Period})

	c.JSON(http.StatusCreated, budget)
}

// GetBudgets handles listing budgets for the authenticated user.
// @Summary     Get budgets
// @Description List the authenticated user's budgets, newest first
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page (max 100)"
// @Success     200 {array}  models.Budget "Budgets"
// @Header      200 {integer} X-Total-Count "Total number of budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
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

	result, err := h.budgetService.GetUserBudgets(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondWithList(c, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, budget)
}

// UpdateBudget handles a partial update of a budget.
// @Summary     Update budget
// @Description Apply the fields present in the body. A null end_date or description clears it.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Budget ID"
// @Param       request body services.BudgetPatch true "Fields to change"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [patch]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req services.BudgetPatch
	changes, err := bindPatch(c, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.UpdateBudget(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionUpdate, "budget", budget.ID, c.ClientIP(),
		changes)

	c.JSON(http.StatusOK, budget)
}

// DeleteBudget handles deleting a budget and its transactions.
// @Summary     Delete budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} SuccessResponse "Budget deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID := c.Param("id")
	if err := h.budgetService.DeleteBudget(c.Request.Context(), userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionDelete, "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// GetBudgetSummary returns the running sums of a budget's transactions.
// @Summary     Get budget summary
// @Description Income, expense, net and remaining for a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetSummary "Budget summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/summary [get]
func (h *BudgetHandler) GetBudgetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.budgetService.GetBudgetSummary(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
