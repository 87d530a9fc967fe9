package handlers

import (
	"github.com/gin-gonic/gin"

	"budgettracker/internal/middleware"
)

// Handlers groups every handler the API serves.
type Handlers struct {
	Auth        *AuthHandler
	Budget      *BudgetHandler
	Category    *CategoryHandler
	Transaction *TransactionHandler
	Health      *HealthHandler
}

// RegisterRoutes mounts the auth surface, the email callback and the
// protected resource API. Every resource route sits behind auth.Authorize.
func (h *Handlers) RegisterRoutes(r gin.IRouter, auth *middleware.Authenticator) {
	r.GET("/auth/callback", h.Auth.Callback)

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)
	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)
	api.GET("/logout", h.Auth.Logout)
	api.POST("/logout", h.Auth.Logout)

	protected := api.Group("")
	protected.Use(auth.Authorize())

	protected.GET("/session", h.Auth.Session)

	budgets := protected.Group("/budgets")
	budgets.GET("", h.Budget.GetBudgets)
	budgets.POST("", h.Budget.CreateBudget)
	budgets.GET("/:id", h.Budget.GetBudget)
	budgets.PATCH("/:id", h.Budget.UpdateBudget)
	budgets.DELETE("/:id", h.Budget.DeleteBudget)
	budgets.GET("/:id/summary", h.Budget.GetBudgetSummary)

	budgets.GET("/:id/transactions", h.Transaction.GetTransactions)
	budgets.POST("/:id/transactions", h.Transaction.CreateTransaction)
	budgets.GET("/:id/transactions/:transactionId", h.Transaction.GetTransaction)
	budgets.PATCH("/:id/transactions/:transactionId", h.Transaction.UpdateTransaction)
	budgets.DELETE("/:id/transactions/:transactionId", h.Transaction.DeleteTransaction)

	categories := protected.Group("/categories")
	categories.GET("", h.Category.GetCategories)
	categories.POST("", h.Category.CreateCategory)
	categories.GET("/:id", h.Category.GetCategory)
	categories.PATCH("/:id", h.Category.UpdateCategory)
	categories.DELETE("/:id", h.Category.DeleteCategory)
}
