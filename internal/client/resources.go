package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// Changes is a partial update body. Only the keys it holds are sent; a nil
// value is sent as JSON null and clears the field.
type Changes map[string]any

// NewBudget is the body for CreateBudget.
type NewBudget struct {
	Name        string              `json:"name"`
	Amount      decimal.Decimal     `json:"amount"`
	Period      models.BudgetPeriod `json:"period"`
	StartDate   *models.Date        `json:"start_date,omitempty"`
	EndDate     *models.Date        `json:"end_date,omitempty"`
	Description *string             `json:"description,omitempty"`
}

// NewTransaction is the body for CreateTransaction. Type and Category may be
// left empty to take the API's defaults.
type NewTransaction struct {
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"type,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Date        models.Date            `json:"date"`
	Notes       *string                `json:"notes,omitempty"`
}

// NewCategory is the body for CreateCategory.
type NewCategory struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ListBudgets returns the caller's budgets, newest first.
func (c *Client) ListBudgets(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	return list[models.Budget](ctx, c, "/api/budgets", page)
}

// CreateBudget creates a budget.
func (c *Client) CreateBudget(ctx context.Context, in NewBudget) (*models.Budget, error) {
	var budget models.Budget
	if _, err := c.do(ctx, http.MethodPost, "/api/budgets", in, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// GetBudget fetches one budget.
func (c *Client) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	if _, err := c.do(ctx, http.MethodGet, budgetPath(id), nil, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// UpdateBudget applies changes to a budget.
func (c *Client) UpdateBudget(ctx context.Context, id string, changes Changes) (*models.Budget, error) {
	var budget models.Budget
	if _, err := c.do(ctx, http.MethodPatch, budgetPath(id), changes, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// DeleteBudget deletes a budget and its transactions.
func (c *Client) DeleteBudget(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, budgetPath(id), nil, nil)
	return err
}

// BudgetSummary returns the running sums of a budget.
func (c *Client) BudgetSummary(ctx context.Context, id string) (*services.BudgetSummary, error) {
	var summary services.BudgetSummary
	if _, err := c.do(ctx, http.MethodGet, budgetPath(id)+"/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListTransactions returns a budget's transactions, latest date first.
func (c *Client) ListTransactions(ctx context.Context, budgetID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	return list[models.Transaction](ctx, c, budgetPath(budgetID)+"/transactions", page)
}

// CreateTransaction records a transaction under a budget.
func (c *Client) CreateTransaction(ctx context.Context, budgetID string, in NewTransaction) (*models.Transaction, error) {
	var tx models.Transaction
	if _, err := c.do(ctx, http.MethodPost, budgetPath(budgetID)+"/transactions", in, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransaction fetches one transaction of a budget.
func (c *Client) GetTransaction(ctx context.Context, budgetID, transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	if _, err := c.do(ctx, http.MethodGet, transactionPath(budgetID, transactionID), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction applies changes to a transaction.
func (c *Client) UpdateTransaction(ctx context.Context, budgetID, transactionID string, changes Changes) (*models.Transaction, error) {
	var tx models.Transaction
	if _, err := c.do(ctx, http.MethodPatch, transactionPath(budgetID, transactionID), changes, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// DeleteTransaction deletes a transaction.
func (c *Client) DeleteTransaction(ctx context.Context, budgetID, transactionID string) error {
	_, err := c.do(ctx, http.MethodDelete, transactionPath(budgetID, transactionID), nil, nil)
	return err
}

// ListCategories returns the caller's categories ordered by name.
func (c *Client) ListCategories(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return list[models.Category](ctx, c, "/api/categories", page)
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, in NewCategory) (*models.Category, error) {
	var category models.Category
	if _, err := c.do(ctx, http.MethodPost, "/api/categories", in, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategory fetches one category.
func (c *Client) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if _, err := c.do(ctx, http.MethodGet, categoryPath(id), nil, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory applies changes to a category.
func (c *Client) UpdateCategory(ctx context.Context, id string, changes Changes) (*models.Category, error) {
	var category models.Category
	if _, err := c.do(ctx, http.MethodPatch, categoryPath(id), changes, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory deletes a category that no transaction uses.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, categoryPath(id), nil, nil)
	return err
}

// list fetches a bare JSON array and rebuilds the page from the total header.
func list[T any](ctx context.Context, c *Client, path string, page pagination.PageRequest) (*pagination.PageResponse[T], error) {
	query := url.Values{}
	if page.Page > 0 {
		query.Set("page", strconv.Itoa(page.Page))
	}
	if page.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(page.PageSize))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var items []T
	header, err := c.do(ctx, http.MethodGet, path, nil, &items)
	if err != nil {
		return nil, err
	}

	total := int64(len(items))
	if raw := header.Get(pagination.TotalHeader); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", pagination.TotalHeader, err)
		}
		total = n
	}

	page.Defaults()
	resp := pagination.NewPageResponse(items, page.Page, page.PageSize, total)
	return &resp, nil
}

func budgetPath(id string) string {
	return "/api/budgets/" + url.PathEscape(id)
}

func transactionPath(budgetID, transactionID string) string {
	return budgetPath(budgetID) + "/transactions/" + url.PathEscape(transactionID)
}

func categoryPath(id string) string {
	return "/api/categories/" + url.PathEscape(id)
}
