package services

import (
	"context"

	"github.com/shopspring/decimal"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/patch"
)

// Guard confirms that a user owns a resource before it is read or changed.
// Absent and not-owned resources are indistinguishable: both are not found.
type Guard interface {
	Budget(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	Transaction(ctx context.Context, userID, budgetID, transactionID string) (*models.Transaction, error)
	Category(ctx context.Context, userID, categoryID string) (*models.Category, error)
	CategoryUnused(ctx context.Context, categoryID string) error
}

// BudgetInput holds the fields accepted when creating a budget.
type BudgetInput struct {
	Name        string
	Amount      decimal.Decimal
	Period      models.BudgetPeriod
	StartDate   *models.Date
	EndDate     *models.Date
	Description *string
}

// BudgetPatch is a partial budget update. Name, amount, period and start
// date are applied only when present and non-null; description and end date
// are cleared by an explicit null.
type BudgetPatch struct {
	Name        patch.Field[string]              `json:"name" swaggertype:"string"`
	Amount      patch.Field[decimal.Decimal]     `json:"amount" swaggertype:"number"`
	Period      patch.Field[models.BudgetPeriod] `json:"period" swaggertype:"string" enums:"monthly,yearly,custom"`
	StartDate   patch.Field[models.Date]         `json:"start_date" swaggertype:"string" format:"date"`
	EndDate     patch.Field[models.Date]         `json:"end_date" swaggertype:"string" format:"date"`
	Description patch.Field[string]              `json:"description" swaggertype:"string"`
}

// BudgetSummary holds the running sums of a budget's transactions.
type BudgetSummary struct {
	BudgetID         string          `json:"budget_id"`
	Amount           decimal.Decimal `json:"amount"`
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Net              decimal.Decimal `json:"net"`
	Remaining        decimal.Decimal `json:"remaining"`
	TransactionCount int64           `json:"transaction_count"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID string, in BudgetInput) (*models.Budget, error)
	GetUserBudgets(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	UpdateBudget(ctx context.Context, userID, budgetID string, p BudgetPatch) (*models.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID string) error
	GetBudgetSummary(ctx context.Context, userID, budgetID string) (*BudgetSummary, error)
}

// CategoryInput holds the fields accepted when creating a category.
type CategoryInput struct {
	Name  string
	Color string
}

// CategoryPatch is a partial category update. An empty name is ignored.
type CategoryPatch struct {
	Name  patch.Field[string] `json:"name" swaggertype:"string"`
	Color patch.Field[string] `json:"color" swaggertype:"string"`
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, userID string, in CategoryInput) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID string, p CategoryPatch) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
}

// TransactionInput holds the fields accepted when creating a transaction.
type TransactionInput struct {
	Description string
	Amount      decimal.Decimal
	Type        models.TransactionType
	Category    string
	Date        models.Date
	Notes       *string
}

// TransactionPatch is a partial transaction update. Description, type,
// category and date are applied when present and non-empty, amount when
// present, and notes is cleared by an explicit null.
type TransactionPatch struct {
	Description patch.Field[string]                 `json:"description" swaggertype:"string"`
	Amount      patch.Field[decimal.Decimal]        `json:"amount" swaggertype:"number"`
	Type        patch.Field[models.TransactionType] `json:"type" swaggertype:"string" enums:"income,expense"`
	Category    patch.Field[string]                 `json:"category" swaggertype:"string"`
	Date        patch.Field[models.Date]            `json:"date" swaggertype:"string" format:"date"`
	Notes       patch.Field[string]                 `json:"notes" swaggertype:"string"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID, budgetID string, in TransactionInput) (*models.Transaction, error)
	GetBudgetTransactions(ctx context.Context, userID, budgetID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, userID, budgetID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, budgetID, transactionID string, p TransactionPatch) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, budgetID, transactionID string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
