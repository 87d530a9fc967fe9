package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db    *gorm.DB
	guard Guard
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, guard Guard) BudgetServicer {
	return &budgetService{db: db, guard: guard}
}

// CreateBudget creates a budget. The start date defaults to today.
func (s *budgetService) CreateBudget(ctx context.Context, userID string, in BudgetInput) (*models.Budget, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Missing required fields: name, amount, period")
	}
	if err := validateBudgetAmount(in.Amount); err != nil {
		return nil, err
	}
	if !in.Period.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Period must be one of monthly, yearly, custom")
	}

	startDate := models.Today()
	if in.StartDate != nil {
		startDate = *in.StartDate
	}
	if err := validateBudgetDates(startDate, in.EndDate); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		UserID:      userID,
		Name:        name,
		Amount:      in.Amount,
		Period:      in.Period,
		StartDate:   startDate,
		EndDate:     in.EndDate,
		Description: in.Description,
	}
	if err := s.db.WithContext(ctx).Create(budget).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.reload(ctx, budget.ID)
}

// GetUserBudgets returns the user's budgets, newest first.
func (s *budgetService) GetUserBudgets(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Budget{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	var budgets []models.Budget
	if err := base.Order("created_at DESC").Order("id DESC").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	return s.guard.Budget(ctx, userID, budgetID)
}

// UpdateBudget applies a partial update and returns the persisted budget.
func (s *budgetService) UpdateBudget(ctx context.Context, userID, budgetID string, p BudgetPatch) (*models.Budget, error) {
	budget, err := s.guard.Budget(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if p.Name.Present() {
		name := strings.TrimSpace(p.Name.Value)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name cannot be empty")
		}
		updates["name"] = name
	}
	if p.Amount.Present() {
		if err := validateBudgetAmount(p.Amount.Value); err != nil {
			return nil, err
		}
		updates["amount"] = p.Amount.Value
	}
	if p.Period.Present() {
		if !p.Period.Value.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Period must be one of monthly, yearly, custom")
		}
		updates["period"] = p.Period.Value
	}
	if p.StartDate.Present() {
		updates["start_date"] = p.StartDate.Value
	}
	if p.EndDate.Set {
		updates["end_date"] = p.EndDate.Ptr()
	}
	if p.Description.Set {
		updates["description"] = p.Description.Ptr()
	}

	startDate := budget.StartDate
	if p.StartDate.Present() {
		startDate = p.StartDate.Value
	}
	endDate := budget.EndDate
	if p.EndDate.Set {
		endDate = p.EndDate.Ptr()
	}
	if err := validateBudgetDates(startDate, endDate); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return s.reload(ctx, budget.ID)
}

// DeleteBudget removes a budget together with its transactions.
func (s *budgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	budget, err := s.guard.Budget(ctx, userID, budgetID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("budget_id = ?", budget.ID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(budget).Error
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// GetBudgetSummary computes running sums over the budget's transactions.
// The budget's own amount is reported unchanged.
func (s *budgetService) GetBudgetSummary(ctx context.Context, userID, budgetID string) (*BudgetSummary, error) {
	budget, err := s.guard.Budget(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	var transactions []models.Transaction
	if err := s.db.WithContext(ctx).Select("amount", "type").Where("budget_id = ?", budget.ID).Find(&transactions).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, t := range transactions {
		switch t.Type {
		case models.TransactionTypeIncome:
			income = income.Add(t.Amount.Abs())
		default:
			expense = expense.Add(t.Amount.Abs())
		}
	}

	return &BudgetSummary{
		BudgetID:         budget.ID,
		Amount:           budget.Amount,
		Income:           income,
		Expense:          expense,
		Net:              income.Sub(expense),
		Remaining:        budget.Amount.Sub(expense).Add(income),
		TransactionCount: int64(len(transactions)),
	}, nil
}

func (s *budgetService) reload(ctx context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&budget).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrBudgetNotFound)
	}
	return &budget, nil
}

func validateBudgetAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be greater than 0")
	}
	return validateAmountScale(amount)
}

func validateAmountScale(amount decimal.Decimal) error {
	if !models.FitsMoneyScale(amount) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must have at most 2 decimal places")
	}
	return nil
}

func validateBudgetDates(start models.Date, end *models.Date) error {
	if end != nil && end.Before(start.Time) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "End date must not be before start date")
	}
	return nil
}
