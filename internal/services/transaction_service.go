package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/uuid"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db    *gorm.DB
	guard Guard
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, guard Guard) TransactionServicer {
	return &transactionService{db: db, guard: guard}
}

// CreateTransaction records a transaction under a budget the user owns.
// Ownership is confirmed before anything is written.
func (s *transactionService) CreateTransaction(ctx context.Context, userID, budgetID string, in TransactionInput) (*models.Transaction, error) {
	budget, err := s.guard.Budget(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" || in.Date.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Missing required fields: description, amount, date")
	}
	if err := validateAmountScale(in.Amount); err != nil {
		return nil, err
	}

	txType := in.Type
	if txType == "" {
		txType = models.TransactionTypeExpense
	}
	if !txType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Type must be income or expense")
	}

	category, err := s.resolveCategory(ctx, userID, in.Category)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:      userID,
		BudgetID:    budget.ID,
		Category:    category,
		Description: description,
		Amount:      in.Amount,
		Type:        txType,
		Date:        in.Date,
		Notes:       in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.reload(ctx, tx.ID)
}

// GetBudgetTransactions lists a budget's transactions, most recent date first.
func (s *transactionService) GetBudgetTransactions(ctx context.Context, userID, budgetID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	budget, err := s.guard.Budget(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("budget_id = ?", budget.ID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	var transactions []models.Transaction
	err = base.Order("date DESC").Order("created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransactionByID returns a transaction that lives under the given budget.
func (s *transactionService) GetTransactionByID(ctx context.Context, userID, budgetID, transactionID string) (*models.Transaction, error) {
	return s.guard.Transaction(ctx, userID, budgetID, transactionID)
}

// UpdateTransaction applies a partial update and returns the persisted transaction.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, budgetID, transactionID string, p TransactionPatch) (*models.Transaction, error) {
	tx, err := s.guard.Transaction(ctx, userID, budgetID, transactionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if description := strings.TrimSpace(p.Description.Value); p.Description.Present() && description != "" {
		updates["description"] = description
	}
	if p.Amount.Present() {
		if err := validateAmountScale(p.Amount.Value); err != nil {
			return nil, err
		}
		updates["amount"] = p.Amount.Value
	}
	if p.Type.Present() && p.Type.Value != "" {
		if !p.Type.Value.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Type must be income or expense")
		}
		updates["type"] = p.Type.Value
	}
	if p.Category.Present() && strings.TrimSpace(p.Category.Value) != "" {
		category, err := s.resolveCategory(ctx, userID, p.Category.Value)
		if err != nil {
			return nil, err
		}
		updates["category"] = category
	}
	if p.Date.Present() && !p.Date.Value.IsZero() {
		updates["date"] = p.Date.Value
	}
	if p.Notes.Set {
		updates["notes"] = p.Notes.Ptr()
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(tx).Updates(updates).Error; err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return s.reload(ctx, tx.ID)
}

// DeleteTransaction removes a transaction that lives under the given budget.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, budgetID, transactionID string) error {
	tx, err := s.guard.Transaction(ctx, userID, budgetID, transactionID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(tx).Error; err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// resolveCategory normalizes a transaction's category. Empty means "other";
// a UUID must name a category the user owns; anything else is a free label.
func (s *transactionService) resolveCategory(ctx context.Context, userID, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return models.DefaultTransactionCategory, nil
	}
	if !uuid.IsValid(category) {
		return category, nil
	}
	owned, err := s.guard.Category(ctx, userID, category)
	if err != nil {
		return "", err
	}
	return owned.ID, nil
}

func (s *transactionService) reload(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrTransactionNotFound)
	}
	return &tx, nil
}
