package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/uuid"
)

// ownershipGuard looks resources up by id and owner in a single query, so
// there is no window between fetching a row and comparing its owner.
type ownershipGuard struct {
	db *gorm.DB
}

// NewOwnershipGuard creates a Guard backed by db.
func NewOwnershipGuard(db *gorm.DB) Guard {
	return &ownershipGuard{db: db}
}

// Budget returns the budget if userID owns it.
func (g *ownershipGuard) Budget(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	if !uuid.IsValid(budgetID) {
		return nil, apperrors.ErrBudgetNotFound
	}
	var budget models.Budget
	if err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrBudgetNotFound)
	}
	return &budget, nil
}

// Transaction checks the budget first, then that the transaction lives under
// that budget. A transaction filed under another budget is not found, even
// when the same user owns both.
func (g *ownershipGuard) Transaction(ctx context.Context, userID, budgetID, transactionID string) (*models.Transaction, error) {
	if _, err := g.Budget(ctx, userID, budgetID); err != nil {
		return nil, err
	}
	if !uuid.IsValid(transactionID) {
		return nil, apperrors.ErrTransactionNotFound
	}
	var tx models.Transaction
	if err := g.db.WithContext(ctx).Where("id = ? AND budget_id = ?", transactionID, budgetID).First(&tx).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrTransactionNotFound)
	}
	return &tx, nil
}

// Category returns the category if userID owns it.
func (g *ownershipGuard) Category(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	if !uuid.IsValid(categoryID) {
		return nil, apperrors.ErrCategoryNotFound
	}
	var category models.Category
	if err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrCategoryNotFound)
	}
	return &category, nil
}

// CategoryUnused fails with ErrCategoryInUse while any transaction references the category.
func (g *ownershipGuard) CategoryUnused(ctx context.Context, categoryID string) error {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("category = ?", categoryID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return apperrors.Internal(err)
	}
	if count > 0 {
		return apperrors.ErrCategoryInUse
	}
	return nil
}

func notFoundOr(err error, notFound *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperrors.Internal(err)
}
