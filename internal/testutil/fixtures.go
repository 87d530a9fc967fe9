package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgettracker/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a confirmed user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a confirmed user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	confirmedAt := time.Now()
	user := &models.User{
		Email:            email,
		Password:         string(hash),
		FullName:         "Test User",
		EmailConfirmedAt: &confirmedAt,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBudget creates a monthly budget of 1000.00 starting today.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:    userID,
		Name:      fmt.Sprintf("Test Budget %d", nextID()),
		Amount:    decimal.NewFromInt(1000),
		Period:    models.BudgetPeriodMonthly,
		StartDate: models.Today(),
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()
	return CreateTestCategoryWithName(t, db, userID, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryWithName creates a category with the given name.
func CreateTestCategoryWithName(t *testing.T, db *gorm.DB, userID, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Color:  models.DefaultCategoryColor,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction dated today. amount is a decimal literal like "12.50".
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, budgetID string, txType models.TransactionType, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		BudgetID:    budgetID,
		Category:    models.DefaultTransactionCategory,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Amount:      decimal.RequireFromString(amount),
		Type:        txType,
		Date:        models.Today(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
