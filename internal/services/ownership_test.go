package services

import (
	"context"
	"testing"

	"budgettracker/internal/models"
	"budgettracker/internal/testutil"
	"budgettracker/internal/uuid"
)

func TestOwnershipGuard_Budget(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	guard := NewOwnershipGuard(db)

	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, owner.ID)

	t.Run("owner", func(t *testing.T) {
		got, err := guard.Budget(ctx, owner.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if got.ID != budget.ID {
			t.Errorf("expected budget %s, got %s", budget.ID, got.ID)
		}
	})

	t.Run("not_owner_is_not_found", func(t *testing.T) {
		_, err := guard.Budget(ctx, other.ID, budget.ID)
		testutil.AssertHidden(t, err, "BUDGET_NOT_FOUND", owner.ID, budget.Name)
	})

	t.Run("absent_is_not_found", func(t *testing.T) {
		_, err := guard.Budget(ctx, owner.ID, uuid.New())
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})

	t.Run("malformed_id_is_not_found", func(t *testing.T) {
		_, err := guard.Budget(ctx, owner.ID, "42")
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestOwnershipGuard_Transaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	guard := NewOwnershipGuard(db)

	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budgetA := testutil.CreateTestBudget(t, db, owner.ID)
	budgetB := testutil.CreateTestBudget(t, db, owner.ID)
	tx := testutil.CreateTestTransaction(t, db, owner.ID, budgetA.ID, models.TransactionTypeExpense, "10")

	t.Run("owner_correct_budget", func(t *testing.T) {
		got, err := guard.Transaction(ctx, owner.ID, budgetA.ID, tx.ID)
		testutil.AssertNoError(t, err)
		if got.ID != tx.ID {
			t.Errorf("expected transaction %s, got %s", tx.ID, got.ID)
		}
	})

	t.Run("same_owner_other_budget", func(t *testing.T) {
		_, err := guard.Transaction(ctx, owner.ID, budgetB.ID, tx.ID)
		testutil.AssertHidden(t, err, "TRANSACTION_NOT_FOUND", budgetA.ID)
	})

	t.Run("other_user_fails_on_budget", func(t *testing.T) {
		_, err := guard.Transaction(ctx, other.ID, budgetA.ID, tx.ID)
		testutil.AssertHidden(t, err, "BUDGET_NOT_FOUND", owner.ID, tx.Description)
	})
}

func TestOwnershipGuard_CategoryUnused(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	guard := NewOwnershipGuard(db)

	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID)
	cat := testutil.CreateTestCategory(t, db, user.ID)

	testutil.AssertNoError(t, guard.CategoryUnused(ctx, cat.ID))

	tx := testutil.CreateTestTransaction(t, db, user.ID, budget.ID, models.TransactionTypeExpense, "5")
	if err := db.Model(tx).Update("category", cat.ID).Error; err != nil {
		t.Fatalf("failed to link category: %v", err)
	}

	testutil.AssertAppError(t, guard.CategoryUnused(ctx, cat.ID), "CATEGORY_IN_USE")
}
