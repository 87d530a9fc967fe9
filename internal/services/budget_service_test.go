package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/patch"
	"budgettracker/internal/testutil"
)

func newBudgetService(t *testing.T) (BudgetServicer, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return NewBudgetService(db, NewOwnershipGuard(db)), db
}

func strPtr(s string) *string { return &s }

func TestCreateBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_defaults_start_date", func(t *testing.T) {
		svc, db := newBudgetService(t)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(ctx, user.ID, BudgetInput{
			Name:   "Groceries",
			Amount: decimal.NewFromInt(500),
			Period: models.BudgetPeriodMonthly,
		})
		testutil.AssertNoError(t, err)

		if budget.ID == "" {
			t.Fatal("expected generated budget ID")
		}
		if budget.UserID != user.ID {
			t.Errorf("expected owner %s, got %s", user.ID, budget.UserID)
		}
		if !budget.Amount.Equal(decimal.NewFromInt(500)) {
			t.Errorf("expected amount 500, got %s", budget.Amount)
		}
		if budget.StartDate.String() != models.Today().String() {
			t.Errorf("expected start date %s, got %s", models.Today(), budget.StartDate)
		}
		if budget.EndDate != nil || budget.Description != nil {
			t.Error("optional fields should be empty")
		}
	})

	t.Run("with_optional_fields", func(t *testing.T) {
		svc, db := newBudgetService(t)
		user := testutil.CreateTestUser(t, db)

		start := models.MustParseDate("2024-01-01")
		end := models.MustParseDate("2024-06-30")
		budget, err := svc.CreateBudget(ctx, user.ID, BudgetInput{
			Name:        "Half Year",
			Amount:      decimal.RequireFromString("1200.50"),
			Period:      models.BudgetPeriodCustom,
			StartDate:   &start,
			EndDate:     &end,
			Description: strPtr("travel"),
		})
		testutil.AssertNoError(t, err)

		if budget.EndDate == nil || budget.EndDate.String() != "2024-06-30" {
			t.Errorf("expected end date 2024-06-30, got %v", budget.EndDate)
		}
		if budget.Description == nil || *budget.Description != "travel" {
			t.Errorf("expected description travel, got %v", budget.Description)
		}
	})

	tests := []struct {
		name string
		in   BudgetInput
	}{
		{"missing_name", BudgetInput{Amount: decimal.NewFromInt(1), Period: models.BudgetPeriodMonthly}},
		{"zero_amount", BudgetInput{Name: "x", Amount: decimal.Zero, Period: models.BudgetPeriodMonthly}},
		{"negative_amount", BudgetInput{Name: "x", Amount: decimal.NewFromInt(-5), Period: models.BudgetPeriodMonthly}},
		{"sub_cent_amount", BudgetInput{Name: "x", Amount: decimal.RequireFromString("0.001"), Period: models.BudgetPeriodMonthly}},
		{"three_decimals", BudgetInput{Name: "x", Amount: decimal.RequireFromString("10.125"), Period: models.BudgetPeriodMonthly}},
		{"bad_period", BudgetInput{Name: "x", Amount: decimal.NewFromInt(1), Period: "weekly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newBudgetService(t)
			user := testutil.CreateTestUser(t, db)

			_, err := svc.CreateBudget(ctx, user.ID, tt.in)
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		})
	}

	t.Run("end_before_start", func(t *testing.T) {
		svc, db := newBudgetService(t)
		user := testutil.CreateTestUser(t, db)

		start := models.MustParseDate("2024-06-01")
		end := models.MustParseDate("2024-01-01")
		_, err := svc.CreateBudget(ctx, user.ID, BudgetInput{
			Name: "x", Amount: decimal.NewFromInt(1), Period: models.BudgetPeriodCustom,
			StartDate: &start, EndDate: &end,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserBudgets(t *testing.T) {
	ctx := context.Background()
	svc, db := newBudgetService(t)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	first := testutil.CreateTestBudget(t, db, user.ID)
	second := testutil.CreateTestBudget(t, db, user.ID)
	third := testutil.CreateTestBudget(t, db, user.ID)
	testutil.CreateTestBudget(t, db, other.ID)

	t.Run("newest_first_own_only", func(t *testing.T) {
		result, err := svc.GetUserBudgets(ctx, user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 3 || len(result.Data) != 3 {
			t.Fatalf("expected 3 budgets, got %d (total %d)", len(result.Data), result.TotalItems)
		}
		want := []string{third.ID, second.ID, first.ID}
		for i, b := range result.Data {
			if b.ID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], b.ID)
			}
		}
	})

	t.Run("paginated", func(t *testing.T) {
		result, err := svc.GetUserBudgets(ctx, user.ID, pagination.PageRequest{Page: 2, PageSize: 2})
		testutil.AssertNoError(t, err)

		if len(result.Data) != 1 || result.Data[0].ID != first.ID {
			t.Errorf("expected the oldest budget on page 2, got %+v", result.Data)
		}
		if result.TotalPages != 2 {
			t.Errorf("expected 2 pages, got %d", result.TotalPages)
		}
	})

	t.Run("empty_is_not_nil", func(t *testing.T) {
		fresh := testutil.CreateTestUser(t, db)
		result, err := svc.GetUserBudgets(ctx, fresh.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if result.Data == nil || len(result.Data) != 0 {
			t.Errorf("expected empty slice, got %v", result.Data)
		}
	})
}

func TestGetBudgetByID(t *testing.T) {
	ctx := context.Background()
	svc, db := newBudgetService(t)
	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, owner.ID)

	got, err := svc.GetBudgetByID(ctx, owner.ID, budget.ID)
	testutil.AssertNoError(t, err)
	if got.Name != budget.Name {
		t.Errorf("expected %s, got %s", budget.Name, got.Name)
	}

	_, err = svc.GetBudgetByID(ctx, other.ID, budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestUpdateBudget(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (BudgetServicer, *models.Budget) {
		svc, db := newBudgetService(t)
		user := testutil.CreateTestUser(t, db)
		end := models.MustParseDate("2099-12-31")
		budget, err := svc.CreateBudget(ctx, user.ID, BudgetInput{
			Name:        "Original",
			Amount:      decimal.NewFromInt(100),
			Period:      models.BudgetPeriodMonthly,
			EndDate:     &end,
			Description: strPtr("keep me"),
		})
		testutil.AssertNoError(t, err)
		return svc, budget
	}

	t.Run("partial_fields", func(t *testing.T) {
		svc, budget := setup(t)

		updated, err := svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{
			Name:   patch.Of("Renamed"),
			Amount: patch.Of(decimal.RequireFromString("250.75")),
		})
		testutil.AssertNoError(t, err)

		if updated.Name != "Renamed" {
			t.Errorf("expected name Renamed, got %s", updated.Name)
		}
		if !updated.Amount.Equal(decimal.RequireFromString("250.75")) {
			t.Errorf("expected amount 250.75, got %s", updated.Amount)
		}
		if updated.Period != models.BudgetPeriodMonthly {
			t.Errorf("period should be untouched, got %s", updated.Period)
		}
		if updated.Description == nil || *updated.Description != "keep me" {
			t.Errorf("description should be untouched, got %v", updated.Description)
		}
	})

	t.Run("null_clears_absent_keeps", func(t *testing.T) {
		svc, budget := setup(t)

		updated, err := svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{
			Description: patch.Null[string](),
		})
		testutil.AssertNoError(t, err)

		if updated.Description != nil {
			t.Errorf("explicit null should clear description, got %q", *updated.Description)
		}
		if updated.EndDate == nil {
			t.Error("absent end_date should be kept")
		}

		updated, err = svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{EndDate: patch.Null[models.Date]()})
		testutil.AssertNoError(t, err)
		if updated.EndDate != nil {
			t.Errorf("explicit null should clear end_date, got %v", updated.EndDate)
		}
	})

	t.Run("null_name_is_ignored", func(t *testing.T) {
		svc, budget := setup(t)

		updated, err := svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{Name: patch.Null[string]()})
		testutil.AssertNoError(t, err)
		if updated.Name != "Original" {
			t.Errorf("null name must not clear, got %q", updated.Name)
		}
	})

	t.Run("invalid_amount", func(t *testing.T) {
		svc, budget := setup(t)
		_, err := svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{Amount: patch.Of(decimal.Zero)})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_period", func(t *testing.T) {
		svc, budget := setup(t)
		_, err := svc.UpdateBudget(ctx, budget.UserID, budget.ID, BudgetPatch{Period: patch.Of(models.BudgetPeriod("daily"))})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_owner", func(t *testing.T) {
		svc, budget := setup(t)
		_, err := svc.UpdateBudget(ctx, "0190a4b2-0000-7000-8000-0000000000ff", budget.ID, BudgetPatch{Name: patch.Of("x")})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestDeleteBudget(t *testing.T) {
	ctx := context.Background()
	svc, db := newBudgetService(t)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID)
	keep := testutil.CreateTestBudget(t, db, user.ID)
	testutil.CreateTestTransaction(t, db, user.ID, budget.ID, models.TransactionTypeExpense, "10")
	testutil.CreateTestTransaction(t, db, user.ID, keep.ID, models.TransactionTypeExpense, "10")

	testutil.AssertAppError(t, svc.DeleteBudget(ctx, other.ID, budget.ID), "BUDGET_NOT_FOUND")

	testutil.AssertNoError(t, svc.DeleteBudget(ctx, user.ID, budget.ID))

	_, err := svc.GetBudgetByID(ctx, user.ID, budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

	var count int64
	db.Model(&models.Transaction{}).Where("budget_id = ?", budget.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected transactions to be deleted with the budget, found %d", count)
	}
	db.Model(&models.Transaction{}).Where("budget_id = ?", keep.ID).Count(&count)
	if count != 1 {
		t.Errorf("other budgets' transactions must survive, found %d", count)
	}
}

func TestGetBudgetSummary(t *testing.T) {
	ctx := context.Background()
	svc, db := newBudgetService(t)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID)
	testutil.CreateTestTransaction(t, db, user.ID, budget.ID, models.TransactionTypeExpense, "100.25")
	testutil.CreateTestTransaction(t, db, user.ID, budget.ID, models.TransactionTypeExpense, "49.75")
	testutil.CreateTestTransaction(t, db, user.ID, budget.ID, models.TransactionTypeIncome, "20")

	summary, err := svc.GetBudgetSummary(ctx, user.ID, budget.ID)
	testutil.AssertNoError(t, err)

	checks := map[string]struct{ got, want decimal.Decimal }{
		"amount":    {summary.Amount, decimal.NewFromInt(1000)},
		"income":    {summary.Income, decimal.NewFromInt(20)},
		"expense":   {summary.Expense, decimal.NewFromInt(150)},
		"net":       {summary.Net, decimal.NewFromInt(-130)},
		"remaining": {summary.Remaining, decimal.NewFromInt(870)},
	}
	for name, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("%s = %s, want %s", name, c.got, c.want)
		}
	}
	if summary.TransactionCount != 3 {
		t.Errorf("expected 3 transactions, got %d", summary.TransactionCount)
	}

	// The budget record itself is never net-of-transactions.
	stored, err := svc.GetBudgetByID(ctx, user.ID, budget.ID)
	testutil.AssertNoError(t, err)
	if !stored.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("budget amount changed to %s", stored.Amount)
	}
}
