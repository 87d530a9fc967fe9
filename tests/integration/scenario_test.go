package integration

import (
	"net/http"
	"testing"

	"budgettracker/internal/models"
)

func TestScenario_BudgetWithDefaultedTransaction(t *testing.T) {
	app := setupApp(t)
	alice := app.signUp(t, "alice@test.com")

	// Step 1: Create a budget without a start date
	rec := app.request(http.MethodPost, "/api/budgets",
		`{"name":"Groceries","amount":500,"period":"monthly"}`, alice.Token)
	expectStatus(t, rec, http.StatusCreated)
	budget := parseJSON(t, rec)
	budgetID, _ := budget["id"].(string)
	if budgetID == "" {
		t.Fatalf("expected generated id, got %v", budget["id"])
	}
	if budget["start_date"] != models.Today().String() {
		t.Errorf("expected start_date %s, got %v", models.Today(), budget["start_date"])
	}
	if budget["user_id"] != alice.UserID {
		t.Errorf("expected owner %s, got %v", alice.UserID, budget["user_id"])
	}

	// Step 2: Record a transaction with only the required fields
	rec = app.request(http.MethodPost, "/api/budgets/"+budgetID+"/transactions",
		`{"description":"Milk","amount":4.5,"date":"2024-01-05"}`, alice.Token)
	expectStatus(t, rec, http.StatusCreated)
	tx := parseJSON(t, rec)
	if tx["type"] != "expense" {
		t.Errorf("expected type expense, got %v", tx["type"])
	}
	if tx["category"] != "other" {
		t.Errorf("expected category other, got %v", tx["category"])
	}
	if tx["amount"].(float64) != 4.5 {
		t.Errorf("expected amount 4.5, got %v", tx["amount"])
	}
	if tx["date"] != "2024-01-05" {
		t.Errorf("expected date 2024-01-05, got %v", tx["date"])
	}
	if tx["budget_id"] != budgetID {
		t.Errorf("expected budget_id %s, got %v", budgetID, tx["budget_id"])
	}

	// Step 3: The budget keeps its raw amount
	rec = app.request(http.MethodGet, "/api/budgets/"+budgetID, "", alice.Token)
	expectStatus(t, rec, http.StatusOK)
	detail := parseJSON(t, rec)
	if detail["id"] != budgetID {
		t.Errorf("expected id %s, got %v", budgetID, detail["id"])
	}
	if detail["amount"].(float64) != 500 {
		t.Errorf("expected raw amount 500, got %v", detail["amount"])
	}

	// Step 4: The summary is where transactions are netted
	rec = app.request(http.MethodGet, "/api/budgets/"+budgetID+"/summary", "", alice.Token)
	expectStatus(t, rec, http.StatusOK)
	summary := parseJSON(t, rec)
	if summary["expense"].(float64) != 4.5 {
		t.Errorf("expected expense 4.5, got %v", summary["expense"])
	}
	if summary["remaining"].(float64) != 495.5 {
		t.Errorf("expected remaining 495.5, got %v", summary["remaining"])
	}
	if summary["transaction_count"].(float64) != 1 {
		t.Errorf("expected 1 transaction, got %v", summary["transaction_count"])
	}
}

func TestScenario_DuplicateCategoryPerUser(t *testing.T) {
	app := setupApp(t)
	alice := app.signUp(t, "alice@test.com")
	bob := app.signUp(t, "bob@test.com")

	rec := app.request(http.MethodPost, "/api/categories", `{"name":"Food"}`, alice.Token)
	expectStatus(t, rec, http.StatusCreated)
	if color := parseJSON(t, rec)["color"]; color != models.DefaultCategoryColor {
		t.Errorf("expected default color, got %v", color)
	}

	rec = app.request(http.MethodPost, "/api/categories", `{"name":"Food","color":"#FF0000"}`, alice.Token)
	expectStatus(t, rec, http.StatusConflict)
	if code := errorCode(t, rec); code != "DUPLICATE_CATEGORY" {
		t.Errorf("expected DUPLICATE_CATEGORY, got %s", code)
	}

	rec = app.request(http.MethodPost, "/api/categories", `{"name":"Food"}`, bob.Token)
	expectStatus(t, rec, http.StatusCreated)

	rec = app.request(http.MethodGet, "/api/categories", "", alice.Token)
	expectStatus(t, rec, http.StatusOK)
	if list := parseJSONArray(t, rec); len(list) != 1 {
		t.Errorf("expected alice to have 1 category, got %d", len(list))
	}
}

func TestScenario_ListsArePaginated(t *testing.T) {
	app := setupApp(t)
	alice := app.signUp(t, "alice@test.com")

	for _, name := range []string{"Rent", "Food", "Travel"} {
		app.createBudget(t, alice.Token, name)
	}

	rec := app.request(http.MethodGet, "/api/budgets?page=1&page_size=2", "", alice.Token)
	expectStatus(t, rec, http.StatusOK)
	if got := len(parseJSONArray(t, rec)); got != 2 {
		t.Errorf("expected 2 budgets on the page, got %d", got)
	}
	if total := rec.Header().Get("X-Total-Count"); total != "3" {
		t.Errorf("expected X-Total-Count 3, got %q", total)
	}

	rec = app.request(http.MethodGet, "/api/budgets", "", alice.Token)
	expectStatus(t, rec, http.StatusOK)
	list := parseJSONArray(t, rec)
	if len(list) != 3 {
		t.Fatalf("expected all 3 budgets without paging, got %d", len(list))
	}
	if list[0]["name"] != "Travel" {
		t.Errorf("expected newest budget first, got %v", list[0]["name"])
	}
}
