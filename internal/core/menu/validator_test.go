package menu

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustExtract(t *testing.T, raw string) []any {
	t.Helper()
	v, err := ExtractJSON(raw, ShapeArray)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	return v.([]any)
}

func TestValidateDishesClampsOutOfRange(t *testing.T) {
	items := mustExtract(t, `[{"name":"Soup","calories":9000,"macros":{"protein":-5,"carbs":50,"fat":10},"flags":{"diets":"vegan","allergens":["nuts"]}}]`)

	dishes, report := ValidateDishes(items, TierBasic)

	want := []DishRecord{{
		Name:     "Soup",
		Calories: 5000,
		Macros:   Macros{Protein: 0, Carbs: 50, Fat: 10},
		Flags:    Flags{Diets: []string{}, Allergens: []string{"nuts"}},
	}}
	if !reflect.DeepEqual(dishes, want) {
		t.Fatalf("ValidateDishes() = %+v, want %+v", dishes, want)
	}

	if report.Input != 1 || report.Dropped != 0 {
		t.Errorf("report = %+v, want input 1 dropped 0", report)
	}
	wantClamped := []ClampEvent{
		{Dish: "Soup", Field: "calories", Value: 9000},
		{Dish: "Soup", Field: "protein", Value: -5},
	}
	if !reflect.DeepEqual(report.Clamped, wantClamped) {
		t.Errorf("clamped = %+v, want %+v", report.Clamped, wantClamped)
	}
}

func TestValidateDishesClampsOverflowingNumbers(t *testing.T) {
	items := mustExtract(t, `[{"name":"Feast","calories":1e400,"macros":{"protein":"1e999","carbs":"NaN","fat":"-Infinity"}}]`)

	dishes, report := ValidateDishes(items, TierBasic)

	want := Macros{Protein: 300, Carbs: 0, Fat: 0}
	if dishes[0].Calories != 5000 || dishes[0].Macros != want {
		t.Errorf("ValidateDishes() = %+v, want calories 5000 macros %+v", dishes[0], want)
	}

	var fields []string
	for _, ev := range report.Clamped {
		fields = append(fields, ev.Field)
	}
	if !reflect.DeepEqual(fields, []string{"calories", "protein", "fat"}) {
		t.Errorf("clamped fields = %v, want calories, protein, fat", fields)
	}
}

func TestValidateDishesPassesValidRecordUnchanged(t *testing.T) {
	items := mustExtract(t, "```json\n[{\"name\":\"Taco\",\"calories\":300,\"macros\":{\"protein\":10,\"carbs\":30,\"fat\":8},\"flags\":{\"diets\":[],\"allergens\":[]}}]\n```")

	dishes, report := ValidateDishes(items, TierBasic)

	want := []DishRecord{{
		Name:     "Taco",
		Calories: 300,
		Macros:   Macros{Protein: 10, Carbs: 30, Fat: 8},
		Flags:    Flags{Diets: []string{}, Allergens: []string{}},
	}}
	if !reflect.DeepEqual(dishes, want) {
		t.Errorf("ValidateDishes() = %+v, want %+v", dishes, want)
	}
	if len(report.Clamped) != 0 {
		t.Errorf("unexpected clamp events: %+v", report.Clamped)
	}
}

func TestValidateDishesDropsUnnamed(t *testing.T) {
	items := mustExtract(t, `[
		{"name":"Burger","calories":800},
		{"name":"   ","calories":100},
		{"calories":100},
		{"name":42},
		"just a string",
		{"name":" Fries ","calories":"350"}
	]`)

	dishes, report := ValidateDishes(items, TierBasic)

	if len(dishes) != 2 {
		t.Fatalf("got %d dishes, want 2: %+v", len(dishes), dishes)
	}
	if dishes[0].Name != "Burger" || dishes[1].Name != "Fries" {
		t.Errorf("names = %q, %q", dishes[0].Name, dishes[1].Name)
	}
	if dishes[1].Calories != 350 {
		t.Errorf("numeric string calories = %v, want 350", dishes[1].Calories)
	}
	if report.Input != 6 || report.Dropped != 4 {
		t.Errorf("report = %+v, want input 6 dropped 4", report)
	}
}

func TestValidateDishesCoercesBadValues(t *testing.T) {
	items := []any{
		map[string]any{
			"name":     "Mystery",
			"calories": "lots",
			"macros":   "none",
			"flags": map[string]any{
				"diets":     []any{"keto", 7, nil},
				"allergens": nil,
			},
		},
	}

	dishes, _ := ValidateDishes(items, TierBasic)

	want := DishRecord{
		Name:  "Mystery",
		Flags: Flags{Diets: []string{"keto"}, Allergens: []string{}},
	}
	if !reflect.DeepEqual(dishes[0], want) {
		t.Errorf("ValidateDishes() = %+v, want %+v", dishes[0], want)
	}
}

func TestValidateDishesAdvancedDefaults(t *testing.T) {
	items := mustExtract(t, `[
		{"name":"Steak","calories":700,"macros":{"protein":50,"carbs":0,"fat":40}},
		{"name":"Tea","calories":5,"macros":{"fiber":150},"confidence":1.7,"category":"drink","price":4.5}
	]`)

	dishes, report := ValidateDishes(items, TierAdvanced)

	steak := dishes[0]
	if steak.Macros.Fiber == nil || *steak.Macros.Fiber != 0 {
		t.Errorf("steak fiber = %v, want 0", steak.Macros.Fiber)
	}
	if steak.Confidence == nil || *steak.Confidence != 0.5 {
		t.Errorf("steak confidence = %v, want 0.5", steak.Confidence)
	}
	if steak.Category != "main" {
		t.Errorf("steak category = %q, want main", steak.Category)
	}

	tea := dishes[1]
	if tea.Macros.Fiber == nil || *tea.Macros.Fiber != 100 {
		t.Errorf("tea fiber = %v, want 100", tea.Macros.Fiber)
	}
	if tea.Confidence == nil || *tea.Confidence != 1 {
		t.Errorf("tea confidence = %v, want 1", tea.Confidence)
	}
	if tea.Category != "drink" || tea.Price != "4.5" {
		t.Errorf("tea category/price = %q/%q", tea.Category, tea.Price)
	}
	if len(report.Clamped) != 2 {
		t.Errorf("clamped = %+v, want fiber and confidence", report.Clamped)
	}
}

func TestValidateDishesIdempotent(t *testing.T) {
	items := mustExtract(t, `[
		{"name":"Soup","calories":9000,"macros":{"protein":-5,"carbs":50,"fat":10},"flags":{"diets":"vegan","allergens":["nuts"]}},
		{"name":"Pad Thai","calories":650.5,"macros":{"protein":22,"carbs":80,"fat":24,"fiber":3},"flags":{"diets":["gluten-free"],"allergens":["nuts","shellfish"]},"confidence":0.9}
	]`)

	for _, tier := range []Tier{TierBasic, TierAdvanced} {
		first, _ := ValidateDishes(items, tier)

		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		second, report := ValidateDishes(mustExtract(t, string(data)), tier)

		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: second pass changed records:\n%+v\n%+v", tier, first, second)
		}
		if len(report.Clamped) != 0 || report.Dropped != 0 {
			t.Errorf("%s: second pass report = %+v", tier, report)
		}
	}
}
