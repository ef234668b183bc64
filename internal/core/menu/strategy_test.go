package menu

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"menu-analyzer/internal/core/ai/provider"
)

func TestPlan(t *testing.T) {
	if got := Plan(TierBasic); !reflect.DeepEqual(got, []Tier{TierBasic}) {
		t.Errorf("Plan(basic) = %v", got)
	}
	if got := Plan(TierAdvanced); !reflect.DeepEqual(got, []Tier{TierAdvanced, TierBasic}) {
		t.Errorf("Plan(advanced) = %v", got)
	}
	if got := Plan("unknown"); !reflect.DeepEqual(got, []Tier{TierBasic}) {
		t.Errorf("Plan(unknown) = %v", got)
	}
}

func TestShouldFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"malformed", fmt.Errorf("advanced: %w", ErrMalformedOutput), true},
		{"empty response", provider.ErrEmptyResponse, true},
		{"timeout", provider.Classify(context.DeadlineExceeded), false},
		{"unauthorized", &provider.Error{Kind: provider.KindUnauthorized}, false},
		{"unavailable", provider.Classify(errors.New("connection refused")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldFallback(tt.err); got != tt.want {
				t.Errorf("ShouldFallback() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseResponseAdvanced(t *testing.T) {
	raw := "```json\n" + `{
		"dishes": [{"name": "Bibimbap", "calories": 550}],
		"menuInsights": {"cuisineType": "Korean", "priceRange": "mid-range", "healthiness": 7, "dietFriendly": ["vegetarian"], "recommendations": [{"dish": "Bibimbap", "reason": "balanced"}]},
		"nutritionSummary": {"averageCalories": 550, "healthiestOption": "Bibimbap", "bestForDiet": {"vegan": "Bibimbap"}}
	}` + "\n```"

	parsed, err := ParseResponse(raw, TierAdvanced)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(parsed.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(parsed.Items))
	}
	if parsed.MenuInsights == nil || parsed.MenuInsights.CuisineType != "Korean" || parsed.MenuInsights.Healthiness != 7 {
		t.Errorf("insights = %+v", parsed.MenuInsights)
	}
	if parsed.NutritionSummary == nil || parsed.NutritionSummary.BestForDiet["vegan"] != "Bibimbap" {
		t.Errorf("summary = %+v", parsed.NutritionSummary)
	}
}

func TestParseResponseAdvancedIgnoresBadSections(t *testing.T) {
	parsed, err := ParseResponse(`{"dishes": [], "menuInsights": "n/a", "nutritionSummary": {"averageCalories": "high"}}`, TierAdvanced)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if parsed.MenuInsights != nil || parsed.NutritionSummary != nil {
		t.Errorf("expected sections to be dropped, got %+v / %+v", parsed.MenuInsights, parsed.NutritionSummary)
	}
}

func TestParseResponseAdvancedRequiresDishes(t *testing.T) {
	for _, raw := range []string{
		`{"menuInsights": {}}`,
		`{"dishes": "none"}`,
		`[{"name": "Soup"}]`,
	} {
		if _, err := ParseResponse(raw, TierAdvanced); !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("ParseResponse(%s) error = %v, want ErrMalformedOutput", raw, err)
		}
	}
}

func TestParseResponseBasic(t *testing.T) {
	parsed, err := ParseResponse(`[{"name": "Soup"}, {"name": "Salad"}]`, TierBasic)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(parsed.Items) != 2 || parsed.MenuInsights != nil {
		t.Errorf("parsed = %+v", parsed)
	}
}
