package menu

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// 數值欄位的合法範圍
var fieldRanges = map[string][2]float64{
	"calories":   {0, 5000},
	"protein":    {0, 300},
	"carbs":      {0, 500},
	"fat":        {0, 200},
	"fiber":      {0, 100},
	"confidence": {0, 1},
}

const (
	defaultConfidence = 0.5
	defaultCategory   = "main"
)

// ClampEvent 一次超出範圍被截斷的數值
type ClampEvent struct {
	Dish  string  `json:"dish"`
	Field string  `json:"field"`
	Value float64 `json:"value"`
}

// ValidationReport 驗證過程中被丟棄或截斷的統計
type ValidationReport struct {
	Input   int
	Dropped int
	Clamped []ClampEvent
}

// ValidateDishes 檢查並正規化模型回傳的菜色清單。
// 沒有名稱的紀錄會被丟棄，其餘欄位一律轉成合法值，不會回傳錯誤。
// 進階層級會補上 fiber、confidence 與 category 的預設值。
func ValidateDishes(items []any, tier Tier) ([]DishRecord, ValidationReport) {
	report := ValidationReport{Input: len(items)}
	dishes := make([]DishRecord, 0, len(items))

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			report.Dropped++
			continue
		}
		name, ok := obj["name"].(string)
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			report.Dropped++
			continue
		}

		v := fieldValidator{dish: name, report: &report}
		macros, _ := obj["macros"].(map[string]any)
		flags, _ := obj["flags"].(map[string]any)

		d := DishRecord{
			Name:     name,
			Calories: v.number("calories", obj["calories"]),
			Macros: Macros{
				Protein: v.number("protein", macros["protein"]),
				Carbs:   v.number("carbs", macros["carbs"]),
				Fat:     v.number("fat", macros["fat"]),
			},
			Flags: Flags{
				Diets:     stringSlice(flags["diets"]),
				Allergens: stringSlice(flags["allergens"]),
			},
			Description: text(obj["description"]),
			Category:    text(obj["category"]),
			Price:       price(obj["price"]),
		}

		if raw, present := macros["fiber"]; present || tier == TierAdvanced {
			fiber := v.number("fiber", raw)
			d.Macros.Fiber = &fiber
		}

		if raw, present := obj["confidence"]; present {
			confidence := v.number("confidence", raw)
			d.Confidence = &confidence
		} else if tier == TierAdvanced {
			confidence := defaultConfidence
			d.Confidence = &confidence
		}

		if tier == TierAdvanced && d.Category == "" {
			d.Category = defaultCategory
		}

		dishes = append(dishes, d)
	}

	return dishes, report
}

type fieldValidator struct {
	dish   string
	report *ValidationReport
}

// number 轉成數值並截斷到欄位範圍，無法解析時為 0
func (v fieldValidator) number(field string, raw any) float64 {
	f, ok := toFloat(raw)
	if !ok {
		return 0
	}
	bounds := fieldRanges[field]
	if f < bounds[0] || f > bounds[1] {
		v.report.Clamped = append(v.report.Clamped, ClampEvent{Dish: v.dish, Field: field, Value: f})
		return math.Max(bounds[0], math.Min(bounds[1], f))
	}
	return f
}

func toFloat(raw any) (float64, bool) {
	var f float64
	switch n := raw.(type) {
	case json.Number:
		parsed, ok := parseNumber(string(n))
		if !ok {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, ok := parseNumber(strings.TrimSpace(n))
		if !ok {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseNumber 超出 float64 範圍時回傳 ±Inf，交給 number 截斷到上下限
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// stringSlice 非陣列視為空陣列，只保留字串元素
func stringSlice(raw any) []string {
	out := []string{}
	items, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			return append(out, typed...)
		}
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func text(raw any) string {
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

func price(raw any) string {
	switch p := raw.(type) {
	case string:
		return strings.TrimSpace(p)
	case json.Number:
		return p.String()
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	}
	return ""
}
