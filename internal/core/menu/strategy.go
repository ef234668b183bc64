package menu

import (
	"encoding/json"
	"errors"

	"menu-analyzer/internal/core/ai/provider"
)

// Plan 回傳依序嘗試的分析層級。
// 進階模式失敗時只在輸出無法解析或為空白時退回基本層級。
func Plan(mode Tier) []Tier {
	if mode == TierAdvanced {
		return []Tier{TierAdvanced, TierBasic}
	}
	return []Tier{TierBasic}
}

// ShouldFallback 錯誤是否允許改用下一個層級；連線、授權與逾時錯誤不重試
func ShouldFallback(err error) bool {
	return errors.Is(err, ErrMalformedOutput) || provider.KindOf(err) == provider.KindEmptyResponse
}

// Parsed 模型輸出解析後、驗證前的內容
type Parsed struct {
	Items            []any
	MenuInsights     *MenuInsights
	NutritionSummary *NutritionSummary
}

// ParseResponse 依層級取出菜色候選清單
func ParseResponse(raw string, tier Tier) (Parsed, error) {
	v, err := ExtractJSON(raw, tier.Shape())
	if err != nil {
		return Parsed{}, err
	}

	if tier != TierAdvanced {
		items, _ := v.([]any)
		return Parsed{Items: items}, nil
	}

	obj, _ := v.(map[string]any)
	items, ok := obj["dishes"].([]any)
	if !ok {
		return Parsed{}, ErrMalformedOutput
	}
	p := Parsed{Items: items}

	var insights MenuInsights
	if decodeSection(obj["menuInsights"], &insights) {
		p.MenuInsights = &insights
	}
	var summary NutritionSummary
	if decodeSection(obj["nutritionSummary"], &summary) {
		p.NutritionSummary = &summary
	}
	return p, nil
}

// decodeSection 摘要區塊只是輔助資訊，型別不符就忽略
func decodeSection(raw any, out any) bool {
	if _, ok := raw.(map[string]any); !ok {
		return false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}
