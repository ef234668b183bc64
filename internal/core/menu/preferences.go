package menu

import "strings"

// 前後端共用的偏好詞彙，順序即輸出順序
var (
	KnownDiets     = []string{"vegan", "vegetarian", "keto", "gluten-free"}
	KnownAllergens = []string{"gluten", "nuts", "dairy", "shellfish", "eggs", "soy"}
)

// SanitizePreferences 正規化偏好：小寫、去空白、去重，移除不在詞彙內的值
func SanitizePreferences(p UserPreferences) UserPreferences {
	return UserPreferences{
		Diets:     keepKnown(p.Diets, KnownDiets),
		Allergens: keepKnown(p.Allergens, KnownAllergens),
	}
}

func keepKnown(values, vocabulary []string) []string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}
	out := make([]string, 0, len(values))
	for _, known := range vocabulary {
		if seen[known] {
			out = append(out, known)
		}
	}
	return out
}
