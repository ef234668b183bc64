package menu

import (
	"sort"
	"strings"
)

const (
	baseScore           = 5
	matchedDietBonus    = 3
	allergenPenalty     = 5
	lowCalorieThreshold = 500
	highProteinGrams    = 20
	minScore            = 0
	maxScore            = 10
)

// RecommendationScore 依偏好計算 0 到 10 的推薦分數
func RecommendationScore(d DishRecord, prefs UserPreferences) ScoredDish {
	matched := intersect(prefs.Diets, d.Flags.Diets)
	flagged := intersect(prefs.Allergens, d.Flags.Allergens)

	score := baseScore + matchedDietBonus*len(matched)
	if len(flagged) > 0 {
		score -= allergenPenalty
	}
	if d.Calories < lowCalorieThreshold {
		score++
	}
	if d.Macros.Protein > highProteinGrams {
		score++
	}
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}

	return ScoredDish{
		DishRecord:          d,
		RecommendationScore: score,
		MatchesDiet:         len(matched) > 0,
		HasAllergens:        len(flagged) > 0,
		MatchedDiets:        matched,
		FlaggedAllergens:    flagged,
	}
}

// RankDishes 為每道菜附上分數；有偏好時依分數由高到低穩定排序，否則保持原順序
func RankDishes(dishes []DishRecord, prefs UserPreferences) []ScoredDish {
	scored := make([]ScoredDish, len(dishes))
	for i, d := range dishes {
		scored[i] = RecommendationScore(d, prefs)
	}
	if prefs.IsEmpty() {
		return scored
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RecommendationScore > scored[j].RecommendationScore
	})
	return scored
}

// intersect 回傳 wanted 中出現在 tags 的值（不分大小寫），保留 wanted 的順序且不重複
func intersect(wanted, tags []string) []string {
	out := []string{}
	if len(wanted) == 0 || len(tags) == 0 {
		return out
	}
	present := make(map[string]bool, len(tags))
	for _, t := range tags {
		present[strings.ToLower(strings.TrimSpace(t))] = true
	}
	seen := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		key := strings.ToLower(strings.TrimSpace(w))
		if present[key] && !seen[key] {
			seen[key] = true
			out = append(out, w)
		}
	}
	return out
}
