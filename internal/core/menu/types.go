package menu

import "time"

// Macros 三大營養素（公克）
type Macros struct {
	Protein float64  `json:"protein"`
	Carbs   float64  `json:"carbs"`
	Fat     float64  `json:"fat"`
	Fiber   *float64 `json:"fiber,omitempty"`
}

// Flags 飲食與過敏原標記
type Flags struct {
	Diets     []string `json:"diets"`
	Allergens []string `json:"allergens"`
}

// DishRecord 經過驗證的菜色資料
type DishRecord struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Calories    float64  `json:"calories"`
	Macros      Macros   `json:"macros"`
	Flags       Flags    `json:"flags"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       string   `json:"price,omitempty"`
}

// ScoredDish 附上推薦分數的菜色
type ScoredDish struct {
	DishRecord
	RecommendationScore int      `json:"recommendationScore"`
	MatchesDiet         bool     `json:"matchesDiet"`
	HasAllergens        bool     `json:"hasAllergens"`
	MatchedDiets        []string `json:"matchedDiets"`
	FlaggedAllergens    []string `json:"flaggedAllergens"`
}

// UserPreferences 使用者的飲食偏好
type UserPreferences struct {
	Diets     []string `json:"diets"`
	Allergens []string `json:"allergens"`
}

// IsEmpty 沒有任何飲食或過敏原偏好
func (p UserPreferences) IsEmpty() bool {
	return len(p.Diets) == 0 && len(p.Allergens) == 0
}

// Recommendation 進階分析推薦的菜色
type Recommendation struct {
	Dish   string `json:"dish"`
	Reason string `json:"reason"`
}

// MenuInsights 進階分析的菜單摘要
type MenuInsights struct {
	CuisineType     string           `json:"cuisineType,omitempty"`
	PriceRange      string           `json:"priceRange,omitempty"`
	Healthiness     float64          `json:"healthiness"`
	DietFriendly    []string         `json:"dietFriendly"`
	Recommendations []Recommendation `json:"recommendations"`
}

// NutritionSummary 進階分析的營養統計
type NutritionSummary struct {
	AverageCalories  float64           `json:"averageCalories"`
	HealthiestOption string            `json:"healthiestOption,omitempty"`
	HighestCalorie   string            `json:"highestCalorie,omitempty"`
	BestForDiet      map[string]string `json:"bestForDiet,omitempty"`
}

// AnalysisResult 一次分析的結果
type AnalysisResult struct {
	Dishes           []ScoredDish      `json:"dishes"`
	Model            string            `json:"model"`
	ProcessingMs     int64             `json:"processingMs"`
	ScanID           string            `json:"scanId,omitempty"`
	MenuInsights     *MenuInsights     `json:"menuInsights,omitempty"`
	NutritionSummary *NutritionSummary `json:"nutritionSummary,omitempty"`
	Tier             Tier              `json:"-"`
	TokensUsed       int               `json:"-"`
}

// MenuScan 保存的掃描紀錄
type MenuScan struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	ImageURL     string       `json:"imageUrl"`
	Dishes       []ScoredDish `json:"dishes"`
	Model        string       `json:"model"`
	ProcessingMs int64        `json:"processingMs"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
