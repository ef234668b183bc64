package menu

import (
	"encoding/json"
	"strings"
)

// Tier 分析層級
type Tier string

const (
	TierBasic    Tier = "basic"
	TierAdvanced Tier = "advanced"
)

// Shape 回傳結構預期是陣列還是物件
type Shape int

const (
	ShapeArray Shape = iota
	ShapeObject
)

// Shape 該層級的 prompt 要求模型輸出的 JSON 形狀
func (t Tier) Shape() Shape {
	if t == TierAdvanced {
		return ShapeObject
	}
	return ShapeArray
}

const basicSchema = `[
  {
    "name": "dish name",
    "calories": number,
    "macros": {
      "protein": number,
      "carbs": number,
      "fat": number
    },
    "flags": {
      "diets": ["vegan", "keto", etc.],
      "allergens": ["nuts", "dairy", etc.]
    }
  }
]`

const advancedSchema = `{
  "dishes": [
    {
      "name": "dish name",
      "description": "brief description",
      "calories": number,
      "macros": {
        "protein": number,
        "carbs": number,
        "fat": number,
        "fiber": number
      },
      "flags": {
        "diets": ["vegan", "keto", "gluten-free", etc.],
        "allergens": ["nuts", "dairy", "gluten", etc.]
      },
      "confidence": number (0-1),
      "price": "estimated price if visible",
      "category": "appetizer/main/dessert/drink"
    }
  ],
  "menuInsights": {
    "cuisineType": "type of cuisine",
    "priceRange": "budget/mid-range/upscale",
    "healthiness": number (1-10),
    "dietFriendly": ["vegan", "keto", etc.],
    "recommendations": [
      {
        "dish": "dish name",
        "reason": "why recommended for user prefs"
      }
    ]
  },
  "nutritionSummary": {
    "averageCalories": number,
    "healthiestOption": "dish name",
    "highestCalorie": "dish name",
    "bestForDiet": {
      "vegan": "dish name",
      "keto": "dish name",
      "low-calorie": "dish name"
    }
  }
}`

// BuildPrompt 組合送給模型的指令，相同輸入必定得到相同輸出
func BuildPrompt(tier Tier, prefs UserPreferences) string {
	var b strings.Builder

	if tier == TierAdvanced {
		b.WriteString("Analyze this menu image comprehensively. Extract detailed information for each dish and provide overall menu insights.\n\n")
	} else {
		b.WriteString("Analyze this menu image and extract dish information. For each dish, provide:\n")
		b.WriteString("1. Name (string)\n")
		b.WriteString("2. Estimated calories (number)\n")
		b.WriteString("3. Macronutrients in grams: protein, carbs, fat (numbers)\n")
		b.WriteString("4. Diet flags: " + strings.Join(KnownDiets, ", ") + ", etc. (array of strings)\n")
		b.WriteString("5. Allergen warnings: " + strings.Join(KnownAllergens, ", ") + " (array of strings)\n\n")
	}

	b.WriteString("User preferences: ")
	b.WriteString(preferencesText(prefs))
	b.WriteString("\n\n")

	b.WriteString("Focus on main dishes and entrees. Skip drinks, sides, and desserts unless they are clearly featured.\n")
	b.WriteString("Make reasonable estimates for nutrition based on typical portions and ingredients.\n")
	b.WriteString("Only include allergens that are likely present based on typical preparation methods.\n")
	if tier == TierAdvanced {
		b.WriteString("Rate confidence based on image clarity and text visibility.\n")
	}
	b.WriteString("\n")

	if tier == TierAdvanced {
		b.WriteString("Return a JSON object with this exact structure:\n")
		b.WriteString(advancedSchema)
		b.WriteString("\n\nIMPORTANT: Return ONLY the JSON object, no additional text or formatting.\n")
	} else {
		b.WriteString("Return the data as a JSON array with this exact structure:\n")
		b.WriteString(basicSchema)
		b.WriteString("\n\nIMPORTANT: Return ONLY the JSON array, no additional text or formatting.\n")
	}

	return b.String()
}

func preferencesText(prefs UserPreferences) string {
	if prefs.IsEmpty() {
		return "none"
	}
	// 保證 nil 與空切片輸出一致
	p := UserPreferences{Diets: prefs.Diets, Allergens: prefs.Allergens}
	if p.Diets == nil {
		p.Diets = []string{}
	}
	if p.Allergens == nil {
		p.Allergens = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "none"
	}
	return string(data)
}
