package menu

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLen  int
		wantName string
	}{
		{
			name:     "code fence",
			raw:      "```json\n[{\"name\":\"Taco\",\"calories\":300}]\n```",
			wantLen:  1,
			wantName: "Taco",
		},
		{
			name:     "surrounding prose",
			raw:      "Here are the dishes I found: [{\"name\":\"Pho\"}] Hope this helps!",
			wantLen:  1,
			wantName: "Pho",
		},
		{
			name:     "trailing bracketed note",
			raw:      "[{\"name\":\"Ramen\"}]\n\n[note: prices not visible]",
			wantLen:  1,
			wantName: "Ramen",
		},
		{
			name:     "unquoted keys and trailing commas",
			raw:      "[{name: \"Curry\", calories: 640,},]",
			wantLen:  1,
			wantName: "Curry",
		},
		{
			name:     "punctuation inside names survives repair",
			raw:      "[{\"name\":\"Pasta, chef:special\", calories: 700,},]",
			wantLen:  1,
			wantName: "Pasta, chef:special",
		},
		{
			name:     "prefers dish list over numeric array",
			raw:      "Ratings [1, 2] then [{\"name\":\"Salad\"}]",
			wantLen:  1,
			wantName: "Salad",
		},
		{
			name:    "empty array",
			raw:     "No dishes visible: []",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ExtractJSON(tt.raw, ShapeArray)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			items, ok := v.([]any)
			if !ok {
				t.Fatalf("ExtractJSON() = %T, want []any", v)
			}
			if len(items) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(items), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}
			obj := items[0].(map[string]any)
			if obj["name"] != tt.wantName {
				t.Errorf("name = %v, want %q", obj["name"], tt.wantName)
			}
		})
	}
}

func TestExtractJSONKeepsNumbers(t *testing.T) {
	v, err := ExtractJSON(`[{"name":"Soup","calories":215.5}]`, ShapeArray)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	cal := v.([]any)[0].(map[string]any)["calories"]
	if n, ok := cal.(json.Number); !ok || n.String() != "215.5" {
		t.Errorf("calories = %#v, want json.Number(215.5)", cal)
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw := "Sure! ```json\n{\"dishes\": [{\"name\": \"Bibimbap\"}], \"menuInsights\": {\"cuisineType\": \"Korean\"}}\n```"
	v, err := ExtractJSON(raw, ShapeObject)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("ExtractJSON() = %T, want map", v)
	}
	if _, ok := obj["dishes"].([]any); !ok {
		t.Errorf("dishes missing: %v", obj)
	}
}

func TestExtractJSONMalformed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		shape Shape
	}{
		{"empty", "", ShapeArray},
		{"only fences", "```json\n```", ShapeArray},
		{"prose", "I could not read this menu, sorry.", ShapeArray},
		{"unterminated", `[{"name":"Soup"`, ShapeArray},
		{"object when array expected", `{"name":"Soup"}`, ShapeArray},
		{"array when object expected", `[1, 2, 3]`, ShapeObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.raw, tt.shape)
			if !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("ExtractJSON() error = %v, want ErrMalformedOutput", err)
			}
		})
	}
}
