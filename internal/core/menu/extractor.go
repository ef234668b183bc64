package menu

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"menu-analyzer/internal/pkg/common"
)

// ErrMalformedOutput 模型輸出中找不到可解析的 JSON
var ErrMalformedOutput = errors.New("malformed model output")

var codeFencePattern = regexp.MustCompile("```[A-Za-z]*")

// 避免病態輸入造成過多嘗試
const maxExtractStarts = 64

// ExtractJSON 從模型的自由文字中取出第一段符合形狀的 JSON，數字保留為 json.Number
func ExtractJSON(raw string, shape Shape) (any, error) {
	text := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))
	if text == "" {
		return nil, ErrMalformedOutput
	}

	openCh, closeCh := byte('['), byte(']')
	if shape == ShapeObject {
		openCh, closeCh = '{', '}'
	}

	last := strings.LastIndexByte(text, closeCh)
	if last < 0 {
		return nil, ErrMalformedOutput
	}

	var fallback any
	starts := 0
	for i := 0; i < len(text) && i < last && starts < maxExtractStarts; i++ {
		if text[i] != openCh {
			continue
		}
		starts++

		candidates := []string{text[i : last+1]}
		if end := balancedEnd(text, i); end > i {
			candidates = append(candidates, text[i:end+1])
		}

		for _, candidate := range candidates {
			v, ok := decodeCandidate(candidate, shape)
			if !ok {
				continue
			}
			if preferred(v) {
				return v, nil
			}
			if fallback == nil {
				fallback = v
			}
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrMalformedOutput
}

// decodeCandidate 先原樣解析，失敗再嘗試補引號與去掉結尾逗號
func decodeCandidate(candidate string, shape Shape) (any, bool) {
	for _, text := range []string{candidate, common.StripTrailingCommas(common.QuoteJSONKeys(candidate))} {
		if !json.Valid([]byte(text)) {
			continue
		}
		var v any
		if err := common.ParseJSON(text, &v); err != nil {
			continue
		}
		switch v.(type) {
		case []any:
			if shape == ShapeArray {
				return v, true
			}
		case map[string]any:
			if shape == ShapeObject {
				return v, true
			}
		}
	}
	return nil, false
}

// 像菜色清單的候選優先，其餘只作為備援
func preferred(v any) bool {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return true
		}
		for _, item := range t {
			if _, ok := item.(map[string]any); ok {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := t["dishes"]
		return ok
	}
	return false
}

// balancedEnd 從 start 開始找對應的結尾括號，略過字串內容；找不到回傳 -1
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}
