package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ParseJSON 解析 JSON 字符串
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, false)
}

// ParseJSONBytes 解析 JSON 位元組切片
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v, false)
}

// DecodeJSONStrict 使用統一設定解析 JSON，禁止未知欄位
func DecodeJSONStrict(r io.Reader, v interface{}) error {
	return decodeJSON(r, v, true)
}

func decodeJSON(r io.Reader, v interface{}, disallowUnknown bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}

var (
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號，字串內容不動
func QuoteJSONKeys(raw string) string {
	return outsideStrings(raw, func(seg string) string {
		return unquotedKeyPattern.ReplaceAllString(seg, `$1"$2":`)
	})
}

// StripTrailingCommas 移除物件與陣列結尾多餘的逗號，字串內容不動
func StripTrailingCommas(raw string) string {
	return outsideStrings(raw, func(seg string) string {
		return trailingCommaPattern.ReplaceAllString(seg, `$1`)
	})
}

// outsideStrings 只對雙引號字串以外的片段套用 fn；未閉合的字串原樣保留
func outsideStrings(raw string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(raw))

	start := 0
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				b.WriteString(raw[start : i+1])
				start = i + 1
				inString = false
			}
			continue
		}
		if ch == '"' {
			b.WriteString(fn(raw[start:i]))
			start = i
			inString = true
		}
	}
	if inString {
		b.WriteString(raw[start:])
	} else {
		b.WriteString(fn(raw[start:]))
	}
	return b.String()
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
