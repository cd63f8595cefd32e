package extractor

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Balance 剩余额度。上游有时返回裸数字，有时返回 {"num": n}，缺失或无法解析时为 0
type Balance int64

// UnmarshalJSON never fails; unknown shapes normalize to 0.
func (b *Balance) UnmarshalJSON(data []byte) error {
	*b = Balance(NormalizeBalance(data))
	return nil
}

// NormalizeBalance turns the raw balance field into an integer.
func NormalizeBalance(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}

	if raw[0] == '{' {
		var obj struct {
			Num json.RawMessage `json:"num"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0
		}
		// 只展开一层，{"num": {"num": 1}} 视为无效
		if len(obj.Num) > 0 && bytes.TrimSpace(obj.Num)[0] == '{' {
			return 0
		}
		return NormalizeBalance(obj.Num)
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
	} else {
		s = string(raw)
	}
	return parseNumber(strings.TrimSpace(s))
}

func parseNumber(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}
