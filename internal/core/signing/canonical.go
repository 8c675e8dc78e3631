package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonicalize renders params as key=value pairs joined by '&', keys in
// ascending byte order. Nothing is escaped.
//
// Any sign entry is skipped, matching the Go gateway's EncodeSignParams. The
// Java reference getSignature hashes a stale sign along with the rest, so a
// mapping that still carries one signs differently there.
func Canonicalize(params ParameterSet) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(FormatValue(params[k]))
	}
	return buf.String()
}

// Digest is the uppercase hex SHA-256 of canonical immediately followed by secret.
func Digest(canonical, secret string) string {
	sum := sha256.Sum256([]byte(canonical + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// FormatValue is the string form a value takes in the canonical string.
// Floats use the shortest representation without an exponent; maps and
// slices become compact JSON with sorted keys.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
