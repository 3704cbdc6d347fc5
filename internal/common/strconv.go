package common

import (
	"bytes"
	"strconv"
)

// AtoiDefault converts the provided string to an integer falling back to the default when parsing fails.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// ParseInt64Default converts the provided string to an int64 falling back to the default when parsing fails.
func ParseInt64Default(value string, def int64) int64 {
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

// LenientInt decodes a JSON number, a numeric string, or null. Anything that
// does not parse becomes zero rather than failing the whole payload, matching
// how quantity steppers submit free-form values.
type LenientInt int

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (l *LenientInt) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*l = 0
		return nil
	}
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(string(raw))
		if err != nil {
			*l = 0
			return nil
		}
		raw = []byte(unquoted)
	}
	parsed, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		// Tolerate decimals like "2.0" from loose clients.
		if f, ferr := strconv.ParseFloat(string(raw), 64); ferr == nil {
			*l = LenientInt(int(f))
			return nil
		}
		*l = 0
		return nil
	}
	*l = LenientInt(parsed)
	return nil
}
