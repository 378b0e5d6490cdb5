package kis

import (
	"strconv"
	"strings"
)

// parseInt parses an integer field that may carry surrounding spaces or a "+" sign.
func parseInt(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	return strconv.ParseInt(s, 10, 64)
}
