package router

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

func Param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// IntParam parses a path parameter leniently: leading whitespace and an
// optional sign, then the leading run of digits. "12abc" yields 12. ok is
// false when no digits lead the value.
func IntParam(r *http.Request, name string) (int, bool) {
	return ParseLeadingInt(Param(r, name))
}

func ParseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(sign + s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
