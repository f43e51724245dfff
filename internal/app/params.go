package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/pscheid92/databoard/internal/domain"
)

// isJSWhitespace reports whether r is stripped before numeric parsing:
// ASCII whitespace, no-break and other Unicode spaces, line terminators and
// the byte order mark.
func isJSWhitespace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ParseFloatParam parses the longest numeric prefix of s after leading
// whitespace: an optional sign followed by "Infinity" or a decimal literal
// with optional fraction and exponent. Without such a prefix it returns the
// non-numeric marker.
func ParseFloatParam(s string) domain.Number {
	s = strings.TrimLeftFunc(s, isJSWhitespace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return domain.Number(math.Inf(-1))
		}
		return domain.Number(math.Inf(1))
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return domain.NotANumber()
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > expStart {
			i = j
		}
	}

	// Out-of-range literals come back as ±Inf or 0 together with ErrRange,
	// which is the value we want.
	f, _ := strconv.ParseFloat(s[:i], 64)
	return domain.Number(f)
}

// ParseIntParam parses the leading integer of s after leading whitespace: an
// optional sign, then hexadecimal digits after a "0x" prefix or decimal
// digits otherwise, stopping at the first other character. Without digits it
// returns the non-numeric marker.
func ParseIntParam(s string) domain.Number {
	s = strings.TrimLeftFunc(s, isJSWhitespace)

	sign := 1.0
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		var v float64
		n := 0
		for _, c := range []byte(s[2:]) {
			d, ok := hexDigit(c)
			if !ok {
				break
			}
			v = v*16 + float64(d)
			n++
		}
		if n == 0 {
			return domain.NotANumber()
		}
		return domain.Number(sign * v)
	}

	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	if n == 0 {
		return domain.NotANumber()
	}
	v, _ := strconv.ParseFloat(s[:n], 64)
	return domain.Number(sign * v)
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// numberText renders a JSON number the way it reads when converted back to a
// string: plain decimal notation between 1e-6 and 1e21, exponent notation
// outside, so that prefix parsing sees the same text a browser would.
func numberText(f float64) string {
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	expSign, expDigits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + expSign + expDigits
}
