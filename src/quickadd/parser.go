// Package quickadd turns a one-line note such as "cà phê 45k" or
// "+lương 15tr" into a transaction draft.
package quickadd

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

type Draft struct {
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
	Type        models.TransactionType `json:"type"`
	// CategoryHint is the name of the matched category, empty when nothing
	// matched.
	CategoryHint string `json:"category_hint,omitempty"`
}

var multipliers = map[string]decimal.Decimal{
	"k":     decimal.NewFromInt(1_000),
	"nghìn": decimal.NewFromInt(1_000),
	"ngàn":  decimal.NewFromInt(1_000),
	"tr":    decimal.NewFromInt(1_000_000),
	"triệu": decimal.NewFromInt(1_000_000),
	"m":     decimal.NewFromInt(1_000_000),
}

var incomeWords = map[string]bool{
	"lương":  true,
	"thu":    true,
	"nhận":   true,
	"salary": true,
	"income": true,
}

// Parse extracts the amount from text and treats the other words as the
// description. The first number carrying a unit ("45k", "5 triệu") is the
// amount; without one, the last plain number is. Text is an expense unless
// it starts with "+" or contains an income keyword.
func Parse(text string) (Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Draft{}, models.Invalid("text is required")
	}

	d := Draft{Type: models.TransactionExpense}
	if strings.HasPrefix(text, "+") {
		d.Type = models.TransactionIncome
		text = strings.TrimSpace(strings.TrimPrefix(text, "+"))
	}

	fields := strings.Fields(text)
	pick, used := -1, 0
	for i := range fields {
		next := ""
		if i+1 < len(fields) {
			next = fields[i+1]
		}
		amount, n, unit, ok := parseAmount(fields[i], next)
		if !ok {
			continue
		}
		pick, used, d.Amount = i, n, amount
		if unit {
			break
		}
	}
	if pick < 0 {
		return Draft{}, models.Invalid("no amount found in %q", text)
	}
	if !d.Amount.IsPositive() {
		return Draft{}, models.Invalid("amount must be positive")
	}

	var words []string
	for i, tok := range fields {
		if i >= pick && i < pick+used {
			continue
		}
		if incomeWords[strings.ToLower(strings.Trim(tok, ",.:;"))] {
			d.Type = models.TransactionIncome
		}
		words = append(words, tok)
	}
	d.Description = strings.Join(words, " ")
	return d, nil
}

// parseAmount reads tok as an amount, optionally followed by a unit word in
// next ("50 nghìn"). It reports how many tokens it consumed and whether a
// unit was present.
func parseAmount(tok, next string) (decimal.Decimal, int, bool, bool) {
	lower := strings.ToLower(tok)
	end := 0
	for end < len(lower) && (isDigit(lower[end]) || lower[end] == '.' || lower[end] == ',') {
		end++
	}
	if end == 0 || !isDigit(lower[0]) {
		return decimal.Zero, 0, false, false
	}
	number, suffix := lower[:end], lower[end:]

	used := 1
	if suffix == "" {
		if _, ok := multipliers[strings.ToLower(next)]; ok {
			suffix = strings.ToLower(next)
			used = 2
		}
	}

	mult := decimal.NewFromInt(1)
	if suffix != "" {
		m, ok := multipliers[suffix]
		if !ok {
			return decimal.Zero, 0, false, false
		}
		mult = m
	}

	value, ok := parseNumber(number)
	if !ok {
		return decimal.Zero, 0, false, false
	}
	return value.Mul(mult), used, suffix != "", true
}

// parseNumber accepts plain digits, digit groups separated by "." or ","
// ("1.500.000", "1,500"), or a single decimal separator ("1.5", "2,5").
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Zero, false
	}
	groups := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if strings.Count(s, ".")+strings.Count(s, ",") != len(groups)-1 {
		// adjacent separators
		return decimal.Zero, false
	}

	switch {
	case len(groups) == 1:
	case thousandsGrouped(groups):
		s = strings.Join(groups, "")
	case len(groups) == 2:
		s = groups[0] + "." + groups[1]
	default:
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func thousandsGrouped(groups []string) bool {
	if len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// MatchCategory returns the category of the given type whose name appears in
// text, preferring the longest name. Matching ignores case and only counts
// whole words.
func MatchCategory(text string, categories []models.Category, typ models.TransactionType) *models.Category {
	haystack := strings.ToLower(text)
	var best *models.Category
	for i := range categories {
		c := &categories[i]
		if c.Type != typ {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || !containsWord(haystack, name) {
			continue
		}
		if best == nil || len([]rune(name)) > len([]rune(best.Name)) {
			best = c
		}
	}
	return best
}

func containsWord(haystack, needle string) bool {
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if boundary(haystack, start-1, true) && boundary(haystack, end, false) {
			return true
		}
		from = start + 1
	}
}

func boundary(s string, i int, before bool) bool {
	var r rune
	if before {
		if i < 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(s[:i+1])
	} else {
		if i >= len(s) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(s[i:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
