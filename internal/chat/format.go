package chat

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"sealdeal-backend/internal/analytics"
)

var headerNoise = regexp.MustCompile(`metrics_|_value|_source`)

var currencyMetrics = []string{"arr", "mrr", "cac", "ltv"}

// FormatResult renders query rows as a sentence or a markdown table.
func FormatResult(res analytics.Result) string {
	if len(res.Rows) == 0 {
		return "No results found for your query."
	}
	cols := res.Columns
	if len(cols) == 0 {
		for k := range res.Rows[0] {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}

	if len(res.Rows) == 1 && len(cols) == 1 {
		key := cols[0]
		value := res.Rows[0][key]
		if strings.Contains(key, "count") || strings.HasPrefix(key, "f0_") {
			return fmt.Sprintf("There are %s deals analyzed in the database.", plainString(value))
		}
		return fmt.Sprintf("The %s is %s.", formatHeader(key), formatValue(key, value))
	}

	headers := make([]string, len(cols))
	sep := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = formatHeader(c)
		sep[i] = "---"
	}
	lines := []string{
		"| " + strings.Join(headers, " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	for _, row := range res.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = formatValue(c, row[c])
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func formatHeader(header string) string {
	h := headerNoise.ReplaceAllString(header, " ")
	h = strings.ReplaceAll(h, "_", " ")
	return strings.ToUpper(strings.TrimSpace(h))
}

func formatValue(key string, value any) string {
	d, ok := toDecimal(value)
	if !ok {
		return plainString(value)
	}
	lower := strings.ToLower(key)
	for _, m := range currencyMetrics {
		if strings.Contains(lower, m) {
			return compactUSD(d)
		}
	}
	return groupThousands(d.Round(3))
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case *big.Rat:
		if v == nil {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(v.FloatString(9))
		return d, err == nil
	case decimal.Decimal:
		return v, true
	}
	return decimal.Decimal{}, false
}

func plainString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = plainString(item)
		}
		return strings.Join(parts, ",")
	}
	if d, ok := toDecimal(value); ok {
		return d.String()
	}
	return fmt.Sprint(value)
}

var compactUnits = []struct {
	size   decimal.Decimal
	suffix string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

var thousand = decimal.NewFromInt(1000)

// compactUSD matches en-US compact currency notation with two fraction digits:
// 500000 -> $500K, 1500000 -> $1.5M.
func compactUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	for i, u := range compactUnits {
		if d.LessThan(u.size) {
			continue
		}
		scaled := d.Div(u.size).Round(2)
		if scaled.GreaterThanOrEqual(thousand) && i > 0 {
			prev := compactUnits[i-1]
			return sign + "$" + d.Div(prev.size).Round(2).String() + prev.suffix
		}
		return sign + "$" + scaled.String() + u.suffix
	}
	scaled := d.Round(2)
	if scaled.GreaterThanOrEqual(thousand) {
		return sign + "$" + scaled.Div(thousand).Round(2).String() + "K"
	}
	return sign + "$" + scaled.String()
}

func groupThousands(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}
