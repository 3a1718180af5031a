package utils

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

func FormatBigFloat(f *big.Float, decimals int) string {
	if f == nil {
		return "0"
	}
	return AddCommas(f.Text('f', decimals))
}

func BigFloatToFloat64(f *big.Float) float64 {
	if f == nil {
		return 0
	}
	val, _ := f.Float64()
	return val
}

// TokenDisplayDecimals is the precision used when rendering token amounts.
const TokenDisplayDecimals = 6

// ToTokenUnits converts a raw integer amount into whole token units.
func ToTokenUnits(amount *big.Int, decimals int) *big.Float {
	if amount == nil {
		return new(big.Float)
	}
	f := new(big.Float).SetPrec(256).SetInt(amount)
	if decimals <= 0 {
		return f
	}
	div := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return f.Quo(f, div)
}

// FormatTokenAmount renders a raw amount with six fractional digits.
func FormatTokenAmount(amount *big.Int, decimals int) string {
	return ToTokenUnits(amount, decimals).Text('f', TokenDisplayDecimals)
}

// ParseTokenAmount converts a decimal string such as "1.5" into raw units.
// Digits beyond the token's precision are truncated.
func ParseTokenAmount(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if decimals < 0 {
		decimals = 0
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || s == "" {
		return nil, fmt.Errorf("invalid token amount %q", amount)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatCurrency renders amount with two decimals and thousands separators.
func FormatCurrency(amount float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	code := strings.ToUpper(currency)
	prefix, ok := currencySymbols[code]
	if !ok {
		prefix = code + " "
	}
	sign := ""
	if amount < 0 && math.Round(amount*100) != 0 {
		sign = "-"
	}
	return sign + prefix + FormatFloat(math.Abs(amount), 2)
}

// DateLayout matches "Jan 2, 2006, 03:04 PM".
const DateLayout = "Jan 2, 2006, 03:04 PM"

// FormatDate renders a unix timestamp in local time.
func FormatDate(ts int64) string {
	return FormatDateIn(ts, time.Local)
}

func FormatDateIn(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format(DateLayout)
}

// FormatAddress shortens an address to 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
