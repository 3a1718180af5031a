package tui

import (
	"math/big"

	"fundboard/pkg/utils"
)

func (m model) displayValue(f *big.Float, decimals int) string {
	if m.privacyMode {
		return "****"
	}
	if f == nil {
		return "0"
	}
	return utils.FormatBigFloat(f, decimals)
}

func (m model) displayCurrency(v float64) string {
	if m.privacyMode {
		return "$****"
	}
	return utils.FormatCurrency(v, "USD")
}

func (m model) maskFiat(v float64) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatFloat(v, m.fiatDecimals)
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return utils.FormatAddress(addr)
}
