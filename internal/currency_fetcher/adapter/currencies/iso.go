package currencies

import (
	"golang.org/x/text/currency"
)

// ISO recognises ISO 4217 codes written in upper case, such as "USD".
type ISO struct{}

func NewISO() ISO {
	return ISO{}
}

func (ISO) IsKnown(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}

	_, err := currency.ParseISO(code)
	return err == nil
}
