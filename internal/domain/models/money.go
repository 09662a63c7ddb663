package models

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(20,2).
const (
	MoneyScale     = 2
	MoneyIntDigits = 18
)

// maxCoefficientBits rejects absurdly long literals before any digit counting.
const maxCoefficientBits = 160

var ten = big.NewInt(10)

// FitsMoney reports whether d is representable in a money column without rounding.
// It never rescales d, so it stays cheap for inputs like 1e20000000.
func FitsMoney(d decimal.Decimal) bool {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return true
	}
	if coef.BitLen() > maxCoefficientBits {
		return false
	}
	coef.Abs(coef)

	exp := int64(d.Exponent())
	rem := new(big.Int)
	for exp < -MoneyScale {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			return false
		}
		coef = q
		exp++
	}

	return int64(len(coef.String()))+exp <= MoneyIntDigits
}
