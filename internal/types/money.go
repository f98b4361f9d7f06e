// README: Common money value object used across modules.
package types

import "fmt"

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64
	Currency string
}

// Cents builds a USD amount from minor units.
func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: "USD"}
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}
