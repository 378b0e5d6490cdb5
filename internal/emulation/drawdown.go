package emulation

import (
	"github.com/shopspring/decimal"

	"trade-emulator/internal/domain"
)

// drawdown compares today's holdings value with the value right after the last transaction.
// Both values exclude the cash held after that transaction.
// Returns 0 when no transaction was applied yet or the reference value is zero.
func drawdown(afterTx, today *domain.State) float64 {
	if afterTx == nil {
		return 0
	}
	base := afterTx.TotalAppraisement - afterTx.Budget
	cur := today.TotalAppraisement - afterTx.Budget
	if base == 0 || cur == base {
		return 0
	}
	ratio, _ := decimal.NewFromInt(cur - base).
		Div(decimal.NewFromInt(base)).
		Float64()
	return ratio
}
