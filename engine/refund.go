/*
refund.go - Early/final withdrawal payout computation

PURPOSE:
  Computes what a member is owed on withdrawal: the nominal sum of paid
  installments plus the bonus earned per installment at the month index
  it was credited. Bonus is never a single blended rate.

EXCLUSIVITY:
  EARLY  - only installments paid before the withdrawal request count;
           unpaid future installments earn nothing.
  FINAL  - requires maturity (every installment paid); sums the full
           schedule.

  This function does not mutate anything. Recording the resulting Refund
  and advancing the state machine is the service layer's job.
*/
package engine

import "github.com/shopspring/decimal"

// ComputeRefund computes the withdrawal payout from the payment ledger.
//
// For RefundEarly the contract must carry a WithdrawalRequestedAt marker;
// installments paid on or after the request are excluded. For RefundFinal
// every installment must be paid, otherwise ErrRefundNotDue.
func ComputeRefund(c *Contract, payments []Payment, typ RefundType, settings *BonusSettings) (RefundAmounts, error) {
	out := RefundAmounts{
		AmountNominal: decimal.Zero,
		AmountBonus:   decimal.Zero,
	}

	switch typ {
	case RefundFinal:
		paid := paidIndexes(payments)
		if !allPaid(c, paid) {
			return RefundAmounts{}, ErrRefundNotDue
		}
	case RefundEarly:
		if c.WithdrawalRequestedAt == nil {
			return RefundAmounts{}, &InvalidContractError{
				Field:  "withdrawal_requested_at",
				Reason: "required for early refund",
			}
		}
	default:
		return RefundAmounts{}, &InvalidContractError{Field: "refund_type", Reason: "unknown"}
	}

	for _, p := range payments {
		if !p.Paid() {
			continue
		}
		if typ == RefundEarly && !p.PaidAt.Before(*c.WithdrawalRequestedAt) {
			continue
		}

		out.AmountNominal = out.AmountNominal.Add(p.Amount)

		rate, _ := ResolveBonusRate(p.DueIndex, settings)
		out.AmountBonus = out.AmountBonus.Add(BonusAmount(p.Amount, rate))
	}

	return out, nil
}
