package paymentplan

import (
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

// TierRequest parameterizes the tier engine. DesiredTermMonths of zero means
// "offer every eligible tier". AutoPay applies the organization's configured
// discount; the discount never applies silently.
type TierRequest struct {
	Balance           decimal.Decimal `json:"balance"`
	DownPayment       decimal.Decimal `json:"down_payment"`
	DesiredTermMonths int             `json:"desired_term_months,omitempty"`
	AutoPay           bool            `json:"auto_pay"`
}

// TierOption is one offered plan draft plus the tier the balance bracket
// recommends.
type TierOption struct {
	Plan        PaymentPlan `json:"plan"`
	Recommended bool        `json:"recommended"`
}

// TierOptions produces installment plan drafts for an outstanding balance.
// It is a pure function of its inputs: tier boundaries, term lengths, and
// the auto-pay discount all come from the rate configuration. Installment
// amounts are rounded to 2 decimals; the final installment absorbs the
// rounding remainder when the plan is paid down.
func TierOptions(req TierRequest, rc *rates.RateConfig) []TierOption {
	if !req.Balance.IsPositive() {
		return nil
	}
	down := req.DownPayment
	if down.IsNegative() {
		down = decimal.Zero
	}
	if down.GreaterThan(req.Balance) {
		down = req.Balance
	}

	financed := req.Balance.Sub(down)
	var discount decimal.Decimal
	if req.AutoPay {
		discount = financed.Mul(rc.AutoPayDiscountPct).Round(2)
		financed = financed.Sub(discount)
	}

	recommended := recommendTier(req.Balance, rc)

	tiers := []struct {
		tier   Tier
		months int
	}{
		{TierShortTerm, rc.ShortTermMonths},
		{TierStandard, rc.StandardMonths},
		{TierExtended, rc.ExtendedMonths},
	}

	var options []TierOption
	for _, t := range tiers {
		if req.DesiredTermMonths > 0 && t.months != req.DesiredTermMonths {
			continue
		}
		n := decimal.NewFromInt(int64(t.months))
		installment := financed.Div(n).Round(2)
		options = append(options, TierOption{
			Plan: PaymentPlan{
				Tier:                 t.tier,
				TotalAmount:          req.Balance.Round(2),
				DownPayment:          down.Round(2),
				RemainingBalance:     financed.Round(2),
				InstallmentAmount:    installment,
				InstallmentFrequency: "monthly",
				TotalInstallments:    t.months,
				AutoPayEnabled:       req.AutoPay,
				AutoPayDiscount:      discount,
				Status:               StatusPending,
			},
			Recommended: t.tier == recommended,
		})
	}
	return options
}

func recommendTier(balance decimal.Decimal, rc *rates.RateConfig) Tier {
	switch {
	case balance.LessThanOrEqual(rc.ShortTermMaxBalance):
		return TierShortTerm
	case balance.LessThanOrEqual(rc.StandardMaxBalance):
		return TierStandard
	default:
		return TierExtended
	}
}
