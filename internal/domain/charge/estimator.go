package charge

import (
	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

// EstimateInsurance estimates coverage and patient responsibility for a
// charge total. The coverage fractions come from the rate configuration;
// they stand in for a real eligibility check.
//
// With no primary insurance the patient carries the full total. With primary
// insurance the primary fraction is covered; a secondary policy covers its
// fraction of the remainder. Rounding to 2 decimals happens once, at the end.
func EstimateInsurance(totalCharge decimal.Decimal, primary, secondary *InsuranceSnapshot, rc *rates.RateConfig) InsuranceEstimationResult {
	res := InsuranceEstimationResult{
		Primary:   primary,
		Secondary: secondary,
	}

	if primary == nil {
		res.ClaimReady = false
		res.EstimatedCoverage = decimal.Zero.Round(2)
		res.PatientResponsibility = totalCharge.Round(2)
		res.MissingFields = []string{"No primary insurance on file"}
		return res
	}

	res.MissingFields = missingInsuranceFields(primary)
	res.ClaimReady = len(res.MissingFields) == 0

	coverage := totalCharge.Mul(rc.PrimaryCoveragePct)
	responsibility := totalCharge.Sub(coverage)

	if secondary != nil {
		secondaryCoverage := responsibility.Mul(rc.SecondaryCoveragePct)
		coverage = coverage.Add(secondaryCoverage)
		responsibility = responsibility.Sub(secondaryCoverage)
	}

	res.EstimatedCoverage = coverage.Round(2)
	res.PatientResponsibility = responsibility.Round(2)
	return res
}

func missingInsuranceFields(ins *InsuranceSnapshot) []string {
	var missing []string
	if ins.Carrier == "" {
		missing = append(missing, "Primary insurance carrier is missing")
	}
	if ins.PolicyNumber == "" {
		missing = append(missing, "Primary policy number is missing")
	}
	if ins.SubscriberName == "" {
		missing = append(missing, "Primary subscriber name is missing")
	}
	if ins.SubscriberDOB == nil {
		missing = append(missing, "Primary subscriber date of birth is missing")
	}
	return missing
}
