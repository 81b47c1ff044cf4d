package charge

// BuildChargeRecord assembles calculator and estimator output into the
// persisted charge contract. All amounts are rounded to 2 decimals here,
// never earlier. The record is marked READY only when the integrity check
// passes and the insurance pairing is claim-ready; otherwise it stays DRAFT
// with the gaps surfaced verbatim for manual correction.
func BuildChargeRecord(orgID string, req *TransportChargeRequest, calc *ChargeCalculationResult, est InsuranceEstimationResult) (*ChargeRecord, ValidationResult) {
	vr := Validate(calc)

	status := StatusDraft
	if vr.IsValid && est.ClaimReady {
		status = StatusReady
	}

	breakdown := make([]ChargeBreakdownLine, len(calc.Breakdown))
	for i, line := range calc.Breakdown {
		line.Amount = line.Amount.Round(2)
		breakdown[i] = line
	}

	rec := &ChargeRecord{
		OrgID:                 orgID,
		IncidentID:            req.IncidentID,
		TransportType:         req.TransportType,
		BaseAmbulanceFee:      calc.BaseAmbulanceFee.Round(2),
		MileageCharge:         calc.MileageCharge.Round(2),
		ParamedicSurcharge:    calc.ParamedicSurcharge.Round(2),
		CCTSurcharge:          calc.CCTSurcharge.Round(2),
		BariatricSurcharge:    calc.BariatricSurcharge.Round(2),
		HEMSCharge:            calc.HEMSCharge.Round(2),
		NightSurcharge:        calc.NightSurcharge.Round(2),
		HolidaySurcharge:      calc.HolidaySurcharge.Round(2),
		ExtendedTimeCharge:    calc.ExtendedTimeCharge.Round(2),
		ProcedureCharges:      calc.ProcedureCharges.Round(2),
		CommunicationCosts:    calc.CommunicationCosts.Round(2),
		Subtotal:              calc.Subtotal.Round(2),
		TotalCharge:           calc.TotalCharge.Round(2),
		Breakdown:             breakdown,
		EstimatedCoverage:     est.EstimatedCoverage,
		PatientResponsibility: est.PatientResponsibility,
		ClaimReady:            est.ClaimReady,
		MissingFields:         est.MissingFields,
		BillingStatus:         status,
	}
	return rec, vr
}
