package charge

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emsops/emsops/internal/domain/rates"
)

// ComputeCharge converts transport facts plus a rate configuration into an
// itemized charge. It is deterministic and side-effect free: the same request
// and rates always produce the same result, line for line. Zero or negative
// rate inputs yield zero-amount lines rather than errors; the validator is
// the integrity boundary before persistence.
func ComputeCharge(req *TransportChargeRequest, rc *rates.RateConfig) *ChargeCalculationResult {
	res := &ChargeCalculationResult{}

	// 1. Base fee.
	res.BaseAmbulanceFee = nonNegative(rc.BaseAmbulanceRate)
	if res.BaseAmbulanceFee.IsPositive() {
		res.addLine("base_ambulance_fee", "Base ambulance transport fee", res.BaseAmbulanceFee, nil, nil)
	}

	// 2. Mileage.
	mileage := nonNegative(req.Mileage)
	res.MileageCharge = mileage.Mul(nonNegative(rc.MileageRate))
	if res.MileageCharge.IsPositive() {
		rate := rc.MileageRate
		res.addLine("mileage", fmt.Sprintf("Mileage (%s loaded miles)", mileage), res.MileageCharge, &mileage, &rate)
	}

	// 3. Paramedic surcharge: required by the call or the unit is
	// paramedic-credentialed.
	if req.Crew.RequiresParamedic || req.Crew.UnitParamedicCapable {
		res.ParamedicSurcharge = nonNegative(rc.ParamedicSurcharge)
		if res.ParamedicSurcharge.IsPositive() {
			res.addLine("paramedic_surcharge", "Paramedic crew surcharge", res.ParamedicSurcharge, nil, nil)
		}
	}

	// 4. CCT surcharge.
	if req.TransportType == TransportCCT {
		res.CCTSurcharge = nonNegative(rc.CCTSurcharge)
		if res.CCTSurcharge.IsPositive() {
			res.addLine("cct_surcharge", "Critical care transport surcharge", res.CCTSurcharge, nil, nil)
		}
	}

	// 5. Bariatric surcharge.
	if req.TransportType == TransportBariatric || req.Crew.RequiresBariatric {
		res.BariatricSurcharge = nonNegative(rc.BariatricSurcharge)
		if res.BariatricSurcharge.IsPositive() {
			res.addLine("bariatric_surcharge", "Bariatric transport surcharge", res.BariatricSurcharge, nil, nil)
		}
	}

	// 6. HEMS charge.
	if req.TransportType == TransportHEMS {
		res.HEMSCharge = nonNegative(rc.HEMSCharge)
		if res.HEMSCharge.IsPositive() {
			res.addLine("hems_charge", "Helicopter EMS transport charge", res.HEMSCharge, nil, nil)
		}
	}

	// 7/8. Night and holiday surcharges apply to base + mileage only.
	baseAndMileage := res.BaseAmbulanceFee.Add(res.MileageCharge)
	if req.IsNightTransport {
		res.NightSurcharge = baseAndMileage.Mul(nonNegative(rc.NightSurchargePct))
		if res.NightSurcharge.IsPositive() {
			res.addLine("night_surcharge", "Night transport surcharge", res.NightSurcharge, nil, nil)
		}
	}
	if req.IsHoliday {
		res.HolidaySurcharge = baseAndMileage.Mul(nonNegative(rc.HolidaySurchargePct))
		if res.HolidaySurcharge.IsPositive() {
			res.addLine("holiday_surcharge", "Holiday transport surcharge", res.HolidaySurcharge, nil, nil)
		}
	}

	// 9. Extended time: first hour included, each started hour beyond it
	// bills at the hourly rate.
	if req.TransportDurationMinute > 60 {
		billedHours := (req.TransportDurationMinute + 59) / 60
		extra := decimal.NewFromInt(int64(billedHours - 1))
		res.ExtendedTimeCharge = extra.Mul(nonNegative(rc.ExtendedHourlyRate))
		if res.ExtendedTimeCharge.IsPositive() {
			rate := rc.ExtendedHourlyRate
			res.addLine("extended_time", fmt.Sprintf("Extended transport time (%s additional hours)", extra), res.ExtendedTimeCharge, &extra, &rate)
		}
	}

	// 10. Procedures, one line each in input order.
	for _, p := range req.Procedures {
		qty := p.Quantity
		if qty <= 0 {
			qty = 1
		}
		q := decimal.NewFromInt(int64(qty))
		amount := nonNegative(p.UnitCharge).Mul(q)
		res.ProcedureCharges = res.ProcedureCharges.Add(amount)
		if amount.IsPositive() {
			unit := p.UnitCharge
			desc := p.Description
			if desc == "" {
				desc = p.Code
			}
			res.addLine("procedure:"+p.Code, desc, amount, &q, &unit)
		}
	}

	res.Subtotal = res.BaseAmbulanceFee.
		Add(res.MileageCharge).
		Add(res.ParamedicSurcharge).
		Add(res.CCTSurcharge).
		Add(res.BariatricSurcharge).
		Add(res.HEMSCharge).
		Add(res.NightSurcharge).
		Add(res.HolidaySurcharge).
		Add(res.ExtendedTimeCharge).
		Add(res.ProcedureCharges)

	// 11. Communications, tracked outside the subtotal.
	if req.Communications.VoiceMinutes > 0 {
		mins := decimal.NewFromInt(int64(req.Communications.VoiceMinutes))
		voice := mins.Mul(nonNegative(rc.VoiceRatePerMinute))
		res.CommunicationCosts = res.CommunicationCosts.Add(voice)
		if voice.IsPositive() {
			rate := rc.VoiceRatePerMinute
			res.addLine("voice_communications", fmt.Sprintf("Voice communications (%s minutes)", mins), voice, &mins, &rate)
		}
	}
	if req.Communications.SMSCount > 0 {
		count := decimal.NewFromInt(int64(req.Communications.SMSCount))
		sms := count.Mul(nonNegative(rc.SMSRatePerMessage))
		res.CommunicationCosts = res.CommunicationCosts.Add(sms)
		if sms.IsPositive() {
			rate := rc.SMSRatePerMessage
			res.addLine("sms_communications", fmt.Sprintf("SMS messages (%s)", count), sms, &count, &rate)
		}
	}

	res.TotalCharge = res.Subtotal.Add(res.CommunicationCosts)
	return res
}

func (r *ChargeCalculationResult) addLine(item, description string, amount decimal.Decimal, qty, unitPrice *decimal.Decimal) {
	r.Breakdown = append(r.Breakdown, ChargeBreakdownLine{
		Item:        item,
		Description: description,
		Amount:      amount,
		Quantity:    qty,
		UnitPrice:   unitPrice,
	})
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IsNightHour reports whether the local hour falls in the night surcharge
// window (20:00 through 05:59). Intake uses this on the transport's local
// time; the calculator itself never inspects clocks.
func IsNightHour(t time.Time) bool {
	h := t.Hour()
	return h >= 20 || h < 6
}

// IsFederalHoliday reports whether t falls on a billed holiday.
func IsFederalHoliday(t time.Time) bool {
	switch {
	case t.Month() == time.January && t.Day() == 1:
		return true
	case t.Month() == time.July && t.Day() == 4:
		return true
	case t.Month() == time.December && t.Day() == 25:
		return true
	}
	return false
}
