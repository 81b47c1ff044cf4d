package charge

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDuplicateCharge is returned when a second charge record is built for an
// incident that already has one.
var ErrDuplicateCharge = errors.New("charge record already exists for incident")

// ErrRecordLocked is returned on any attempt to rebuild or mutate a locked
// charge record.
var ErrRecordLocked = errors.New("charge record is locked")

// TransportType categorizes the transport for surcharge eligibility.
type TransportType string

const (
	TransportIFT       TransportType = "IFT"
	TransportCCT       TransportType = "CCT"
	TransportBariatric TransportType = "BARIATRIC"
	TransportHEMS      TransportType = "HEMS"
	TransportOther     TransportType = "OTHER"
)

// Valid reports whether t is a known transport type.
func (t TransportType) Valid() bool {
	switch t {
	case TransportIFT, TransportCCT, TransportBariatric, TransportHEMS, TransportOther:
		return true
	}
	return false
}

// CrewRequirements captures the crew and unit facts that drive surcharges.
type CrewRequirements struct {
	RequiresParamedic    bool `json:"requires_paramedic"`
	RequiresBariatric    bool `json:"requires_bariatric"`
	UnitParamedicCapable bool `json:"unit_paramedic_capable"`
}

// Procedure is a billable procedure performed during transport.
type Procedure struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	UnitCharge  decimal.Decimal `json:"unit_charge"`
	Quantity    int             `json:"quantity"` // defaults to 1 when zero
}

// CommunicationsUsage is tracked separately from the transport subtotal.
type CommunicationsUsage struct {
	VoiceMinutes int `json:"voice_minutes"`
	SMSCount     int `json:"sms_count"`
}

// TransportChargeRequest is the input to the charge calculator: the facts of
// a completed transport. is_night_transport and is_holiday are determined by
// the caller (intake derives them from the transport's local time zone).
type TransportChargeRequest struct {
	IncidentID              string              `json:"incident_id" validate:"required"`
	TransportType           TransportType       `json:"transport_type" validate:"required"`
	Mileage                 decimal.Decimal     `json:"mileage"`
	Crew                    CrewRequirements    `json:"crew"`
	TransportDurationMinute int                 `json:"transport_duration_minutes"`
	IsNightTransport        bool                `json:"is_night_transport"`
	IsHoliday               bool                `json:"is_holiday"`
	Procedures              []Procedure         `json:"procedures,omitempty"`
	Communications          CommunicationsUsage `json:"communications"`
}

// ChargeBreakdownLine is one itemized line. Insertion order is the
// presentation order and is reproduced exactly on every recomputation.
type ChargeBreakdownLine struct {
	Item        string           `json:"item"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// ChargeCalculationResult is the calculator's output. All amounts carry full
// decimal precision; rounding to 2 decimals happens at record build time.
type ChargeCalculationResult struct {
	BaseAmbulanceFee   decimal.Decimal       `json:"base_ambulance_fee"`
	MileageCharge      decimal.Decimal       `json:"mileage_charge"`
	ParamedicSurcharge decimal.Decimal       `json:"paramedic_surcharge"`
	CCTSurcharge       decimal.Decimal       `json:"cct_surcharge"`
	BariatricSurcharge decimal.Decimal       `json:"bariatric_surcharge"`
	HEMSCharge         decimal.Decimal       `json:"hems_charge"`
	NightSurcharge     decimal.Decimal       `json:"night_surcharge"`
	HolidaySurcharge   decimal.Decimal       `json:"holiday_surcharge"`
	ExtendedTimeCharge decimal.Decimal       `json:"extended_time_charge"`
	ProcedureCharges   decimal.Decimal       `json:"procedure_charges"`
	CommunicationCosts decimal.Decimal       `json:"communication_costs"`
	Subtotal           decimal.Decimal       `json:"subtotal"`
	TotalCharge        decimal.Decimal       `json:"total_charge"`
	Breakdown          []ChargeBreakdownLine `json:"breakdown"`
}

// InsuranceSnapshot is the insurance information captured on the incident.
type InsuranceSnapshot struct {
	Carrier        string     `json:"carrier"`
	PolicyNumber   string     `json:"policy_number"`
	SubscriberName string     `json:"subscriber_name"`
	SubscriberDOB  *time.Time `json:"subscriber_dob,omitempty"`
}

// InsuranceEstimationResult is the estimator's output.
type InsuranceEstimationResult struct {
	Primary               *InsuranceSnapshot `json:"primary,omitempty"`
	Secondary             *InsuranceSnapshot `json:"secondary,omitempty"`
	EstimatedCoverage     decimal.Decimal    `json:"estimated_coverage"`
	PatientResponsibility decimal.Decimal    `json:"patient_responsibility"`
	ClaimReady            bool               `json:"claim_ready"`
	MissingFields         []string           `json:"missing_fields,omitempty"`
}

// Billing statuses for a persisted charge record.
const (
	StatusDraft = "DRAFT"
	StatusReady = "READY"
)

// ChargeRecord is the persisted charge contract: one per incident, mutable
// only by re-running the pipeline before the record is locked.
type ChargeRecord struct {
	ID                    uuid.UUID             `db:"id" json:"id"`
	OrgID                 string                `db:"org_id" json:"org_id"`
	IncidentID            string                `db:"incident_id" json:"incident_id"`
	TransportType         TransportType         `db:"transport_type" json:"transport_type"`
	BaseAmbulanceFee      decimal.Decimal       `db:"base_ambulance_fee" json:"base_ambulance_fee"`
	MileageCharge         decimal.Decimal       `db:"mileage_charge" json:"mileage_charge"`
	ParamedicSurcharge    decimal.Decimal       `db:"paramedic_surcharge" json:"paramedic_surcharge"`
	CCTSurcharge          decimal.Decimal       `db:"cct_surcharge" json:"cct_surcharge"`
	BariatricSurcharge    decimal.Decimal       `db:"bariatric_surcharge" json:"bariatric_surcharge"`
	HEMSCharge            decimal.Decimal       `db:"hems_charge" json:"hems_charge"`
	NightSurcharge        decimal.Decimal       `db:"night_surcharge" json:"night_surcharge"`
	HolidaySurcharge      decimal.Decimal       `db:"holiday_surcharge" json:"holiday_surcharge"`
	ExtendedTimeCharge    decimal.Decimal       `db:"extended_time_charge" json:"extended_time_charge"`
	ProcedureCharges      decimal.Decimal       `db:"procedure_charges" json:"procedure_charges"`
	CommunicationCosts    decimal.Decimal       `db:"communication_costs" json:"communication_costs"`
	Subtotal              decimal.Decimal       `db:"subtotal" json:"subtotal"`
	TotalCharge           decimal.Decimal       `db:"total_charge" json:"total_charge"`
	Breakdown             []ChargeBreakdownLine `db:"breakdown" json:"breakdown"`
	EstimatedCoverage     decimal.Decimal       `db:"estimated_coverage" json:"estimated_coverage"`
	PatientResponsibility decimal.Decimal       `db:"patient_responsibility" json:"patient_responsibility"`
	ClaimReady            bool                  `db:"claim_ready" json:"claim_ready"`
	MissingFields         []string              `db:"missing_fields" json:"missing_fields,omitempty"`
	BillingStatus         string                `db:"billing_status" json:"billing_status"`
	Locked                bool                  `db:"locked" json:"locked"`
	CreatedAt             time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time             `db:"updated_at" json:"updated_at"`
}
