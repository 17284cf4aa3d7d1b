package domain

// AgentDomain identifies one of the three specialized risk agents.
type AgentDomain string

const (
	DomainFinancial  AgentDomain = "financial"
	DomainBehavioral AgentDomain = "behavioral"
	DomainVelocity   AgentDomain = "velocity"
)

// FeatureAttribution is one ranked entry of the explanation payload.
// Negative impact marks a stabilizing factor rather than a risk driver.
type FeatureAttribution struct {
	Feature string      `json:"feature"`
	Domain  AgentDomain `json:"domain"`
	Impact  float64     `json:"impact"`
	Driver  bool        `json:"driver"` // true = risk driver, false = stabilizing
}

// RiskAssessment is the fused output of the risk ensemble.
type RiskAssessment struct {
	FusionScore int       `json:"fusionScore"` // clamped to [1,99]
	Level       RiskLevel `json:"level"`
	Confidence  float64   `json:"confidence"` // [0,1]

	AgentScores map[AgentDomain]int      `json:"agentScores"`
	Reasons     map[AgentDomain][]string `json:"reasons"`
	LeadDomain  AgentDomain              `json:"leadDomain"` // highest-scoring agent

	Attributions []FeatureAttribution `json:"attributions,omitempty"`

	// Degraded marks a deterministic fallback assessment produced when
	// the model provider was unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// DecisionContext separates capacity to repay from intent to repay.
type DecisionContext struct {
	AbilityScore     int      `json:"abilityScore"`     // [5,100]
	WillingnessScore int      `json:"willingnessScore"` // [5,99]
	CaseType         CaseType `json:"caseType"`
	RareCaseDetected bool     `json:"rareCaseDetected"`

	// Source records whether scores came from a persisted authoritative
	// computation ("persisted") or were recomputed ("derived").
	Source string `json:"source"`
}

// CaseType is the ability/willingness quadrant classification.
type CaseType string

const (
	CaseNormal               CaseType = "Normal"
	CaseStrategicDefaulter   CaseType = "StrategicDefaulter"   // high ability, low willingness
	CaseVictimOfCircumstance CaseType = "VictimOfCircumstance" // low ability, high willingness
	CaseHighRiskInsolvency   CaseType = "HighRiskInsolvency"   // both low
	CasePrimeCustomer        CaseType = "PrimeCustomer"        // both high
)
