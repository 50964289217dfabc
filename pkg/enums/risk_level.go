package enums

import "fmt"

// RiskLevel grades overall contract risk and individual flags.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

var validRiskLevels = []RiskLevel{
	RiskLevelLow,
	RiskLevelMedium,
	RiskLevelHigh,
}

// String implements fmt.Stringer.
func (l RiskLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is known.
func (l RiskLevel) IsValid() bool {
	for _, candidate := range validRiskLevels {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseRiskLevel converts raw input into a RiskLevel.
func ParseRiskLevel(value string) (RiskLevel, error) {
	for _, candidate := range validRiskLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid risk level %q", value)
}

// PartyType distinguishes natural persons from organizations.
type PartyType string

const (
	PartyTypeIndividual   PartyType = "individual"
	PartyTypeOrganization PartyType = "organization"
)

var validPartyTypes = []PartyType{
	PartyTypeIndividual,
	PartyTypeOrganization,
}

// String implements fmt.Stringer.
func (p PartyType) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PartyType) IsValid() bool {
	for _, candidate := range validPartyTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePartyType converts raw input into a PartyType.
func ParsePartyType(value string) (PartyType, error) {
	for _, candidate := range validPartyTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party type %q", value)
}
