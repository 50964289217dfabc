package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
)

// FlagTypeMissingClause marks flags synthesized for absent standard clauses.
const (
	FlagTypeMissingClause = "missing_clause"
	FlagTypeGeneralRisk   = "general_risk"
)

// Party is a contracting party extracted from the document.
type Party struct {
	Name string          `json:"name"`
	Type enums.PartyType `json:"type"`
}

// UnmarshalJSON accepts either {"name","type"} objects or bare party names.
func (p *Party) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*p = Party{Name: name}
		return nil
	}
	type plain Party
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*p = Party(decoded)
	return nil
}

// CriticalDate is a dated obligation or milestone.
type CriticalDate struct {
	Description string `json:"description"`
	Date        string `json:"date"`
}

// KeyInformation holds the extracted contract facts.
type KeyInformation struct {
	Parties       []Party        `json:"parties"`
	StartDate     string         `json:"startDate,omitempty"`
	EndDate       string         `json:"endDate,omitempty"`
	Value         string         `json:"value,omitempty"`
	GoverningLaw  string         `json:"governingLaw,omitempty"`
	CriticalDates []CriticalDate `json:"criticalDates"`
}

// RiskFlag describes one identified risk.
type RiskFlag struct {
	Type              string          `json:"type"`
	Severity          enums.RiskLevel `json:"severity"`
	Description       string          `json:"description"`
	Clause            string          `json:"clause,omitempty"`
	RecommendedAction string          `json:"recommendedAction,omitempty"`
}

// Result is a normalized analysis ready to persist.
type Result struct {
	OverallRisk    enums.RiskLevel `json:"overallRisk"`
	Confidence     int             `json:"confidence"`
	KeyInformation KeyInformation  `json:"keyInformation"`
	RiskFlags      []RiskFlag      `json:"riskFlags"`
}

// RawAnalysis is the untrusted analysis decoded from model output. Absent
// collections stay nil until normalization.
type RawAnalysis struct {
	OverallRisk    string             `json:"overallRisk"`
	Confidence     Number             `json:"confidence"`
	KeyInformation *RawKeyInformation `json:"keyInformation"`
	RiskFlags      []RawRiskFlag      `json:"riskFlags"`
}

// RawKeyInformation mirrors KeyInformation with tolerant decoding.
type RawKeyInformation struct {
	Parties       []Party        `json:"parties"`
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate"`
	Value         string         `json:"value"`
	GoverningLaw  string         `json:"governingLaw"`
	CriticalDates []CriticalDate `json:"criticalDates"`
}

// RawRiskFlag accepts "recommendation" as an alias of "recommendedAction".
type RawRiskFlag struct {
	Type              string `json:"type"`
	Severity          string `json:"severity"`
	Description       string `json:"description"`
	Clause            string `json:"clause"`
	RecommendedAction string `json:"recommendedAction"`
	Recommendation    string `json:"recommendation"`
}

// Number decodes JSON numbers and numeric strings.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*n = 0
		return nil
	}
	trimmed = strings.Trim(trimmed, `"`)
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
	if err != nil {
		return fmt.Errorf("confidence %s is not numeric", string(data))
	}
	*n = Number(value)
	return nil
}

// Raw converts a normalized result back into the untrusted shape so it can be
// normalized again.
func (r Result) Raw() *RawAnalysis {
	flags := make([]RawRiskFlag, 0, len(r.RiskFlags))
	for _, flag := range r.RiskFlags {
		flags = append(flags, RawRiskFlag{
			Type:              flag.Type,
			Severity:          string(flag.Severity),
			Description:       flag.Description,
			Clause:            flag.Clause,
			RecommendedAction: flag.RecommendedAction,
		})
	}
	info := r.KeyInformation
	return &RawAnalysis{
		OverallRisk: string(r.OverallRisk),
		Confidence:  Number(r.Confidence),
		KeyInformation: &RawKeyInformation{
			Parties:       append([]Party(nil), info.Parties...),
			StartDate:     info.StartDate,
			EndDate:       info.EndDate,
			Value:         info.Value,
			GoverningLaw:  info.GoverningLaw,
			CriticalDates: append([]CriticalDate(nil), info.CriticalDates...),
		},
		RiskFlags: flags,
	}
}
