package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
)

var (
	// ErrEmptyInput is returned when there is no text to analyze or parse.
	ErrEmptyInput = errors.New("analysis input is empty")
	// ErrMalformedAnalysis is returned when model output cannot be repaired.
	ErrMalformedAnalysis = errors.New("analysis output is malformed")
)

// Normalize turns an untrusted analysis into a complete, consistent Result.
// Steps run in a fixed order: shape repair, missing clause synthesis,
// critical clause escalation, risk validation, flag type backfill.
// Normalizing a Result's Raw() again yields the same Result.
func Normalize(raw *RawAnalysis) (Result, error) {
	if raw == nil {
		return Result{}, ErrMalformedAnalysis
	}
	confidence := float64(raw.Confidence)
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return Result{}, fmt.Errorf("%w: confidence is not finite", ErrMalformedAnalysis)
	}

	result := repairShape(raw)

	missing := missingClauses(result)
	for _, clause := range missing {
		if hasMissingClauseFlag(result.RiskFlags, clause.Name) {
			continue
		}
		result.RiskFlags = append(result.RiskFlags, missingClauseFlag(clause))
	}

	for _, clause := range missing {
		if clause.Critical() {
			result.OverallRisk = enums.RiskLevelHigh
			result.Confidence = min(result.Confidence, escalatedConfidenceCeiling)
			break
		}
	}

	threshold, known := confidenceThresholds[result.OverallRisk]
	if !known || result.Confidence < threshold {
		result.OverallRisk = enums.RiskLevelHigh
	}

	for i := range result.RiskFlags {
		if result.RiskFlags[i].Type == "" {
			result.RiskFlags[i].Type = FlagTypeGeneralRisk
		}
	}

	return result, nil
}

// repairShape fills absent lists and trims every field. Parties are kept even
// when unnamed; a party type outside individual/organization becomes
// organization.
func repairShape(raw *RawAnalysis) Result {
	result := Result{
		OverallRisk: enums.RiskLevel(strings.ToLower(strings.TrimSpace(raw.OverallRisk))),
		Confidence:  clampConfidence(float64(raw.Confidence)),
		KeyInformation: KeyInformation{
			Parties:       []Party{},
			CriticalDates: []CriticalDate{},
		},
		RiskFlags: make([]RiskFlag, 0, len(raw.RiskFlags)),
	}

	if info := raw.KeyInformation; info != nil {
		result.KeyInformation.StartDate = strings.TrimSpace(info.StartDate)
		result.KeyInformation.EndDate = strings.TrimSpace(info.EndDate)
		result.KeyInformation.Value = strings.TrimSpace(info.Value)
		result.KeyInformation.GoverningLaw = strings.TrimSpace(info.GoverningLaw)
		for _, party := range info.Parties {
			name := strings.TrimSpace(party.Name)
			partyType := enums.PartyType(strings.ToLower(strings.TrimSpace(string(party.Type))))
			if !partyType.IsValid() {
				partyType = enums.PartyTypeOrganization
			}
			result.KeyInformation.Parties = append(result.KeyInformation.Parties, Party{Name: name, Type: partyType})
		}
		for _, date := range info.CriticalDates {
			result.KeyInformation.CriticalDates = append(result.KeyInformation.CriticalDates, CriticalDate{
				Description: strings.TrimSpace(date.Description),
				Date:        strings.TrimSpace(date.Date),
			})
		}
	}

	for _, flag := range raw.RiskFlags {
		severity := enums.RiskLevel(strings.ToLower(strings.TrimSpace(flag.Severity)))
		if !severity.IsValid() {
			severity = enums.RiskLevelHigh
		}
		action := strings.TrimSpace(flag.RecommendedAction)
		if action == "" {
			action = strings.TrimSpace(flag.Recommendation)
		}
		result.RiskFlags = append(result.RiskFlags, RiskFlag{
			Type:              strings.TrimSpace(flag.Type),
			Severity:          severity,
			Description:       strings.TrimSpace(flag.Description),
			Clause:            strings.TrimSpace(flag.Clause),
			RecommendedAction: action,
		})
	}
	return result
}

func clampConfidence(value float64) int {
	rounded := int(math.Round(value))
	return max(0, min(100, rounded))
}

// missingClauses lists standard clauses absent from result. Flags synthesized
// by an earlier run do not count as evidence that a clause exists.
func missingClauses(result Result) []StandardClause {
	var missing []StandardClause
	for _, clause := range standardClauses {
		if !clausePresent(result, clause.Name) {
			missing = append(missing, clause)
		}
	}
	return missing
}

func clausePresent(result Result, name string) bool {
	lowered := strings.ToLower(name)
	for _, flag := range result.RiskFlags {
		if flag.Type == FlagTypeMissingClause {
			continue
		}
		if strings.EqualFold(flag.Clause, name) {
			return true
		}
	}
	for _, party := range result.KeyInformation.Parties {
		if party.Name == "" {
			continue
		}
		if strings.Contains(strings.ToLower(party.Name), lowered) {
			return true
		}
	}
	return false
}

func hasMissingClauseFlag(flags []RiskFlag, name string) bool {
	for _, flag := range flags {
		if flag.Type == FlagTypeMissingClause && strings.EqualFold(flag.Clause, name) {
			return true
		}
	}
	return false
}

func missingClauseFlag(clause StandardClause) RiskFlag {
	return RiskFlag{
		Type:              FlagTypeMissingClause,
		Severity:          clause.RiskLevel,
		Description:       fmt.Sprintf("Missing %s clause", clause.Name),
		Clause:            clause.Name,
		RecommendedAction: fmt.Sprintf("Add %s clause: %s", strings.ToLower(clause.Name), clause.Description),
	}
}
