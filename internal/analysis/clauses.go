package analysis

import "github.com/angelmondragon/clausewise-backend/pkg/enums"

// StandardClause is a clause every well formed contract is checked for.
type StandardClause struct {
	Name        string
	Required    bool
	RiskLevel   enums.RiskLevel
	Description string
}

var standardClauses = []StandardClause{
	{Name: "Parties", Required: true, RiskLevel: enums.RiskLevelHigh, Description: "Clearly identifies all parties to the contract"},
	{Name: "Term", Required: true, RiskLevel: enums.RiskLevelHigh, Description: "Specifies contract duration and termination conditions"},
	{Name: "Consideration", Required: true, RiskLevel: enums.RiskLevelHigh, Description: "Details payment terms and obligations"},
	{Name: "Governing Law", Required: true, RiskLevel: enums.RiskLevelMedium, Description: "Specifies jurisdiction and applicable laws"},
	{Name: "Indemnification", Required: false, RiskLevel: enums.RiskLevelMedium, Description: "Outlines liability and protection terms"},
	{Name: "Force Majeure", Required: false, RiskLevel: enums.RiskLevelMedium, Description: "Addresses unforeseeable circumstances"},
	{Name: "Confidentiality", Required: false, RiskLevel: enums.RiskLevelMedium, Description: "Protects sensitive information"},
	{Name: "Assignment", Required: false, RiskLevel: enums.RiskLevelMedium, Description: "Controls transfer of rights/obligations"},
}

// StandardClauses returns the clause registry in evaluation order.
func StandardClauses() []StandardClause {
	out := make([]StandardClause, len(standardClauses))
	copy(out, standardClauses)
	return out
}

// Critical reports whether a missing clause forces escalation.
func (c StandardClause) Critical() bool {
	return c.Required && c.RiskLevel == enums.RiskLevelHigh
}

// confidenceThresholds is the minimum confidence, on the 0-100 scale, needed
// to keep a claimed overall risk level.
var confidenceThresholds = map[enums.RiskLevel]int{
	enums.RiskLevelHigh:   80,
	enums.RiskLevelMedium: 50,
	enums.RiskLevelLow:    20,
}

const escalatedConfidenceCeiling = 70
