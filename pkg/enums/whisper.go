package enums

import "fmt"

// WhisperTheme groups whispers for browsing.
type WhisperTheme string

const (
	WhisperThemeDigitalWellness     WhisperTheme = "Digital Wellness"
	WhisperThemeEcoMindfulness      WhisperTheme = "Eco-Mindfulness"
	WhisperThemeGentleProductivity  WhisperTheme = "Gentle Productivity"
	WhisperThemeAuthenticConnection WhisperTheme = "Authentic Connection"
	WhisperThemeMicroJoy            WhisperTheme = "Micro-Joy"
	WhisperThemeResilience          WhisperTheme = "Resilience"
)

var validWhisperThemes = []WhisperTheme{
	WhisperThemeDigitalWellness,
	WhisperThemeEcoMindfulness,
	WhisperThemeGentleProductivity,
	WhisperThemeAuthenticConnection,
	WhisperThemeMicroJoy,
	WhisperThemeResilience,
}

// String implements fmt.Stringer.
func (w WhisperTheme) String() string {
	return string(w)
}

// IsValid reports whether the value is known.
func (w WhisperTheme) IsValid() bool {
	for _, candidate := range validWhisperThemes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWhisperTheme converts raw input into a WhisperTheme.
func ParseWhisperTheme(value string) (WhisperTheme, error) {
	for _, candidate := range validWhisperThemes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid whisper theme %q", value)
}

// ReportReason explains why a whisper was flagged.
type ReportReason string

const (
	ReportReasonInappropriate  ReportReason = "inappropriate"
	ReportReasonSpam           ReportReason = "spam"
	ReportReasonHarassment     ReportReason = "harassment"
	ReportReasonMisinformation ReportReason = "misinformation"
	ReportReasonOther          ReportReason = "other"
)

var validReportReasons = []ReportReason{
	ReportReasonInappropriate,
	ReportReasonSpam,
	ReportReasonHarassment,
	ReportReasonMisinformation,
	ReportReasonOther,
}

// String implements fmt.Stringer.
func (r ReportReason) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r ReportReason) IsValid() bool {
	for _, candidate := range validReportReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportReason converts raw input into a ReportReason.
func ParseReportReason(value string) (ReportReason, error) {
	for _, candidate := range validReportReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report reason %q", value)
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportStatusPending         ReportStatus = "pending"
	ReportStatusInvestigating   ReportStatus = "investigating"
	ReportStatusResolvedRemoved ReportStatus = "resolved_removed"
	ReportStatusResolvedKept    ReportStatus = "resolved_kept"
	ReportStatusDismissed       ReportStatus = "dismissed"
)

var validReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusInvestigating,
	ReportStatusResolvedRemoved,
	ReportStatusResolvedKept,
	ReportStatusDismissed,
}

// String implements fmt.Stringer.
func (s ReportStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReportStatus converts raw input into a ReportStatus.
func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}
