package enums

import "fmt"

// ContractStatus tracks an upload through analysis.
type ContractStatus string

const (
	ContractStatusPending    ContractStatus = "pending"
	ContractStatusProcessing ContractStatus = "processing"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusFailed     ContractStatus = "failed"
)

var validContractStatuses = []ContractStatus{
	ContractStatusPending,
	ContractStatusProcessing,
	ContractStatusCompleted,
	ContractStatusFailed,
}

// String implements fmt.Stringer.
func (s ContractStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseContractStatus converts raw input into a ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}

// FileType lists the document formats accepted for analysis.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
)

var validFileTypes = []FileType{
	FileTypePDF,
	FileTypeDOCX,
}

// String implements fmt.Stringer.
func (f FileType) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f FileType) IsValid() bool {
	for _, candidate := range validFileTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFileType converts raw input into a FileType.
func ParseFileType(value string) (FileType, error) {
	for _, candidate := range validFileTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file type %q", value)
}

// Progress is the coarse completion percentage reported to clients.
func (s ContractStatus) Progress() int {
	switch s {
	case ContractStatusCompleted:
		return 100
	case ContractStatusProcessing:
		return 50
	default:
		return 0
	}
}

// IsTerminal reports whether no further analysis will run for the upload.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusCompleted || s == ContractStatusFailed
}

// FileTypeFromMIME maps a sniffed content type onto an accepted FileType.
func FileTypeFromMIME(mime string) (FileType, bool) {
	switch mime {
	case "application/pdf":
		return FileTypePDF, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FileTypeDOCX, true
	default:
		return "", false
	}
}

// ContentType returns the canonical MIME type for the file type.
func (f FileType) ContentType() string {
	switch f {
	case FileTypePDF:
		return "application/pdf"
	case FileTypeDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
