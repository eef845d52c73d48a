package types

// CaseStatus is the workflow status of a legal case
type CaseStatus string

const (
	CaseStatusDraft      CaseStatus = "draft"
	CaseStatusProcessing CaseStatus = "processing"
	CaseStatusCompleted  CaseStatus = "completed"
)

func (s CaseStatus) String() string {
	return string(s)
}
