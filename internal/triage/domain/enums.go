package domain

import "fmt"

// Department is the top-level routing target for a thread.
type Department string

const (
	DepartmentStaffing       Department = "STAFFING"
	DepartmentCaseManagement Department = "CASE_MANAGEMENT"
	DepartmentBilling        Department = "BILLING"
)

// Stage is a department-scoped workflow sub-status. Stage lists are
// per-department and must be validated everywhere a stage is written.
type Stage string

const (
	StageOpenPending        Stage = "OPEN_PENDING"
	StageRequestContactInfo Stage = "REQUEST_CONTACT_INFO"
	StageContactInfoSent    Stage = "CONTACT_INFO_SENT"
	StageProviderScheduled  Stage = "PROVIDER_SCHEDULED"
	StageStaffed            Stage = "STAFFED"
	StageFollowingUp        Stage = "FOLLOWING_UP"
	StageComplete           Stage = "COMPLETE"
)

// StagesByDepartment is the single source of truth for allowed stages.
var StagesByDepartment = map[Department][]Stage{
	DepartmentStaffing: {
		StageOpenPending,
		StageRequestContactInfo,
		StageContactInfoSent,
		StageProviderScheduled,
		StageStaffed,
	},
	DepartmentCaseManagement: {StageFollowingUp, StageComplete},
	DepartmentBilling:        {StageFollowingUp, StageComplete},
}

// ProcessingStatus tracks a thread through the pipeline.
type ProcessingStatus string

const (
	ProcessingStatusNew        ProcessingStatus = "NEW"
	ProcessingStatusClassified ProcessingStatus = "CLASSIFIED"
	ProcessingStatusDrafted    ProcessingStatus = "DRAFTED"
	ProcessingStatusDone       ProcessingStatus = "DONE"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// AttachmentStatus transitions are monotonic: once EXTRACTED or FAILED
// an attachment is only reprocessed when its content hash changes.
type AttachmentStatus string

const (
	AttachmentStatusPending   AttachmentStatus = "PENDING"
	AttachmentStatusExtracted AttachmentStatus = "EXTRACTED"
	AttachmentStatusFailed    AttachmentStatus = "FAILED"
)

// DraftType covers the scope-required scenarios. Drafts are draft-first:
// nothing external is auto-sent without human approval.
type DraftType string

const (
	DraftTypeExternalReply              DraftType = "EXTERNAL_REPLY"
	DraftTypeStaffingRequestContactInfo DraftType = "STAFFING_REQUEST_CONTACT_INFO"
	DraftTypeStaffingStaffedConfirm     DraftType = "STAFFING_STAFFED_CONFIRMATION"
	DraftTypeCaseManagementFollowUp     DraftType = "CASE_MANAGEMENT_FOLLOW_UP"
	DraftTypeBillingFollowUp            DraftType = "BILLING_FOLLOW_UP"
	DraftTypeAuthorizationFollowUp      DraftType = "AUTHORIZATION_FOLLOW_UP"
	DraftTypeEscalationInternal         DraftType = "ESCALATION_INTERNAL"
)

var allDraftTypes = []DraftType{
	DraftTypeExternalReply,
	DraftTypeStaffingRequestContactInfo,
	DraftTypeStaffingStaffedConfirm,
	DraftTypeCaseManagementFollowUp,
	DraftTypeBillingFollowUp,
	DraftTypeAuthorizationFollowUp,
	DraftTypeEscalationInternal,
}

// DraftStatus lifecycle for one draft version.
type DraftStatus string

const (
	DraftStatusCreated   DraftStatus = "CREATED"
	DraftStatusEdited    DraftStatus = "EDITED"
	DraftStatusApproved  DraftStatus = "APPROVED"
	DraftStatusSent      DraftStatus = "SENT"
	DraftStatusDiscarded DraftStatus = "DISCARDED"
)

// draftStatusTransitions is the allowed-transition adjacency table.
// SENT and DISCARDED are terminal.
var draftStatusTransitions = map[DraftStatus][]DraftStatus{
	DraftStatusCreated:   {DraftStatusEdited, DraftStatusDiscarded, DraftStatusApproved},
	DraftStatusEdited:    {DraftStatusEdited, DraftStatusDiscarded, DraftStatusApproved},
	DraftStatusApproved:  {DraftStatusSent, DraftStatusDiscarded},
	DraftStatusSent:      {},
	DraftStatusDiscarded: {},
}

// SLAHoursByDepartment is fixed by scope (hours until a classified
// thread is considered due).
var SLAHoursByDepartment = map[Department]int{
	DepartmentStaffing:       2,
	DepartmentCaseManagement: 1,
	DepartmentBilling:        4,
}

// EscalationSubjectPrefix is prepended to every internal escalation email.
const EscalationSubjectPrefix = "ESCALATION:"

// ValidDepartment reports whether d is a known department.
func ValidDepartment(d Department) bool {
	_, ok := StagesByDepartment[d]
	return ok
}

// ValidStageForDepartment reports whether stage belongs to department.
func ValidStageForDepartment(d Department, s Stage) bool {
	for _, valid := range StagesByDepartment[d] {
		if valid == s {
			return true
		}
	}
	return false
}

// DefaultStageForDepartment returns the first stage of the department's
// valid set, used when a thread changes department without an explicit
// stage.
func DefaultStageForDepartment(d Department) Stage {
	stages := StagesByDepartment[d]
	if len(stages) == 0 {
		return ""
	}
	return stages[0]
}

// AssertDepartment validates a department coming from an external source
// (AI output or API caller).
func AssertDepartment(d string) (Department, error) {
	dept := Department(d)
	if !ValidDepartment(dept) {
		return "", fmt.Errorf("invalid department: %s", d)
	}
	return dept, nil
}

// AssertStage validates a stage against a department's fixed stage set.
func AssertStage(d Department, s string) (Stage, error) {
	stage := Stage(s)
	if !ValidStageForDepartment(d, stage) {
		return "", fmt.Errorf("invalid stage %q for department %q", s, d)
	}
	return stage, nil
}

// AssertDraftType validates a draft type coming from an external source.
func AssertDraftType(t string) (DraftType, error) {
	for _, valid := range allDraftTypes {
		if DraftType(t) == valid {
			return valid, nil
		}
	}
	return "", fmt.Errorf("invalid draft type: %s", t)
}

// AssertDraftStatusTransition enforces the status adjacency table.
func AssertDraftStatusTransition(from, to DraftStatus) error {
	for _, valid := range draftStatusTransitions[from] {
		if valid == to {
			return nil
		}
	}
	return fmt.Errorf("invalid draft status transition: %s -> %s", from, to)
}
