package domain

import (
	"strings"
	"time"
)

// ApprovalStatus is the approval state of an invoice
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalOnHold   ApprovalStatus = "on-hold"
)

// ApprovalAction is a requested approval transition
type ApprovalAction string

const (
	ActionApprove     ApprovalAction = "approve"
	ActionReject      ApprovalAction = "reject"
	ActionHold        ApprovalAction = "hold"
	ActionAcknowledge ApprovalAction = "acknowledge"
	ActionResend      ApprovalAction = "resend"
)

// Default reasons stored when the actor supplies none
const (
	DefaultRejectReason = "No reason provided"
	DefaultHoldReason   = "On hold"
	AcknowledgedReason  = "Acknowledged - awaiting resolution"
)

type approvalTransition struct {
	from      []ApprovalStatus
	to        ApprovalStatus
	adminOnly bool
}

var approvalTransitions = map[ApprovalAction]approvalTransition{
	ActionApprove:     {from: []ApprovalStatus{ApprovalPending}, to: ApprovalApproved, adminOnly: true},
	ActionReject:      {from: []ApprovalStatus{ApprovalPending}, to: ApprovalRejected, adminOnly: true},
	ActionHold:        {from: []ApprovalStatus{ApprovalPending}, to: ApprovalOnHold, adminOnly: true},
	ActionAcknowledge: {from: []ApprovalStatus{ApprovalRejected}, to: ApprovalOnHold},
	ActionResend:      {from: []ApprovalStatus{ApprovalRejected, ApprovalOnHold}, to: ApprovalPending},
}

// ParseApprovalAction validates an action name
func ParseApprovalAction(s string) (ApprovalAction, bool) {
	action := ApprovalAction(strings.ToLower(strings.TrimSpace(s)))
	_, ok := approvalTransitions[action]
	return action, ok
}

// RequiresAdmin reports whether only administrators may perform the action
func (a ApprovalAction) RequiresAdmin() bool {
	return approvalTransitions[a].adminOnly
}

// CanTransition reports whether action is allowed from the given status
func CanTransition(from ApprovalStatus, action ApprovalAction) bool {
	t, ok := approvalTransitions[action]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// AuthorizeApproval checks the actor's role for an action
func AuthorizeApproval(actor ActorContext, action ApprovalAction) error {
	if action.RequiresAdmin() && !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// ApprovalState is the approval portion of an invoice
type ApprovalState struct {
	Status     ApprovalStatus `json:"approval_status"`
	Reason     *string        `json:"approval_reason"`
	ApproverID *uint          `json:"approver_id"`
	ApprovedAt *time.Time     `json:"approval_date"`
}

// DecideApproval computes the next approval state for an action.
// It does not mutate current.
func DecideApproval(current ApprovalState, action ApprovalAction, actor ActorContext, reason string, now time.Time) (ApprovalState, error) {
	if _, ok := approvalTransitions[action]; !ok {
		return current, NewValidationError("action", "invalid action")
	}
	if err := AuthorizeApproval(actor, action); err != nil {
		return current, err
	}
	if !CanTransition(current.Status, action) {
		return current, NewValidationError("action", "cannot "+string(action)+" an invoice that is "+string(current.Status))
	}

	actorID := actor.UserID
	stamped := now.UTC()
	next := ApprovalState{
		Status:     approvalTransitions[action].to,
		ApproverID: &actorID,
		ApprovedAt: &stamped,
	}

	reason = strings.TrimSpace(reason)
	switch action {
	case ActionApprove:
		next.Reason = nil
	case ActionReject:
		next.Reason = reasonOrDefault(reason, DefaultRejectReason)
	case ActionHold:
		next.Reason = reasonOrDefault(reason, DefaultHoldReason)
	case ActionAcknowledge:
		r := AcknowledgedReason
		next.Reason = &r
	case ActionResend:
		next.Reason = nil
		next.ApproverID = nil
		next.ApprovedAt = nil
	}

	return next, nil
}

// ApprovalMessage is the user facing confirmation for an action
func ApprovalMessage(action ApprovalAction) string {
	switch action {
	case ActionApprove:
		return "Invoice approved successfully"
	case ActionReject:
		return "Invoice rejected"
	case ActionHold:
		return "Invoice put on hold"
	case ActionAcknowledge:
		return "Invoice acknowledged and placed on hold"
	case ActionResend:
		return "Invoice resubmitted for approval"
	default:
		return ""
	}
}

// AuditActionFor maps an approval action to its audit log label
func AuditActionFor(action ApprovalAction) string {
	switch action {
	case ActionApprove:
		return AuditApproved
	case ActionReject:
		return AuditRejected
	case ActionHold:
		return AuditOnHold
	case ActionAcknowledge:
		return AuditAcknowledged
	case ActionResend:
		return AuditResubmitted
	default:
		return string(action)
	}
}

func reasonOrDefault(reason, fallback string) *string {
	if reason == "" {
		reason = fallback
	}
	return &reason
}
