package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = ActorContext{UserID: 1, TenantID: 1, Role: RoleAdmin}
	employee = ActorContext{UserID: 2, TenantID: 1, Role: RoleEmployee}
)

func TestDecideApprovalTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		from       ApprovalStatus
		action     ApprovalAction
		actor      ActorContext
		reason     string
		wantStatus ApprovalStatus
		wantReason *string
	}{
		{"approve pending", ApprovalPending, ActionApprove, admin, "ignored", ApprovalApproved, nil},
		{"reject with reason", ApprovalPending, ActionReject, admin, "Wrong amount", ApprovalRejected, strPtr("Wrong amount")},
		{"reject default reason", ApprovalPending, ActionReject, admin, "", ApprovalRejected, strPtr(DefaultRejectReason)},
		{"hold default reason", ApprovalPending, ActionHold, admin, "  ", ApprovalOnHold, strPtr(DefaultHoldReason)},
		{"employee acknowledges rejection", ApprovalRejected, ActionAcknowledge, employee, "", ApprovalOnHold, strPtr(AcknowledgedReason)},
		{"resend from on-hold", ApprovalOnHold, ActionResend, employee, "", ApprovalPending, nil},
		{"resend from rejected", ApprovalRejected, ActionResend, admin, "", ApprovalPending, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := "previous"
			current := ApprovalState{Status: tt.from, Reason: &reason}

			next, err := DecideApproval(current, tt.action, tt.actor, tt.reason, now)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, next.Status)
			assert.Equal(t, tt.wantReason, next.Reason)
			assert.Equal(t, ApprovalState{Status: tt.from, Reason: &reason}, current, "input must not be mutated")

			if tt.action == ActionResend {
				assert.Nil(t, next.ApproverID)
				assert.Nil(t, next.ApprovedAt)
			} else {
				require.NotNil(t, next.ApproverID)
				assert.Equal(t, tt.actor.UserID, *next.ApproverID)
				require.NotNil(t, next.ApprovedAt)
				assert.Equal(t, now, *next.ApprovedAt)
			}
		})
	}
}

func TestDecideApprovalRejectsEmployeeForAdminActions(t *testing.T) {
	for _, action := range []ApprovalAction{ActionApprove, ActionReject, ActionHold} {
		_, err := DecideApproval(ApprovalState{Status: ApprovalPending}, action, employee, "", time.Now())
		assert.True(t, errors.Is(err, ErrForbidden), "action %s", action)
	}
}

// Every (state, action) pair outside the transition table fails validation
// and leaves the state untouched.
func TestDecideApprovalInvalidPairs(t *testing.T) {
	statuses := []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalOnHold}
	actions := []ApprovalAction{ActionApprove, ActionReject, ActionHold, ActionAcknowledge, ActionResend}

	for _, status := range statuses {
		for _, action := range actions {
			if CanTransition(status, action) {
				continue
			}
			current := ApprovalState{Status: status}
			next, err := DecideApproval(current, action, admin, "", time.Now())

			verr, ok := AsValidationError(err)
			require.True(t, ok, "%s from %s should fail validation, got %v", action, status, err)
			assert.Contains(t, verr.Fields, "action")
			assert.Equal(t, current, next)
		}
	}
}

func TestApprovedIsTerminal(t *testing.T) {
	for _, action := range []ApprovalAction{ActionApprove, ActionReject, ActionHold, ActionAcknowledge, ActionResend} {
		assert.False(t, CanTransition(ApprovalApproved, action), "approved must not allow %s", action)
	}
}

func TestParseApprovalAction(t *testing.T) {
	action, ok := ParseApprovalAction(" Approve ")
	assert.True(t, ok)
	assert.Equal(t, ActionApprove, action)

	_, ok = ParseApprovalAction("delete")
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RoleEmployee, ParseRole("employee"))
	assert.Equal(t, RoleEmployee, ParseRole("superuser"))
	assert.Equal(t, RoleEmployee, ParseRole(""))
}

func strPtr(s string) *string {
	return &s
}
