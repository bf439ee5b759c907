// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request validation errors
	CodeParticipantRequired Code = "PARTICIPANT_REQUIRED"
	CodeScenarioRequired    Code = "SCENARIO_REQUIRED"
	CodeInvalidRotation     Code = "INVALID_ROTATION_ENTRY"

	// Scenario errors
	CodeScenarioUnknown       Code = "SCENARIO_UNKNOWN"
	CodeScenarioNotActive     Code = "SCENARIO_NOT_ACTIVE"
	CodeScenarioNoPending     Code = "SCENARIO_NO_PENDING"
	CodeScenarioTransitioning Code = "SCENARIO_TRANSITION_BLOCKED"
	CodeInstanceNotFound      Code = "SCENARIO_INSTANCE_NOT_FOUND"
	CodeTrackerNotFound       Code = "SCENARIO_TRACKER_NOT_FOUND"

	// Voting errors
	CodeNotAuthority       Code = "NOT_AUTHORITY"
	CodeVotingInactive     Code = "VOTING_INACTIVE"
	CodeOptionUnknown      Code = "VOTE_OPTION_UNKNOWN"
	CodeParticipantUnknown Code = "PARTICIPANT_UNKNOWN"
	CodeVetoUnavailable    Code = "VETO_UNAVAILABLE"
	CodeVetoAlreadyUsed    Code = "VETO_ALREADY_USED"
	CodeNoWinner           Code = "VOTE_NO_WINNER"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeParticipantRequired,
		CodeScenarioRequired,
		CodeInvalidRotation,
		CodeOptionUnknown:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeScenarioNotActive,
		CodeScenarioNoPending,
		CodeScenarioTransitioning,
		CodeVotingInactive,
		CodeVetoUnavailable,
		CodeVetoAlreadyUsed,
		CodeNoWinner:
		return codes.FailedPrecondition

	// NotFound - missing entities
	case CodeNotFound,
		CodeScenarioUnknown,
		CodeInstanceNotFound,
		CodeTrackerNotFound,
		CodeParticipantUnknown:
		return codes.NotFound

	// PermissionDenied - mirrors may not mutate
	case CodeNotAuthority:
		return codes.PermissionDenied

	case CodeStorageUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
