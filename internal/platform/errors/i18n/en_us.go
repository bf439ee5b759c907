package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeParticipantRequired   = "PARTICIPANT_REQUIRED"
	CodeScenarioRequired      = "SCENARIO_REQUIRED"
	CodeInvalidRotation       = "INVALID_ROTATION_ENTRY"
	CodeScenarioUnknown       = "SCENARIO_UNKNOWN"
	CodeScenarioNotActive     = "SCENARIO_NOT_ACTIVE"
	CodeScenarioNoPending     = "SCENARIO_NO_PENDING"
	CodeScenarioTransitioning = "SCENARIO_TRANSITION_BLOCKED"
	CodeInstanceNotFound      = "SCENARIO_INSTANCE_NOT_FOUND"
	CodeTrackerNotFound       = "SCENARIO_TRACKER_NOT_FOUND"
	CodeNotAuthority          = "NOT_AUTHORITY"
	CodeVotingInactive        = "VOTING_INACTIVE"
	CodeOptionUnknown         = "VOTE_OPTION_UNKNOWN"
	CodeParticipantUnknown    = "PARTICIPANT_UNKNOWN"
	CodeVetoUnavailable       = "VETO_UNAVAILABLE"
	CodeVetoAlreadyUsed       = "VETO_ALREADY_USED"
	CodeNoWinner              = "VOTE_NO_WINNER"
	CodeNotFound              = "NOT_FOUND"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
)

var enUSCatalog = &Catalog{
	locale: BaseLocale,
	messages: map[Code]string{
		// Request validation
		CodeParticipantRequired: "A participant id is required",
		CodeScenarioRequired:    "A scenario id is required",
		CodeInvalidRotation:     "Rotation entry for {{.ScenarioID}} is invalid",

		// Scenarios
		CodeScenarioUnknown:       "Scenario {{.ScenarioID}} is not in the catalog",
		CodeScenarioNotActive:     "Scenario {{.ScenarioID}} is not active",
		CodeScenarioNoPending:     "No scenario is waiting to start",
		CodeScenarioTransitioning: "Another scenario is still active; force the transition to replace it",
		CodeInstanceNotFound:      "Scenario instance {{.InstanceID}} was not found",
		CodeTrackerNotFound:       "Tracker {{.Tracker}} is not part of the current stage",

		// Voting
		CodeNotAuthority:       "Only the authoritative host can change voting state",
		CodeVotingInactive:     "Voting is not open",
		CodeOptionUnknown:      "{{.ScenarioID}} is not one of the current options",
		CodeParticipantUnknown: "Participant {{.ParticipantID}} is not part of this session",
		CodeVetoUnavailable:    "Vetoes are disabled for this vote",
		CodeVetoAlreadyUsed:    "You already used your veto this round",
		CodeNoWinner:           "The vote ended without a winner",

		// Storage
		CodeNotFound:           "The requested record was not found",
		CodeStorageUnavailable: "Statistics storage is unavailable",
	},
}
