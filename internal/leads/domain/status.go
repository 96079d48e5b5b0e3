package domain

// Status is the color-coded funnel status of a lead.
type Status string

const (
	// StatusOrange is the initial status: imported, no interaction yet.
	StatusOrange Status = "ORANGE"
	// StatusGreen marks a lead that engaged with an outreach channel.
	StatusGreen Status = "GREEN"
	// StatusBlue marks a delinquent proposal.
	StatusBlue Status = "BLUE"
	// StatusRed marks a complaint.
	StatusRed Status = "RED"
	// StatusPurple marks a paid proposal.
	StatusPurple Status = "PURPLE"
	// StatusWhite marks an expired proposal or signing link.
	StatusWhite Status = "WHITE"
	// StatusRejected marks a rejected proposal.
	StatusRejected Status = "REJECTED"
)

// PausesAutomation reports whether entering this status forces
// automation_paused. These transitions are irreversible without
// manual intervention.
func (s Status) PausesAutomation() bool {
	return s == StatusPurple || s == StatusWhite || s == StatusRed
}

// OutranksEngagement reports whether this status represents a financial
// outcome that an engagement signal (click, pressed 1) must not downgrade.
func (s Status) OutranksEngagement() bool {
	return s == StatusPurple || s == StatusBlue
}

// Terminal reports whether the lead has left the active funnel; terminal
// leads are skipped by the expiration sweep.
func (s Status) Terminal() bool {
	return s == StatusPurple || s == StatusWhite || s == StatusRejected
}

// ProposalStatus is the state of the lead's loan proposal.
type ProposalStatus string

const (
	ProposalPending    ProposalStatus = "PENDING"
	ProposalPaid       ProposalStatus = "PAID"
	ProposalDelinquent ProposalStatus = "DELINQUENT"
	ProposalExpired    ProposalStatus = "EXPIRED"
	ProposalCanceled   ProposalStatus = "CANCELED"
)

// ConnectionStatus is the health of a WhatsApp pool connection. It appears
// both on pool members and on the lead's attribution snapshot.
type ConnectionStatus string

const (
	ConnectionActive      ConnectionStatus = "ACTIVE"
	ConnectionBanned      ConnectionStatus = "BANNED"
	ConnectionOffline     ConnectionStatus = "OFFLINE"
	ConnectionMaintenance ConnectionStatus = "MAINTENANCE"
)

// CallOutcome is the typed result of one voice-AI call attempt.
type CallOutcome string

const (
	OutcomeNoAnswer         CallOutcome = "NO_ANSWER"
	OutcomeCallDropped      CallOutcome = "CALL_DROPPED"
	OutcomeVoicemail        CallOutcome = "VOICEMAIL"
	OutcomeInvalid          CallOutcome = "INVALID"
	OutcomeNonexistent      CallOutcome = "NONEXISTENT"
	OutcomePressed1         CallOutcome = "PRESSED_1"
	OutcomeAnsweredNoAction CallOutcome = "ANSWERED_NO_ACTION"
	OutcomeAskedOperator    CallOutcome = "ASKED_OPERATOR"
)

// Valid reports whether the outcome is one the dialer may report.
func (o CallOutcome) Valid() bool {
	switch o {
	case OutcomeNoAnswer, OutcomeCallDropped, OutcomeVoicemail, OutcomeInvalid,
		OutcomeNonexistent, OutcomePressed1, OutcomeAnsweredNoAction, OutcomeAskedOperator:
		return true
	}
	return false
}

// MarksPhoneInapt reports whether the outcome permanently disqualifies the
// dialed number.
func (o CallOutcome) MarksPhoneInapt() bool {
	return o == OutcomeVoicemail || o == OutcomeInvalid || o == OutcomeNonexistent
}

// StopsCycle reports whether the outcome ends the whole call cycle.
func (o CallOutcome) StopsCycle() bool {
	return o == OutcomePressed1 || o == OutcomeAskedOperator
}

// TriggersRedial reports whether the outcome enters the re-dial sub-sequence.
func (o CallOutcome) TriggersRedial() bool {
	return o == OutcomeNoAnswer || o == OutcomeCallDropped
}
