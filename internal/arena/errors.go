package arena

import "errors"

// Control-plane violations are returned synchronously as typed errors;
// streaming-plane anomalies are rejected without tearing down the
// connection. Timer/submission races never surface as errors at all; the
// finalize-once guard absorbs them.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionClosed         = errors.New("session closed")
	ErrInvalidParticipantSet = errors.New("invalid participant set")
	ErrNotAParticipant       = errors.New("not a participant")
	ErrNotAllReady           = errors.New("not all participants ready")
	ErrNotCreator            = errors.New("only the creator may start the session")
	ErrRoundMismatch         = errors.New("submission round does not match current round")
	ErrNotYourTurn           = errors.New("not this participant's turn")
	ErrAlreadySubmitted      = errors.New("already submitted for this round")
)
