package domain

type SessionState string

const (
	SessionIdle        SessionState = "idle"
	SessionConfiguring SessionState = "configuring"
	SessionStreaming   SessionState = "streaming"
	SessionCompleted   SessionState = "completed"
	SessionCanceled    SessionState = "canceled"
	SessionFailed      SessionState = "failed"
)

func (s SessionState) Terminal() bool {
	switch s {
	case SessionCompleted, SessionCanceled, SessionFailed:
		return true
	default:
		return false
	}
}

var sessionTransitions = map[SessionState][]SessionState{
	SessionIdle:        {SessionConfiguring, SessionCanceled},
	SessionConfiguring: {SessionStreaming, SessionFailed, SessionCanceled},
	SessionStreaming:   {SessionCompleted, SessionCanceled, SessionFailed},
}

func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
