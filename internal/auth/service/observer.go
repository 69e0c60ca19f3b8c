package service

// Observer receives engine events for metrics. A nil Observer is valid.
type Observer interface {
	ObserveRegistration(outcome string)
	ObserveLogin(outcome, reason string)
	ObserveRefresh(outcome string)
	ObserveSideEffectFailure(step string)
	ObserveSessionsExpired(n int64)
}

type nopObserver struct{}

func (nopObserver) ObserveRegistration(string) {}
func (nopObserver) ObserveLogin(string, string) {}
func (nopObserver) ObserveRefresh(string) {}
func (nopObserver) ObserveSideEffectFailure(string) {}
func (nopObserver) ObserveSessionsExpired(int64) {}

func observer(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// Side effect step names reported to ObserveSideEffectFailure.
const (
	StepAudit         = "audit"
	StepTouchAccess   = "touch_last_access"
	StepRotateSession = "rotate_session"
)
