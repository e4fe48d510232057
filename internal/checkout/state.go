package checkout

// State: состояние одной попытки оформления заказа.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateAwaitingPayment State = "awaiting_payment"
	StateFinalizing      State = "finalizing"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateIdle:            {StateValidating},
	StateValidating:      {StateIdle, StateAwaitingPayment, StateFinalizing, StateFailed},
	StateAwaitingPayment: {StateIdle, StateFinalizing, StateFailed},
	StateFinalizing:      {StateIdle, StateCompleted, StateFailed},
}

// CanTransitionTo сообщает, допустим ли переход в состояние next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, завершена ли попытка оформления.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
