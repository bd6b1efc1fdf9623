package auth

// AccountState is the lifecycle position of an account
type AccountState string

const (
	AccountStateUnregistered        AccountState = "unregistered"
	AccountStatePendingVerification AccountState = "pending_verification"
	AccountStateActive              AccountState = "active"
)

var accountTransitions = map[AccountState]map[AccountState]struct{}{
	AccountStateUnregistered: {
		AccountStatePendingVerification: {},
	},
	AccountStatePendingVerification: {
		AccountStateActive: {},
	},
}

// AccountStateOf derives the state from the persisted user. A nil user is
// unregistered.
func AccountStateOf(user *User) AccountState {
	switch {
	case user == nil:
		return AccountStateUnregistered
	case user.IsActive:
		return AccountStateActive
	default:
		return AccountStatePendingVerification
	}
}

// CanTransition reports whether an account may move from one state to the
// other. Active is terminal.
func CanTransition(from, to AccountState) bool {
	allowed, ok := accountTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
