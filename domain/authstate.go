package domain

// AuthStatus is the coarse sign-in state of a session.
type AuthStatus int

const (
	// AuthUninitialized means the state has not been resolved yet; treat as loading.
	AuthUninitialized AuthStatus = iota
	AuthNone
	AuthPresent
)

func (s AuthStatus) String() string {
	switch s {
	case AuthNone:
		return "none"
	case AuthPresent:
		return "present"
	default:
		return "uninitialized"
	}
}

// AuthState is the identity currently bound to a session.
type AuthState struct {
	Status AuthStatus
	User   *User
}

// SignedOut is the resolved "no identity" state.
func SignedOut() AuthState { return AuthState{Status: AuthNone} }

// SignedIn wraps a resolved identity.
func SignedIn(user *User) AuthState {
	if user == nil {
		return SignedOut()
	}
	return AuthState{Status: AuthPresent, User: user}
}
