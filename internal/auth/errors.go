package auth

import "strings"

// Kind groups auth backend failures by what the user can do about them.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindEmailNotConfirmed
	KindAlreadyRegistered
	KindWeakPassword
)

// Flow is the user action that produced an error.
type Flow int

const (
	FlowSignIn Flow = iota
	FlowSignUp
	FlowResend
	FlowPasswordReset
)

// Classify inspects the backend's error text. The auth API reports these
// conditions only in the message body.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid login credentials"):
		return KindInvalidCredentials
	case strings.Contains(msg, "Email not confirmed"):
		return KindEmailNotConfirmed
	case strings.Contains(msg, "already registered"):
		return KindAlreadyRegistered
	case strings.Contains(msg, "Password should be"):
		return KindWeakPassword
	}
	return KindUnknown
}

func UserMessage(kind Kind, flow Flow) string {
	switch kind {
	case KindInvalidCredentials:
		return "Incorrect email or password"
	case KindEmailNotConfirmed:
		return "Please confirm your email before signing in"
	case KindAlreadyRegistered:
		return "This email is already registered"
	case KindWeakPassword:
		return "The password does not meet the minimum requirements"
	}

	switch flow {
	case FlowSignIn:
		return "Could not sign in. Please try again."
	case FlowSignUp:
		return "Could not create the account. Please try again."
	case FlowResend:
		return "Could not resend the confirmation email. Please try again."
	case FlowPasswordReset:
		return "Could not update the password. Please try again."
	}
	return "Something went wrong. Please try again."
}

// MessageFor is UserMessage(Classify(err), flow).
func MessageFor(err error, flow Flow) string {
	return UserMessage(Classify(err), flow)
}
