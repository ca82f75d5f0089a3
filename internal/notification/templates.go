package notification

import "fmt"

// Templated messages sent by the auth flows
// Links embed the raw token: the receiving page posts it back to the API

func ActivationMessage(baseURL string, to string, token string) Message {
	return Message{
		To:      to,
		Subject: "Activate your account",
		Body: fmt.Sprintf(
			"Welcome!\n\nFollow the link to activate your account:\n%s/activate?token=%s\n\nThe link is valid for a limited time. If it expires, request a new one by logging in.",
			baseURL, token,
		),
	}
}

func PasswordResetMessage(baseURL string, to string, token string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Somebody (hopefully you) requested a password reset.\n\nFollow the link to set a new password:\n%s/reset-password?token=%s\n\nIf that was not you, ignore this message.",
			baseURL, token,
		),
	}
}

func PasswordChangedMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Your password was changed",
		Body:    "Your password was changed successfully. All active sessions were signed out.\n\nIf that was not you, reset your password immediately.",
	}
}

func TwoFactorResetMessage(baseURL string, to string, token string) Message {
	return Message{
		To:      to,
		Subject: "Reset your two-factor authentication",
		Body: fmt.Sprintf(
			"Somebody (hopefully you) requested a two-factor authentication reset.\n\nFollow the link to remove the current authenticator:\n%s/reset-2fa?token=%s\n\nIf that was not you, ignore this message.",
			baseURL, token,
		),
	}
}

func TwoFactorResetDoneMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Two-factor authentication was reset",
		Body:    "Two-factor authentication was removed from your account. You can enable it again from your profile.\n\nIf that was not you, contact support immediately.",
	}
}

func AccountActivatedMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Account activated",
		Body:    "Your account is active now. Welcome aboard!",
	}
}

func CourseJoinMessage(baseURL string, to string, courseName string, token string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Confirm joining %q", courseName),
		Body: fmt.Sprintf(
			"You were invited to join the course %q.\n\nFollow the link to confirm:\n%s/courses/join?token=%s",
			courseName, baseURL, token,
		),
	}
}
