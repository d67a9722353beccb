package service

import "fmt"

func inviteEmailTemplate(name, inviteURL, appName string) (string, string) {
	subject := fmt.Sprintf("You're invited to the %s client portal", appName)
	body := fmt.Sprintf(`Hi %s,

You have been invited to the %s client portal. Follow this link to set your password and see your projects:
%s

This link can only be used once.

Best,
The %s Team`, name, appName, inviteURL, appName)

	return subject, body
}

func recoveryEmailTemplate(recoveryURL, appName string) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`You requested to reset your password. Follow this link to choose a new one:
%s

This link expires in 1 hour and can only be used once.

If you didn't request this, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, recoveryURL, appName)

	return subject, body
}
