package service

import "fmt"

func magicLinkEmailTemplate(magicURL, appName string) (string, string) {
	subject := fmt.Sprintf("Sign in to %s", appName)
	body := fmt.Sprintf(`Click this link to sign in to your account:
%s

This link expires in 10 minutes and can only be used once.

If you didn't request this, ignore this email.

Best,
The %s Team`, magicURL, appName)

	return subject, body
}

func welcomeEmailTemplate(name, dashboardURL, appName string) (string, string) {
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Create your first project, share its link and start
collecting feedback:
%s

Best,
The %s Team`, name, dashboardURL, appName)

	return subject, body
}

func accountDeletedEmailTemplate(name, appName string) (string, string) {
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("Your %s account has been deleted", appName)
	body := fmt.Sprintf(`Hi %s,

Your account has been permanently deleted from %s.

All your projects and the feedback collected for them have been removed, and
any subscription has been cancelled.

If you didn't request this deletion, please contact our support team immediately, though we won't be able to recover your account.

Best,
The %s Team`, name, appName, appName)

	return subject, body
}
