package service

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// CanonicalizeEmail normalizes an email address for uniqueness checks.
// For Gmail/Googlemail: strips dots from local part and removes +suffix.
// For all domains: lowercases the entire address.
func CanonicalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return email
	}

	local, domain := parts[0], parts[1]

	if domain == "gmail.com" || domain == "googlemail.com" {
		if idx := strings.Index(local, "+"); idx != -1 {
			local = local[:idx]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}

// Mailer delivers outbound mail. Actual delivery is an external
// collaborator; the server only needs something to hand invitation links to.
type Mailer interface {
	SendInvitation(to, inviteURL string) error
}

// LogMailer writes invitations to the log instead of delivering them. Used
// in local and development stages.
type LogMailer struct{}

func (LogMailer) SendInvitation(to, inviteURL string) error {
	logrus.WithFields(logrus.Fields{
		"to":  to,
		"url": inviteURL,
	}).Info("signup invitation issued")
	return nil
}
