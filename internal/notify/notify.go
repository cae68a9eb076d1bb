// Package notify renders the workflow emails. Rendering is separated
// from delivery so the content can be tested without a mail provider.
package notify

import (
	"fmt"
	"html"
	"strings"

	"ccaccess.org/internal/registration"
)

// Message is a fully rendered email ready for delivery.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// ApprovalRequest renders the admin decision email. It links the two
// action URLs and deliberately carries no password material.
func ApprovalRequest(reg registration.Registration, approveURL, denyURL string) Message {
	name := reg.DisplayName()
	subject := fmt.Sprintf("Access request from %s", name)

	var text strings.Builder
	fmt.Fprintf(&text, "A new access request is waiting for your decision.\n\n")
	fmt.Fprintf(&text, "Name:  %s\nEmail: %s\nValid until: %s\n\n", name, reg.Email, reg.ExpiresAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&text, "Approve: %s\n\nDeny: %s\n", approveURL, denyURL)

	var h strings.Builder
	h.WriteString("<html><body>")
	h.WriteString("<p>A new access request is waiting for your decision.</p>")
	fmt.Fprintf(&h, "<p><b>Name:</b> %s<br><b>Email:</b> %s<br><b>Valid until:</b> %s</p>",
		html.EscapeString(name), html.EscapeString(reg.Email), reg.ExpiresAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&h, `<p><a href="%s">Approve</a> &nbsp; <a href="%s">Deny</a></p>`,
		html.EscapeString(approveURL), html.EscapeString(denyURL))
	h.WriteString("</body></html>")

	return Message{Subject: subject, Text: text.String(), HTML: h.String()}
}

// Welcome renders the account-ready email sent to the new user.
func Welcome(reg registration.Registration) Message {
	greeting := reg.GreetingName()
	text := fmt.Sprintf("Hi %s,\n\nYour access request was approved and your account is ready.\nSign in with the email address and password you registered with.\n", greeting)
	htmlBody := fmt.Sprintf(
		"<html><body><p>Hi %s,</p><p>Your access request was approved and your account is ready.<br>Sign in with the email address and password you registered with.</p></body></html>",
		html.EscapeString(greeting))
	return Message{Subject: "Your account is ready", Text: text, HTML: htmlBody}
}

// Denial renders the request-declined email sent to the user.
func Denial(reg registration.Registration) Message {
	greeting := reg.GreetingName()
	text := fmt.Sprintf("Hi %s,\n\nYour access request was reviewed and declined.\nIf you believe this is a mistake, reply to this email.\n", greeting)
	htmlBody := fmt.Sprintf(
		"<html><body><p>Hi %s,</p><p>Your access request was reviewed and declined.<br>If you believe this is a mistake, reply to this email.</p></body></html>",
		html.EscapeString(greeting))
	return Message{Subject: "Your access request was declined", Text: text, HTML: htmlBody}
}
