// Package ses delivers workflow emails through Amazon SES.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"ccaccess.org/internal/notify"
	"ccaccess.org/internal/registration"
)

// Client is the subset of the SES v2 API the notifier needs.
type Client interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Notifier sends the rendered workflow emails. Approval requests go to
// the administrator; welcome and denial emails go to the requester.
type Notifier struct {
	client     Client
	fromEmail  string
	adminEmail string
}

// New returns a Notifier over an existing SES client.
func New(client Client, fromEmail, adminEmail string) *Notifier {
	return &Notifier{client: client, fromEmail: fromEmail, adminEmail: adminEmail}
}

// NewFromConfig builds the SES client from an AWS config.
func NewFromConfig(cfg aws.Config, fromEmail, adminEmail string) *Notifier {
	return New(sesv2.NewFromConfig(cfg), fromEmail, adminEmail)
}

func (n *Notifier) ApprovalRequest(ctx context.Context, reg registration.Registration, approveURL, denyURL string) error {
	msg := notify.ApprovalRequest(reg, approveURL, denyURL)
	return n.send(ctx, n.adminEmail, msg)
}

func (n *Notifier) Welcome(ctx context.Context, reg registration.Registration) error {
	return n.send(ctx, reg.Email, notify.Welcome(reg))
}

func (n *Notifier) Denial(ctx context.Context, reg registration.Registration) error {
	return n.send(ctx, reg.Email, notify.Denial(reg))
}

func (n *Notifier) send(ctx context.Context, to string, msg notify.Message) error {
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses: send to %s: %w", to, err)
	}
	return nil
}
