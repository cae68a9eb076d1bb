package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"ccaccess.org/internal/identity"
)

// ProviderClient is the subset of the Cognito user-pool API used for
// provisioning.
type ProviderClient interface {
	ListUsers(ctx context.Context, in *cip.ListUsersInput, opts ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, opts ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, in *cip.AdminSetUserPasswordInput, opts ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
}

// Provider implements identity.Provider against a Cognito user pool.
// The email address doubles as the username.
type Provider struct {
	client     ProviderClient
	userPoolID string
}

var _ identity.Provider = (*Provider)(nil)

// NewProvider constructs a Provider for the given user pool.
func NewProvider(client ProviderClient, userPoolID string) (*Provider, error) {
	if client == nil {
		return nil, errors.New("cognito: client is required")
	}
	userPoolID = strings.TrimSpace(userPoolID)
	if userPoolID == "" {
		return nil, errors.New("cognito: user pool id is required")
	}
	return &Provider{client: client, userPoolID: userPoolID}, nil
}

// NewProviderFromConfig builds the Provider from a resolved AWS config.
func NewProviderFromConfig(cfg aws.Config, userPoolID string) (*Provider, error) {
	return NewProvider(cip.NewFromConfig(cfg), userPoolID)
}

func (p *Provider) Exists(ctx context.Context, email string) (bool, error) {
	out, err := p.client.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(p.userPoolID),
		Filter:     aws.String(fmt.Sprintf("email = %q", email)),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("%w: list users: %v", identity.ErrProvider, err)
	}
	return len(out.Users) > 0, nil
}

func (p *Provider) Create(ctx context.Context, acc identity.Account) error {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(acc.Email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	if acc.FirstName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("given_name"), Value: aws.String(acc.FirstName)})
	}
	if acc.LastName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("family_name"), Value: aws.String(acc.LastName)})
	}
	switch {
	case acc.FirstName != "" && acc.LastName != "":
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(acc.FirstName + " " + acc.LastName)})
	case acc.FirstName != "":
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(acc.FirstName)})
	}

	_, err := p.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(p.userPoolID),
		Username:       aws.String(acc.Email),
		UserAttributes: attrs,
		MessageAction:  types.MessageActionTypeSuppress,
	})
	if err != nil {
		return fmt.Errorf("%w: create user: %v", identity.ErrProvider, err)
	}
	return nil
}

func (p *Provider) SetPermanentPassword(ctx context.Context, email string, password []byte) error {
	_, err := p.client.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(email),
		Password:   aws.String(string(password)),
		Permanent:  true,
	})
	if err != nil {
		return fmt.Errorf("%w: set password: %v", identity.ErrProvider, err)
	}
	return nil
}
