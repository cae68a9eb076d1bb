package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"ccaccess.org/internal/identity"
)

// Authenticator handles the CLI-side session flows: interactive login,
// token refresh, password maintenance and the exchange of an ID token
// for short-lived cloud credentials via the identity pool.
type Authenticator struct {
	idp            *cip.Client
	pools          *ci.Client
	region         string
	userPoolID     string
	appClientID    string
	identityPoolID string
}

// AuthenticatorConfig carries the pool identifiers the flows need.
type AuthenticatorConfig struct {
	Region         string
	UserPoolID     string
	AppClientID    string
	IdentityPoolID string
}

// NewAuthenticator builds an Authenticator from a resolved AWS config.
func NewAuthenticator(cfg aws.Config, ac AuthenticatorConfig) (*Authenticator, error) {
	if ac.UserPoolID == "" || ac.AppClientID == "" {
		return nil, errors.New("cognito: user pool id and app client id are required")
	}
	region := ac.Region
	if region == "" {
		region = cfg.Region
	}
	return &Authenticator{
		idp:            cip.NewFromConfig(cfg),
		pools:          ci.NewFromConfig(cfg),
		region:         region,
		userPoolID:     ac.UserPoolID,
		appClientID:    ac.AppClientID,
		identityPoolID: ac.IdentityPoolID,
	}, nil
}

// Login runs the USER_PASSWORD_AUTH flow and returns the session tokens.
func (a *Authenticator) Login(ctx context.Context, username, password string) (identity.Tokens, error) {
	out, err := a.idp.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(a.appClientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return identity.Tokens{}, fmt.Errorf("%w: authenticate: %v", identity.ErrProvider, err)
	}
	return tokensFromResult(out.AuthenticationResult)
}

// Refresh exchanges a refresh token for fresh ID and access tokens.
// Cognito may omit the refresh token from the response; callers keep
// the old one in that case.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (identity.Tokens, error) {
	out, err := a.idp.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(a.appClientID),
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return identity.Tokens{}, fmt.Errorf("%w: refresh: %v", identity.ErrProvider, err)
	}
	return tokensFromResult(out.AuthenticationResult)
}

// Credentials exchanges an ID token for temporary AWS credentials
// through the configured identity pool.
func (a *Authenticator) Credentials(ctx context.Context, idToken string) (identity.Credentials, error) {
	if a.identityPoolID == "" {
		return identity.Credentials{}, errors.New("cognito: identity pool id is not configured")
	}
	logins := map[string]string{
		fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", a.region, a.userPoolID): idToken,
	}

	idOut, err := a.pools.GetId(ctx, &ci.GetIdInput{
		IdentityPoolId: aws.String(a.identityPoolID),
		Logins:         logins,
	})
	if err != nil {
		return identity.Credentials{}, fmt.Errorf("%w: get identity id: %v", identity.ErrProvider, err)
	}

	credOut, err := a.pools.GetCredentialsForIdentity(ctx, &ci.GetCredentialsForIdentityInput{
		IdentityId: idOut.IdentityId,
		Logins:     logins,
	})
	if err != nil {
		return identity.Credentials{}, fmt.Errorf("%w: get credentials: %v", identity.ErrProvider, err)
	}
	c := credOut.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretKey == nil {
		return identity.Credentials{}, fmt.Errorf("%w: credential exchange returned no credentials", identity.ErrProvider)
	}
	creds := identity.Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretKey),
		SessionToken:    aws.ToString(c.SessionToken),
	}
	if c.Expiration != nil {
		creds.Expiration = *c.Expiration
	}
	return creds, nil
}

// ForgotPassword sends a verification code to the user's email.
func (a *Authenticator) ForgotPassword(ctx context.Context, username string) error {
	_, err := a.idp.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(a.appClientID),
		Username: aws.String(username),
	})
	if err != nil {
		return fmt.Errorf("%w: forgot password: %v", identity.ErrProvider, err)
	}
	return nil
}

// ConfirmForgotPassword completes the reset flow with the emailed code.
func (a *Authenticator) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	_, err := a.idp.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(a.appClientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return fmt.Errorf("%w: confirm forgot password: %v", identity.ErrProvider, err)
	}
	return nil
}

// ChangePassword rotates the password for an authenticated session.
func (a *Authenticator) ChangePassword(ctx context.Context, accessToken, current, proposed string) error {
	_, err := a.idp.ChangePassword(ctx, &cip.ChangePasswordInput{
		AccessToken:      aws.String(accessToken),
		PreviousPassword: aws.String(current),
		ProposedPassword: aws.String(proposed),
	})
	if err != nil {
		return fmt.Errorf("%w: change password: %v", identity.ErrProvider, err)
	}
	return nil
}

func tokensFromResult(res *types.AuthenticationResultType) (identity.Tokens, error) {
	if res == nil || res.IdToken == nil || res.AccessToken == nil {
		return identity.Tokens{}, fmt.Errorf("%w: authentication did not return tokens", identity.ErrProvider)
	}
	return identity.Tokens{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
	}, nil
}
