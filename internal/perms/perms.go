// Package perms describes what an authenticated session is allowed to
// do: the caller identity from STS and the IAM policies attached to
// the corresponding user.
package perms

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Summary is the caller identity plus its policy names.
type Summary struct {
	Account  string
	ARN      string
	UserID   string
	Attached []string
	Inline   []string
}

// IAMClient is the IAM subset the inspector needs.
type IAMClient interface {
	ListAttachedUserPolicies(ctx context.Context, in *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
	ListUserPolicies(ctx context.Context, in *iam.ListUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error)
}

// STSClient is the STS subset the inspector needs.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Inspector resolves the caller and lists its permissions.
type Inspector struct {
	iam IAMClient
	sts STSClient
}

func New(iamClient IAMClient, stsClient STSClient) *Inspector {
	return &Inspector{iam: iamClient, sts: stsClient}
}

func NewFromConfig(cfg aws.Config) *Inspector {
	return New(iam.NewFromConfig(cfg), sts.NewFromConfig(cfg))
}

// Describe returns the caller identity and, when the caller is an IAM
// user, its attached and inline policy names. Federated sessions have
// no IAM user to list policies for; their summary carries identity
// only.
func (i *Inspector) Describe(ctx context.Context) (Summary, error) {
	ident, err := i.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Summary{}, fmt.Errorf("perms: caller identity: %w", err)
	}
	sum := Summary{
		Account: aws.ToString(ident.Account),
		ARN:     aws.ToString(ident.Arn),
		UserID:  aws.ToString(ident.UserId),
	}

	username, ok := userFromARN(sum.ARN)
	if !ok {
		return sum, nil
	}

	attached, err := i.iam.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{
		UserName: aws.String(username),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("perms: attached policies: %w", err)
	}
	for _, p := range attached.AttachedPolicies {
		sum.Attached = append(sum.Attached, aws.ToString(p.PolicyName))
	}

	inline, err := i.iam.ListUserPolicies(ctx, &iam.ListUserPoliciesInput{
		UserName: aws.String(username),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("perms: inline policies: %w", err)
	}
	sum.Inline = append(sum.Inline, inline.PolicyNames...)

	return sum, nil
}

// userFromARN extracts the user name from arn:aws:iam::<acct>:user/<name>.
func userFromARN(arn string) (string, bool) {
	const marker = ":user/"
	idx := strings.Index(arn, marker)
	if idx < 0 {
		return "", false
	}
	name := arn[idx+len(marker):]
	// Paths like user/engineering/ada keep only the final element.
	if slash := strings.LastIndexByte(name, '/'); slash >= 0 {
		name = name[slash+1:]
	}
	if name == "" {
		return "", false
	}
	return name, true
}
