package cognito

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"ccaccess.org/internal/identity"
)

type fakeProviderClient struct {
	listOut    *cip.ListUsersOutput
	lastCreate *cip.AdminCreateUserInput
	lastSetPwd *cip.AdminSetUserPasswordInput
}

func (f *fakeProviderClient) ListUsers(ctx context.Context, in *cip.ListUsersInput, opts ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	return f.listOut, nil
}

func (f *fakeProviderClient) AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, opts ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	f.lastCreate = in
	return &cip.AdminCreateUserOutput{}, nil
}

func (f *fakeProviderClient) AdminSetUserPassword(ctx context.Context, in *cip.AdminSetUserPasswordInput, opts ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error) {
	f.lastSetPwd = in
	return &cip.AdminSetUserPasswordOutput{}, nil
}

func attrValue(attrs []types.AttributeType, name string) (string, bool) {
	for _, a := range attrs {
		if aws.ToString(a.Name) == name {
			return aws.ToString(a.Value), true
		}
	}
	return "", false
}

func TestExists(t *testing.T) {
	fake := &fakeProviderClient{listOut: &cip.ListUsersOutput{}}
	p, err := NewProvider(fake, "pool-1")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	ok, err := p.Exists(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatal("expected no account")
	}

	fake.listOut = &cip.ListUsersOutput{Users: []types.UserType{{Username: aws.String("a@b.com")}}}
	ok, err = p.Exists(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected account to exist")
	}
}

func TestCreateSuppressesWelcomeAndVerifiesEmail(t *testing.T) {
	fake := &fakeProviderClient{}
	p, err := NewProvider(fake, "pool-1")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	err = p.Create(context.Background(), identity.Account{
		Email:     "a@b.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in := fake.lastCreate
	if in == nil {
		t.Fatal("AdminCreateUser not called")
	}
	if in.MessageAction != types.MessageActionTypeSuppress {
		t.Fatalf("expected suppressed welcome message, got %v", in.MessageAction)
	}
	if aws.ToString(in.Username) != "a@b.com" {
		t.Fatalf("unexpected username: %v", in.Username)
	}
	if v, ok := attrValue(in.UserAttributes, "email_verified"); !ok || v != "true" {
		t.Fatalf("email_verified attribute missing or wrong: %q", v)
	}
	if v, _ := attrValue(in.UserAttributes, "name"); v != "Ada Lovelace" {
		t.Fatalf("unexpected display name: %q", v)
	}
}

func TestCreateOmitsMissingNames(t *testing.T) {
	fake := &fakeProviderClient{}
	p, _ := NewProvider(fake, "pool-1")

	if err := p.Create(context.Background(), identity.Account{Email: "a@b.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := attrValue(fake.lastCreate.UserAttributes, "given_name"); ok {
		t.Fatal("given_name should be absent when not provided")
	}
	if _, ok := attrValue(fake.lastCreate.UserAttributes, "name"); ok {
		t.Fatal("name should be absent when no names provided")
	}
}

func TestSetPermanentPassword(t *testing.T) {
	fake := &fakeProviderClient{}
	p, _ := NewProvider(fake, "pool-1")

	if err := p.SetPermanentPassword(context.Background(), "a@b.com", []byte("Abcdef12!")); err != nil {
		t.Fatalf("SetPermanentPassword: %v", err)
	}
	in := fake.lastSetPwd
	if in == nil {
		t.Fatal("AdminSetUserPassword not called")
	}
	if !in.Permanent {
		t.Fatal("password must be set as permanent")
	}
	if aws.ToString(in.Password) != "Abcdef12!" {
		t.Fatalf("unexpected password value")
	}
}
