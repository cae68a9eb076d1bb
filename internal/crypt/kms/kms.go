package kms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"ccaccess.org/internal/crypt"
)

// Client is the subset of the KMS API the gateway needs.
type Client interface {
	Encrypt(ctx context.Context, in *kms.EncryptInput, opts ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, opts ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Gateway implements crypt.Gateway on top of AWS KMS with a single
// configured key.
type Gateway struct {
	client Client
	keyID  string
}

var _ crypt.Gateway = (*Gateway)(nil)

// New constructs a Gateway for the given key identifier.
func New(client Client, keyID string) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("kms: client is required")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, errors.New("kms: key id is required")
	}
	return &Gateway{client: client, keyID: keyID}, nil
}

// NewFromConfig builds the Gateway from a resolved AWS config.
func NewFromConfig(cfg aws.Config, keyID string) (*Gateway, error) {
	return New(kms.NewFromConfig(cfg), keyID)
}

func (g *Gateway) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := g.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(g.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypt.ErrEncrypt, err)
	}
	return out.CiphertextBlob, nil
}

func (g *Gateway) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := g.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypt.ErrDecrypt, err)
	}
	return out.Plaintext, nil
}
