package connectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager
// operations. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

// AWS stores rotated values in AWS Secrets Manager.
type AWS struct {
	client SecretsManagerClientAPI
	region string
	logger *logging.Logger
}

// AWSOption is a functional option for configuring the AWS connector.
type AWSOption func(*AWS)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(a *AWS) {
		a.client = client
	}
}

// NewAWS creates an AWS connector from the configured credentials.
func NewAWS(auth config.ConnectorAuth, logger *logging.Logger, opts ...AWSOption) (*AWS, error) {
	region := auth.AWSRegion
	if region == "" {
		region = "us-east-1"
	}

	a := &AWS{region: region, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		configOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(region),
		}
		if auth.AWSAccessKeyID != "" && auth.AWSSecretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(auth.AWSAccessKeyID, auth.AWSSecretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		a.client = secretsmanager.NewFromConfig(cfg)
	}

	return a, nil
}

func (a *AWS) Name() string { return "aws" }

// UpdateSecret writes a new version of the secret.
func (a *AWS) UpdateSecret(ctx context.Context, name, value string) error {
	input := &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	}

	result, err := a.client.UpdateSecret(ctx, input)
	if err != nil {
		return a.wrapError("update secret", err)
	}
	if result.VersionId != nil {
		a.logger.Debug("AWS secret %s updated, version %s", name, *result.VersionId)
	}
	return nil
}

// GetSecret returns the current secret value.
func (a *AWS) GetSecret(ctx context.Context, name string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	}

	result, err := a.client.GetSecretValue(ctx, input)
	if err != nil {
		return "", a.wrapError("get secret", err)
	}

	if result.SecretString != nil {
		return *result.SecretString, nil
	}
	if result.SecretBinary != nil {
		return string(result.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s has no value", name)
}

// TriggerRefresh is a no-op: consumers read Secrets Manager directly.
func (a *AWS) TriggerRefresh(ctx context.Context) error {
	a.logger.Info("AWS Secrets Manager consumers fetch new versions on read, no refresh needed")
	return nil
}

func (a *AWS) wrapError(operation string, err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &kserrors.ProviderError{
			Provider:  "aws",
			Operation: operation,
			Body:      "secret not found in Secrets Manager",
			Err:       err,
		}
	}
	return &kserrors.ProviderError{Provider: "aws", Operation: operation, Err: err}
}
