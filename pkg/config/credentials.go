// Package config builds the AWS session configuration for a copy run.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config holds the S3 session settings for one run. A single session
// is shared by every worker; the SDK client is safe for concurrent use.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // Optional, mainly for AWS STS
	Region          string
	EndpointURL     string

	// UseHTTPS selects the scheme for schemeless custom endpoints.
	// AWS default endpoints are always TLS regardless of this flag.
	UseHTTPS bool

	// ForcePathStyle is required for MinIO and some other
	// S3-compatible providers
	ForcePathStyle bool
}

// Load resolves credentials from multiple sources in order of priority:
// 1. Explicit credentials in cfg
// 2. Environment variables
// 3. AWS SDK default chain (credentials file, IAM role)
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return loadFromExplicitCredentials(ctx, cfg)
	}

	if env := loadFromEnvironment(); env != nil {
		env.EndpointURL = cfg.EndpointURL
		env.UseHTTPS = cfg.UseHTTPS
		if cfg.Region != "" {
			env.Region = cfg.Region
		}
		return loadFromExplicitCredentials(ctx, *env)
	}

	return loadFromDefaultChain(ctx, cfg)
}

func loadFromExplicitCredentials(ctx context.Context, cfg Config) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	staticProvider := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		cfg.SessionToken,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(staticProvider),
	)

	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	return awsCfg, nil
}

func loadFromEnvironment() *Config {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if accessKey == "" || secretKey == "" {
		return nil
	}

	return &Config{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Region:          os.Getenv("AWS_REGION"),
		EndpointURL:     os.Getenv("S3_ENDPOINT_URL"),
	}
}

func loadFromDefaultChain(ctx context.Context, cfg Config) (aws.Config, error) {
	region := "us-east-1"
	if cfg.Region != "" {
		region = cfg.Region
	}
	if envRegion := os.Getenv("AWS_REGION"); envRegion != "" && cfg.Region == "" {
		region = envRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)

	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load default credentials: %w", err)
	}

	return awsCfg, nil
}
