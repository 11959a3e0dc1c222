package config

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewClient constructs the shared S3 client for a run.
func NewClient(awsCfg aws.Config, cfg Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := cfg.Endpoint(); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
}

// Endpoint returns the custom endpoint URL with its scheme normalized,
// or the empty string when the AWS default endpoints should be used.
// A schemeless endpoint gets https or http according to UseHTTPS.
func (c Config) Endpoint() string {
	if c.EndpointURL == "" {
		return ""
	}
	if strings.Contains(c.EndpointURL, "://") {
		return c.EndpointURL
	}
	if c.UseHTTPS {
		return "https://" + c.EndpointURL
	}
	return "http://" + c.EndpointURL
}
