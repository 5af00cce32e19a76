package auditarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/assistdesk/assistdesk/internal/pkg/env"
)

// Config holds the archive bucket settings.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("AUDIT_ARCHIVE_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the audit archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the audit archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the audit archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if archiving is enabled
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

const keyTimeLayout = "20060102T150405Z"

// ObjectKey returns audit/YYYY/MM/DD/<from>-<to>.jsonl, dated by from in UTC.
func ObjectKey(from, to time.Time) string {
	from, to = from.UTC(), to.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%s-%s.jsonl",
		from.Year(), int(from.Month()), from.Day(), from.Format(keyTimeLayout), to.Format(keyTimeLayout))
}
