package bootstrap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/baymax-health/internal/archive"
	"github.com/wolfman30/baymax-health/internal/compliance"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// BuildAuditService opens a database/sql handle on the lib/pq driver for
// compliance events. It returns nils when DATABASE_URL is empty or unreachable.
func BuildAuditService(ctx context.Context, databaseURL string, logger *logging.Logger) (*compliance.AuditService, *sql.DB) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Error("failed to open compliance database", "error", err)
		return nil, nil
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("compliance database not reachable; audit events disabled", "error", err)
		_ = db.Close()
		return nil, nil
	}
	return compliance.NewAuditService(db), db
}

// BuildArchiveStore returns nil when no bucket is configured.
func BuildArchiveStore(ctx context.Context, bucket string, loadAWS AWSConfigLoader, logger *logging.Logger) *archive.Store {
	if strings.TrimSpace(bucket) == "" || loadAWS == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		logger.Warn("turn archive disabled; aws config failed", "error", err)
		return nil
	}
	return archive.NewStore(s3.NewFromConfig(awsCfg), bucket, logger)
}
