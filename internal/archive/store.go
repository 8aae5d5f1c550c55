// Package archive mirrors logged chat turns to S3 for retention.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	TurnID         string `json:"turn_id"`
	UserHash       string `json:"user_hash"`
	S3Key          string `json:"s3_key"`
	Classification string `json:"classification"`
	PHIDetected    bool   `json:"phi_detected"`
	IsEmergency    bool   `json:"is_emergency"`
	ArchivedAt     string `json:"archived_at"`
}

// Store archives turns to S3. Turns are already redacted when they arrive.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// TurnKey is the object key for a turn, partitioned by the turn's UTC date.
func TurnKey(turn conversation.Turn) string {
	ts := turn.Timestamp.UTC()
	return fmt.Sprintf("turns/v1/by-date/%d/%02d/%02d/%s/%s.json",
		ts.Year(), ts.Month(), ts.Day(), turn.UserHash, turn.ID)
}

// ArchiveTurn writes the turn as JSON and appends it to the monthly manifest.
func (s *Store) ArchiveTurn(ctx context.Context, turn conversation.Turn) error {
	if !s.Enabled() {
		return nil
	}
	if turn.ID == "" || turn.UserHash == "" {
		return errors.New("archive: turn id and user hash required")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now().UTC()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("archive: marshal turn: %w", err)
	}

	key := TurnKey(turn)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.WithUser(turn.UserHash).Debug("archived turn",
		"turn_id", turn.ID,
		"s3_key", key,
		"classification", turn.Classification,
	)

	entry := ManifestEntry{
		TurnID:         turn.ID,
		UserHash:       turn.UserHash,
		S3Key:          key,
		Classification: string(turn.Classification),
		PHIDetected:    turn.PHIDetected,
		IsEmergency:    turn.IsEmergency,
		ArchivedAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// the turn object is already written
		s.logger.Warn("failed to append manifest", "error", err, "turn_id", turn.ID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("turns/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
