package tasks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/ids"
	"github.com/MandraVEVO/ecommerce/internal/jobs"
	"github.com/MandraVEVO/ecommerce/internal/models"
)

type Purger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.BlacklistEntry, error)
}

type Archiver interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

type TaskPayload struct {
	Type        string `json:"type"`
	RequestedAt string `json:"requestedAt"`
}

type ProcessorConfig struct {
	BatchSize  int
	MaxBatches int
	Now        func() time.Time
}

// Processor runs maintenance tasks pulled from the stream.
type Processor struct {
	purger     Purger
	archiver   Archiver
	batchSize  int
	maxBatches int
	now        func() time.Time
	logger     zerolog.Logger
}

// NewProcessor builds a processor; archiver may be nil, in which case purged
// entries are only counted.
func NewProcessor(purger Purger, archiver Archiver, cfg ProcessorConfig, logger zerolog.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Processor{
		purger:     purger,
		archiver:   archiver,
		batchSize:  cfg.BatchSize,
		maxBatches: cfg.MaxBatches,
		now:        cfg.Now,
		logger:     logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case jobs.TaskBlacklistPurge:
		_, err := p.PurgeBlacklist(ctx)
		return err
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// PurgeBlacklist deletes entries whose token has expired, batch by batch, and
// archives each batch. Archive failures are logged; the rows are already gone.
func (p *Processor) PurgeBlacklist(ctx context.Context) (int, error) {
	cutoff := p.now().UTC()
	total := 0
	for batch := 0; batch < p.maxBatches; batch++ {
		entries, err := p.purger.PurgeExpired(ctx, cutoff, p.batchSize)
		if err != nil {
			return total, fmt.Errorf("purge blacklist: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		total += len(entries)

		if p.archiver != nil {
			if err := p.archive(ctx, cutoff, entries); err != nil {
				p.logger.Error().Err(err).Int("entries", len(entries)).Msg("archive purged blacklist entries failed")
			}
		}
		if len(entries) < p.batchSize {
			break
		}
	}

	p.logger.Info().Int("purged", total).Time("cutoff", cutoff).Msg("blacklist purge finished")
	return total, nil
}

// archivedEntry omits the token itself; its hash is enough to correlate.
type archivedEntry struct {
	ID            string    `json:"id"`
	TokenSHA256   string    `json:"token_sha256"`
	UserID        string    `json:"user_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	Reason        string    `json:"reason"`
}

func (p *Processor) archive(ctx context.Context, cutoff time.Time, entries []models.BlacklistEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		sum := sha256.Sum256([]byte(e.Token))
		if err := enc.Encode(archivedEntry{
			ID:            e.ID,
			TokenSHA256:   hex.EncodeToString(sum[:]),
			UserID:        e.UserID,
			ExpiresAt:     e.ExpiresAt.UTC(),
			BlacklistedAt: e.BlacklistedAt.UTC(),
			Reason:        e.Reason,
		}); err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
	}

	key := ArchiveKey(cutoff, ids.New())
	return p.archiver.Put(ctx, key, "application/x-ndjson", buf.Bytes())
}

// ArchiveKey lays archives out by purge date.
func ArchiveKey(at time.Time, id string) string {
	return fmt.Sprintf("blacklist/%s/%s.jsonl", at.UTC().Format("2006/01/02"), id)
}
