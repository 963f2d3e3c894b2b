package persistence

import (
	"anonbot/internal/models"
	"anonbot/internal/persistence/interfaces"
	"anonbot/internal/providers"
	"fmt"

	json "github.com/goccy/go-json"
)

// SnapshotCodec turns snapshots into file bytes and back.
type SnapshotCodec struct {
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewSnapshotCodec(compressor interfaces.CompressorInterface, logger providers.Logger) *SnapshotCodec {
	return &SnapshotCodec{compressor: compressor, logger: logger}
}

func (c *SnapshotCodec) Encode(s *models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	out, err := c.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return out, nil
}

type versionHeader struct {
	Version int             `json:"version"`
	Users   json.RawMessage `json:"users"`
}

// Decode accepts the current format and files written by the older bot,
// which keyed users by id and kept blocked ids in a separate list.
func (c *SnapshotCodec) Decode(b []byte) (*models.Snapshot, error) {
	data, err := c.compressor.Decompress(b)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var header versionHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if header.Version == 0 {
		c.logger.Warnf(providers.TypeApp, "Snapshot has no version, trying to migrate from old data format")
		snap, err := migrateLegacy(data, c.logger)
		if err != nil {
			c.logger.Warnf(providers.TypeApp, "Migration failed")
			return nil, err
		}
		c.logger.Warnf(providers.TypeApp, "Migration of %d users successful", len(snap.Users))
		return snap, nil
	}
	if header.Version > models.SnapshotVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", header.Version)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Users == nil {
		snap.Users = []models.UserRecord{}
	}
	return &snap, nil
}

func (c *SnapshotCodec) Close() {
	c.compressor.Close()
}
