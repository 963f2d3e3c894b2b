package persistence

import (
	"anonbot/internal/providers"
	"anonbot/internal/services"
	"context"
	"fmt"
	"os"
	"strconv"
)

const writeChunk = 64 * 1024

type FileManager struct {
	service services.FeedbackServiceInterface
	codec   *SnapshotCodec
	logger  providers.Logger
	clock   providers.Clock
}

func NewFileManager(codec *SnapshotCodec, service services.FeedbackServiceInterface, logger providers.Logger, clock providers.Clock) *FileManager {
	return &FileManager{
		codec:   codec,
		service: service,
		logger:  logger,
		clock:   clock,
	}
}

// SaveToFile writes the current state and returns the registry revision it
// captured. The state is copied first; encoding and IO run without locks.
func (f *FileManager) SaveToFile(ctx context.Context, fileName string) (uint64, error) {
	snap := f.service.GetSnapshot()

	data, err := f.codec.Encode(snap)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(ctx, fileName, data); err != nil {
		return 0, err
	}
	return snap.Revision, nil
}

// writeAtomic replaces fileName so that a reader sees either the old or the
// new content. A crash leaves at most a stale .tmp file behind.
func writeAtomic(ctx context.Context, fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	for off := 0; off < len(data); off += writeChunk {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		end := min(off+writeChunk, len(data))
		if _, err := file.Write(data[off:end]); err != nil {
			return fail(err)
		}
	}

	if err = file.Sync(); err != nil {
		return fail(err)
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err := ctx.Err(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.codec.Close()
}

// LoadFromFile restores the service from fileName. A missing file is not an
// error. An unreadable file is moved aside and ErrPersistence returned, an
// undecodable one likewise with ErrStartupCorruption; the service keeps its
// empty state in both cases.
func (f *FileManager) LoadFromFile(fileName string) error {
	f.dropStaleTemp(fileName)

	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Infof(providers.TypeApp, "No snapshot at %s, starting fresh", fileName)
			return nil
		}
		// moved aside so the next save cannot overwrite what we failed to read
		quarantined := f.quarantine(fileName)
		return fmt.Errorf("%w: read %s (moved to %s): %w", ErrPersistence, fileName, quarantined, err)
	}

	snap, err := f.codec.Decode(data)
	if err == nil {
		var repaired bool
		repaired, err = f.service.PutSnapshot(snap)
		if err == nil {
			if repaired {
				f.logger.Warnf(providers.TypeApp, "Inconsistent counters in %s, recomputed from user records", fileName)
			}
			f.logger.Infof(providers.TypeApp, "Loaded %d users from %s", len(snap.Users), fileName)
			return nil
		}
	}

	quarantined := f.quarantine(fileName)
	return fmt.Errorf("%w: %s (moved to %s): %v", ErrStartupCorruption, fileName, quarantined, err)
}

func (f *FileManager) dropStaleTemp(fileName string) {
	tmpFile := fileName + ".tmp"
	if _, err := os.Stat(tmpFile); err != nil {
		return
	}
	f.logger.Warnf(providers.TypeApp, "Removing unfinished snapshot write %s", tmpFile)
	if err := os.Remove(tmpFile); err != nil {
		f.logger.Errorf(providers.TypeApp, "Cannot remove %s: %s", tmpFile, err)
	}
}

func (f *FileManager) quarantine(fileName string) string {
	target := fileName + ".corrupt-" + strconv.FormatInt(f.clock.Now().Unix(), 10)
	if err := os.Rename(fileName, target); err != nil {
		f.logger.Errorf(providers.TypeApp, "Cannot move corrupt snapshot %s aside: %s", fileName, err)
		return fileName
	}
	return target
}
