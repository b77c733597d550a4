package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sefs-dev/sefs/pkg/extractor"
	"github.com/sefs-dev/sefs/pkg/model"
)

// ErrUnsupported is returned by ProcessFile for a path the extractor
// does not handle or that no longer exists on disk.
var ErrUnsupported = errors.New("pipeline: unsupported or missing file")

// ProcessFile ingests one file, implementing spec.md §4.8's contract:
// a file already tracked under a different path (moved by the user
// outside of SEFS's own sync) is recognized by content hash and
// relocated in place rather than duplicated.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (int64, error) {
	if !extractor.IsSupported(path) {
		return 0, ErrUnsupported
	}
	if _, err := os.Stat(path); err != nil {
		return 0, ErrUnsupported
	}

	p.emit(model.EventProcessingStart, 0, path)
	extractStart := time.Now()
	res := p.extract.Extract(path)
	p.metrics.RecordExtraction(msSince(extractStart))
	filename := filepath.Base(path)

	existing, err := p.store.GetByPath(ctx, path)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		// original_path lookup: a record keyed by this exact path even if
		// current_path has since drifted elsewhere is still "this file".
		existing, err = p.lookupByOriginalPath(ctx, path)
		if err != nil {
			return 0, err
		}
	}

	if existing != nil && existing.ContentHash == res.ContentHash {
		return p.handleSameHashHit(ctx, existing, path, filename, res)
	}

	byHash, err := p.store.GetByHash(ctx, res.ContentHash)
	if err != nil {
		return 0, err
	}
	if byHash != nil && res.ContentHash != "" {
		return p.handleRelocation(ctx, byHash, path, filename)
	}

	return p.insertNew(ctx, path, filename, res)
}

func (p *Pipeline) lookupByOriginalPath(ctx context.Context, path string) (*model.FileRecord, error) {
	all, err := p.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range all {
		if f.OriginalPath == path {
			return f, nil
		}
	}
	return nil, nil
}

func (p *Pipeline) handleSameHashHit(ctx context.Context, existing *model.FileRecord, path, filename string, res extractor.Result) (int64, error) {
	if existing.CurrentPath != path || existing.Filename != filename {
		if err := p.store.UpdatePaths(ctx, existing.ID, path, existing.OriginalPath, filename); err != nil {
			return 0, err
		}
	}
	if existing.HasEmbedding() {
		return existing.ID, nil
	}

	// Stored embedding is missing or zero: fall through to re-embed
	// without treating this as a brand-new file. res was already
	// extracted by the caller, so this reuses it instead of reading
	// and hashing the file a second time.
	embedStart := time.Now()
	vec := p.embed.GetEmbedding(ctx, res.Text)
	p.metrics.RecordEmbedding(msSince(embedStart))
	if err := p.store.UpdateEmbedding(ctx, existing.ID, vec, p.embed.CurrentModelTag()); err != nil {
		return 0, err
	}
	p.metrics.IncFilesProcessed()
	p.emit(model.EventFileModified, existing.ID, path)
	return existing.ID, nil
}

func (p *Pipeline) handleRelocation(ctx context.Context, existing *model.FileRecord, path, filename string) (int64, error) {
	if err := p.store.UpdatePaths(ctx, existing.ID, path, existing.OriginalPath, filename); err != nil {
		return 0, err
	}
	p.emit(model.EventFileModified, existing.ID, path)
	return existing.ID, nil
}

func (p *Pipeline) insertNew(ctx context.Context, path, filename string, res extractor.Result) (int64, error) {
	embedStart := time.Now()
	vec := p.embed.GetEmbedding(ctx, res.Text)
	p.metrics.RecordEmbedding(msSince(embedStart))
	summary := p.embed.GenerateSummary(ctx, res.Text)

	modTime := time.Now()
	if info, statErr := os.Stat(path); statErr == nil {
		modTime = info.ModTime()
	}

	f := &model.FileRecord{
		CurrentPath:  path,
		OriginalPath: path,
		Filename:     filename,
		ContentHash:  res.ContentHash,
		Embedding:    vec,
		ModelTag:     p.embed.CurrentModelTag(),
		ClusterID:    model.UncategorisedClusterID,
		Summary:      summary,
		FileType:     res.FileType,
		SizeBytes:    res.SizeBytes,
		WordCount:    res.WordCount,
		PageCount:    res.PageCount,
		ModifiedAt:   modTime,
	}
	id, err := p.store.UpsertFileByOriginalPath(ctx, f)
	if err != nil {
		return 0, err
	}
	p.metrics.IncFilesProcessed()
	p.emit(model.EventFileAdded, id, path)
	return id, nil
}

// msSince returns the elapsed time since start in milliseconds, the
// unit pkg/metrics records in (mirrors the original's
// time.perf_counter()-based Timer, which also reports milliseconds).
func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// RemoveFile implements spec.md §4.8's delete contract: a delete for a
// path whose record has already moved elsewhere (or whose content
// hash lives on at another still-existing path) is dropped rather
// than applied, since it was a move, not a real deletion.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	existing, err := p.store.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	if existing.CurrentPath != path {
		if _, statErr := os.Stat(existing.CurrentPath); statErr == nil {
			return nil // record already points elsewhere and that path is real: a move, not a delete.
		}
	}

	sibling, err := p.store.GetByHash(ctx, existing.ContentHash)
	if err == nil && sibling != nil && sibling.ID != existing.ID {
		if _, statErr := os.Stat(sibling.CurrentPath); statErr == nil {
			return nil
		}
	}

	if err := p.store.DeleteFile(ctx, existing.ID); err != nil {
		return err
	}
	p.emit(model.EventFileRemoved, existing.ID, path)
	return nil
}
