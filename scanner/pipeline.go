package scanner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"imagedex/imageprocessor"
	"imagedex/index"
	"imagedex/logging"
	"imagedex/tagging"
	"imagedex/types"
)

// Pipeline drives one indexing run: normalize, fingerprint, tag, persist.
// CPU-bound work runs on a bounded pool; persistence and the tag budget
// are single-writer so skip and budget behavior stay deterministic.
type Pipeline struct {
	store   Store
	index   *index.Index
	tagger  tagging.Tagger // nil disables service tagging
	options Options
}

// New assembles a pipeline over the given collaborators.
func New(store Store, idx *index.Index, tagger tagging.Tagger, opts Options) *Pipeline {
	return &Pipeline{store: store, index: idx, tagger: tagger, options: opts}
}

// prepared holds the per-item output of the concurrent stage, consumed by
// the serial persistence loop in discovery order.
type prepared struct {
	skip      bool
	replaceID int64 // existing record to replace under ForceRewrite, 0 if none
	thumbnail []byte
	fp        *types.Fingerprint
	width     int
	height    int
	metaTags  []string
	err       error
}

// Run processes a discovered batch. Per-item failures are logged and the
// batch continues; an empty batch or a store failure aborts with an error.
// Cancellation takes effect between items: already-persisted records stay.
func (p *Pipeline) Run(ctx context.Context, files []File) (*BatchStats, error) {
	if len(files) == 0 {
		return nil, ErrEmptyInput
	}

	stats := &BatchStats{Total: len(files)}
	items := make([]prepared, len(files))

	// Skip detection runs up front against the store so the worker pool
	// never wastes a decode on an unchanged file.
	for i, f := range files {
		existing, err := p.store.FindByNameAndSize(f.Name(), f.Size())
		if err != nil {
			return nil, fmt.Errorf("store unavailable: %v", err)
		}
		if existing == nil {
			continue
		}
		if p.options.ForceRewrite {
			items[i].replaceID = existing.ID
		} else {
			items[i].skip = true
		}
	}

	p.prepareItems(ctx, files, items)

	budget := p.options.TagBudget
	if budget == 0 {
		budget = DefaultTagBudget
	}

	processed := 0
	report := func() {
		processed++
		if p.options.Progress != nil {
			p.options.Progress(processed, len(files))
		}
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item := &items[i]

		if item.skip {
			stats.Skipped++
			stats.Results = append(stats.Results, ItemResult{FileName: f.Name(), State: StateSkipped})
			logging.DebugLog("Skipping unchanged image: %s", f.RelPath())
			report()
			continue
		}
		if item.err != nil {
			stats.Failed++
			stats.Results = append(stats.Results, ItemResult{FileName: f.Name(), State: StateFailed, Err: item.err})
			logging.LogItemProcessed(f.RelPath(), false, item.err.Error())
			report()
			continue
		}

		tags := item.metaTags
		if p.tagger != nil && budget > 0 && stats.Tagged < budget {
			stats.Tagged++
			serviceTags, err := p.tagger.TagImage(ctx, item.thumbnail)
			if err != nil {
				// Degrade to locally extracted tags, never abort the batch.
				logging.LogWarning("Tagging service failed for %s: %v", f.RelPath(), err)
			} else if len(serviceTags) > 0 {
				tags = serviceTags
			}
		}

		if item.replaceID != 0 {
			if err := p.store.Delete(item.replaceID); err != nil {
				return stats, fmt.Errorf("store unavailable: %v", err)
			}
			if p.index != nil {
				p.index.Remove(item.replaceID)
			}
		}

		rec := &types.AssetRecord{
			FileName:    f.Name(),
			FilePath:    f.RelPath(),
			FileSize:    f.Size(),
			ModifiedAt:  f.ModTime(),
			Width:       item.width,
			Height:      item.height,
			Thumbnail:   item.thumbnail,
			Fingerprint: item.fp,
			Tags:        tags,
		}
		id, err := p.store.Add(rec)
		if err != nil {
			return stats, fmt.Errorf("store unavailable: %v", err)
		}
		if p.index != nil && item.fp != nil {
			p.index.Insert(id, *item.fp)
		}

		stats.Persisted++
		stats.Results = append(stats.Results, ItemResult{FileName: f.Name(), State: StatePersisted, AssetID: id})
		logging.LogItemProcessed(f.RelPath(), true, "")
		report()
	}

	return stats, nil
}

// prepareItems runs the CPU-bound normalize/fingerprint stage on a bounded
// worker pool. Item errors land in items[i].err; the pool itself never
// fails.
func (p *Pipeline) prepareItems(ctx context.Context, files []File, items []prepared) {
	workers := p.options.Workers
	if workers <= 0 {
		workers = 1
	}

	var group errgroup.Group
	group.SetLimit(workers)

	for i, f := range files {
		if items[i].skip {
			continue
		}
		i, f := i, f
		group.Go(func() error {
			if ctx.Err() != nil {
				items[i].err = ctx.Err()
				return nil
			}
			items[i] = prepareFile(f, items[i].replaceID)
			return nil
		})
	}
	group.Wait()
}

func prepareFile(f File, replaceID int64) prepared {
	data, err := f.Data()
	if err != nil {
		return prepared{replaceID: replaceID, err: err}
	}

	norm, err := imageprocessor.Normalize(data)
	if err != nil {
		return prepared{replaceID: replaceID, err: err}
	}

	fp, err := imageprocessor.ComputeFingerprint(norm.Raster)
	if err != nil {
		return prepared{replaceID: replaceID, err: err}
	}

	thumb, err := imageprocessor.EncodeThumbnail(norm.Raster)
	if err != nil {
		return prepared{replaceID: replaceID, err: err}
	}

	return prepared{
		replaceID: replaceID,
		thumbnail: thumb,
		fp:        &fp,
		width:     norm.Width,
		height:    norm.Height,
		metaTags:  tagging.ExtractKeywordTags(data),
	}
}
