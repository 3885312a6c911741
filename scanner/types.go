package scanner

import (
	"errors"

	"imagedex/types"
)

// ErrEmptyInput is returned when a batch contains no image files. Nothing
// is persisted and the caller surfaces a single message.
var ErrEmptyInput = errors.New("no image files found in batch")

// DefaultTagBudget caps how many items per run are sent to the semantic
// tagging service; later items persist with locally extracted tags and can
// be backfilled.
const DefaultTagBudget = 5

// Store is the persistent collaborator the pipeline writes to. GetAll must
// preserve insertion order.
type Store interface {
	Add(rec *types.AssetRecord) (int64, error)
	GetAll() ([]*types.AssetRecord, error)
	FindByNameAndSize(fileName string, fileSize int64) (*types.AssetRecord, error)
	Delete(id int64) error
}

// ItemState is the terminal state one discovered file ends in.
type ItemState int

const (
	// StatePersisted means the full normalize/fingerprint/tag/persist chain
	// succeeded.
	StatePersisted ItemState = iota
	// StateSkipped means a record with the same name and size already
	// existed and the item was not re-processed.
	StateSkipped
	// StateFailed means a per-item error (decode, fingerprint, read) was
	// recovered locally; the batch continued.
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StatePersisted:
		return "persisted"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemResult reports the outcome for one file in a batch.
type ItemResult struct {
	FileName string
	State    ItemState
	AssetID  int64 // set when persisted
	Err      error // set when failed
}

// BatchStats summarizes one pipeline run.
type BatchStats struct {
	Total     int
	Persisted int
	Skipped   int
	Failed    int
	Tagged    int // items that went through the tagging service
	Results   []ItemResult
}

// ProgressFunc receives processed/total after every item, including skips
// and failures, so processed increases monotonically to total.
type ProgressFunc func(processed, total int)

// Options configures a pipeline run.
type Options struct {
	ForceRewrite bool         // re-process files that match an existing record
	Workers      int          // normalize/fingerprint pool size; <=0 means 1
	TagBudget    int          // 0 means DefaultTagBudget; negative disables service tagging
	Progress     ProgressFunc // optional
}
