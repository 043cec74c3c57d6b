package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThiagoRGoveia/club-power/internal/models"
)

var ErrNotFound = errors.New("record not found")

type DBManager interface {
	WriteSnapshot(ctx context.Context, records []models.ProgressRecord, opts WriteOptions) (int, error)
	RecordIngestRun(ctx context.Context, run models.IngestRun) error
	GetProgress(ctx context.Context, identifier string) (*models.ProgressRecord, error)
	GetPrizePoints(ctx context.Context, identifier string) (*models.PrizePoints, error)
	Ping(ctx context.Context) error
}

// WritePolicy selects how a batch lands in club_power_avance.
type WritePolicy string

const (
	// PolicyReplace clears the table and loads the batch, in one transaction.
	PolicyReplace WritePolicy = "replace"
	// PolicyMerge inserts new identifiers and overwrites existing ones.
	PolicyMerge WritePolicy = "merge"
)

const DefaultChunkSize = 1000

func ParseWritePolicy(s string) (WritePolicy, error) {
	switch p := WritePolicy(s); p {
	case PolicyReplace, PolicyMerge:
		return p, nil
	}
	return "", fmt.Errorf("unknown write policy '%s', expected '%s' or '%s'", s, PolicyReplace, PolicyMerge)
}

// ProgressFunc is told the cumulative row count after every chunk.
type ProgressFunc func(written, total int)

type WriteOptions struct {
	Policy    WritePolicy
	ChunkSize int
	Progress  ProgressFunc
}
