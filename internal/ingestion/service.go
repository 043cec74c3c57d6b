package ingestion

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/metrics"
	"github.com/ThiagoRGoveia/club-power/internal/models"
	"github.com/ThiagoRGoveia/club-power/internal/parser"
	"github.com/ThiagoRGoveia/club-power/pkg/checksum"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is a step of an ingest run. Runs move through the stages in order and
// stop at StageRejected on the first fatal error before StageWritten.
type Stage string

const (
	StageReceived     Stage = "received"
	StageParsed       Stage = "parsed"
	StageReconciled   Stage = "reconciled"
	StageValidated    Stage = "validated"
	StageDeduplicated Stage = "deduplicated"
	StageWritten      Stage = "written"
	StageAcknowledged Stage = "acknowledged"
	StageRejected     Stage = "rejected"
)

// Upload is one feed handed to the orchestrator.
type Upload struct {
	FileName    string
	ContentType string
	// Delimiter applies to delimited text only. Zero means comma.
	Delimiter rune
	Payload   []byte
}

type Options struct {
	Policy    database.WritePolicy
	ChunkSize int
	// Location is the zone in which "yesterday" is computed.
	Location *time.Location
	Progress database.ProgressFunc
}

type IngestionService struct {
	dbManager database.DBManager
	logger    *zap.Logger
	options   Options
	now       func() time.Time
}

func NewIngestionService(dbManager database.DBManager, logger *zap.Logger, opts Options) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &IngestionService{
		dbManager: dbManager,
		logger:    logger,
		options:   opts,
		now:       time.Now,
	}
}

func (s *IngestionService) Policy() database.WritePolicy {
	return s.options.Policy
}

// Execute runs one upload through parse, reconcile, validate, dedup and
// write. It returns a *ParseError, *SchemaError, *WriteError, or one of
// ErrUnsupportedFormat and ErrEmptyBatch; rows with a bad identifier are
// dropped and only show up in the counts. Storage is not touched unless a
// non-empty batch survives validation.
func (s *IngestionService) Execute(ctx context.Context, upload Upload) (*models.IngestResult, error) {
	started := s.now()
	snapshotDate := SnapshotDateFor(started, s.options.Location)

	result := &models.IngestResult{
		RunID:        uuid.NewString(),
		Policy:       string(s.options.Policy),
		Checksum:     checksum.CalculateChecksum(upload.Payload),
		SnapshotDate: snapshotDate,
	}
	logger := s.logger.With(
		zap.String("run_id", result.RunID),
		zap.String("file", upload.FileName),
		zap.String("checksum", result.Checksum),
		zap.String("policy", result.Policy),
	)
	logger.Info("Ingest received", zap.Int("bytes", len(upload.Payload)), zap.Stringer("snapshot_date", snapshotDate))

	reached, err := s.run(ctx, upload, snapshotDate, result, logger)

	outcome := metrics.OutcomeLoaded
	if err != nil {
		outcome = metrics.OutcomeRejected
		var writeErr *WriteError
		if errors.As(err, &writeErr) {
			outcome = metrics.OutcomeFailed
		}
		logger.Error("Ingest rejected",
			zap.String("state", string(StageRejected)),
			zap.String("last_stage", string(reached)),
			zap.Error(err),
		)
	} else {
		logger.Info("Ingest acknowledged",
			zap.Int("rows_read", result.RowsRead),
			zap.Int("rows_rejected", result.RowsRejected),
			zap.Int("rows_duplicated", result.RowsDuplicated),
			zap.Int("rows_loaded", result.RowsLoaded),
		)
	}
	metrics.CounterIngestRuns.WithLabelValues(outcome).Inc()

	s.recordRun(ctx, upload, result, started, err, logger)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// run returns the last stage the upload reached.
func (s *IngestionService) run(ctx context.Context, upload Upload, snapshotDate models.Date, result *models.IngestResult, logger *zap.Logger) (Stage, error) {
	stage := StageReceived
	advance := func(next Stage) {
		stage = next
		logger.Debug("Ingest stage reached", zap.String("stage", string(stage)))
	}

	p, err := parser.ForFile(upload.FileName, upload.ContentType, upload.Delimiter)
	if err != nil {
		return stage, err
	}

	table, err := p.Parse(bytes.NewReader(upload.Payload))
	if err != nil {
		return stage, &ParseError{Err: err}
	}
	result.RowsRead = len(table.Rows)
	metrics.CounterIngestRows.WithLabelValues("read").Add(float64(result.RowsRead))
	advance(StageParsed)

	columns, err := ReconcileColumns(table.Header)
	if err != nil {
		return stage, err
	}
	advance(StageReconciled)

	normalizer := NewNormalizer(columns, snapshotDate)
	rows := make([]normalizedRow, 0, len(table.Rows))
	overridden := 0
	for _, raw := range table.Rows {
		row, ok := normalizer.Normalize(raw)
		if !ok {
			result.RowsRejected++
			continue
		}
		if row.SourceDate != nil && !models.DateOf(*row.SourceDate).Equal(snapshotDate.Time) {
			overridden++
		}
		rows = append(rows, row)
	}
	metrics.CounterIngestRows.WithLabelValues("rejected").Add(float64(result.RowsRejected))
	if overridden > 0 {
		logger.Info("Source dates replaced by the closed day",
			zap.Int("rows", overridden), zap.Stringer("snapshot_date", snapshotDate))
	}
	advance(StageValidated)

	rows = dedupLastWins(rows)
	result.RowsDuplicated = result.RowsRead - result.RowsRejected - len(rows)
	metrics.CounterIngestRows.WithLabelValues("duplicate").Add(float64(result.RowsDuplicated))
	advance(StageDeduplicated)
	// An all-invalid file must never clear good data.
	if len(rows) == 0 {
		return stage, ErrEmptyBatch
	}

	records := make([]models.ProgressRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record
	}

	written, err := s.dbManager.WriteSnapshot(ctx, records, database.WriteOptions{
		Policy:    s.options.Policy,
		ChunkSize: s.options.ChunkSize,
		Progress:  s.options.Progress,
	})
	if err != nil {
		return stage, &WriteError{Err: err}
	}
	result.RowsLoaded = written
	metrics.CounterIngestRows.WithLabelValues("loaded").Add(float64(written))
	advance(StageWritten)

	advance(StageAcknowledged)
	return stage, nil
}

// recordRun writes the audit entry. It runs even when the caller's context is
// gone and its own failure is only logged.
func (s *IngestionService) recordRun(ctx context.Context, upload Upload, result *models.IngestResult, started time.Time, runErr error, logger *zap.Logger) {
	run := models.IngestRun{
		ID:           result.RunID,
		FileName:     upload.FileName,
		Checksum:     result.Checksum,
		Policy:       result.Policy,
		Status:       models.RUN_STATUS_DONE,
		RowsRead:     result.RowsRead,
		RowsRejected: result.RowsRejected,
		RowsLoaded:   result.RowsLoaded,
		StartedAt:    started,
		FinishedAt:   s.now(),
	}
	if runErr != nil {
		run.Status = models.RUN_STATUS_FAILED
		run.Error = runErr.Error()
	} else {
		date := result.SnapshotDate
		run.SnapshotDate = &date
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.dbManager.RecordIngestRun(ctx, run); err != nil {
		logger.Warn("Failed to record ingest run", zap.Error(err))
	}
}
