package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	progressTable = "club_power_avance"
	stagingTable  = "club_power_avance_staging"
)

// PoolConfig bounds the connection pool: MinConns stay open, up to MaxConns
// under load, and every connection is recycled after MaxConnLifetime.
type PoolConfig struct {
	MinConns          int32
	MaxConns          int32
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
	// TimeZone is the session zone, so CURRENT_DATE agrees with the ingest clock.
	TimeZone string
}

func ConnectDB(ctx context.Context, connStr string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.TimeZone != "" {
		poolCfg.ConnConfig.RuntimeParams["timezone"] = cfg.TimeZone
	}
	// Probe every connection before handing it out; a dead one is discarded.
	poolCfg.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		return conn.Ping(ctx) == nil
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	return dbpool, nil
}

// PgxConn is the subset of *pgxpool.Pool the manager needs.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type PostgresDBManager struct {
	db PgxConn
}

func NewPostgresDBManager(db PgxConn) *PostgresDBManager {
	return &PostgresDBManager{db: db}
}

func (m *PostgresDBManager) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

// progressColumns is the column order used for COPY into the staging table.
var progressColumns = []string{
	"dni", "nombre", "dia",
	"pp_total", "pp_vr", "porta_pp",
	"ss_total", "ss_vr", "opp", "oss",
	"meta_ene_pp", "meta_ene_ss", "meta_feb_pp", "meta_feb_ss",
}

const truncateProgressQuery = `TRUNCATE TABLE public.club_power_avance RESTART IDENTITY;`

const createStagingQuery = `
	CREATE TEMP TABLE IF NOT EXISTS club_power_avance_staging (
		dni VARCHAR(20) NOT NULL,
		nombre VARCHAR(120) NOT NULL,
		dia DATE NOT NULL,
		pp_total INTEGER NOT NULL,
		pp_vr INTEGER NOT NULL,
		porta_pp INTEGER NOT NULL,
		ss_total INTEGER NOT NULL,
		ss_vr INTEGER NOT NULL,
		opp INTEGER NOT NULL,
		oss INTEGER NOT NULL,
		meta_ene_pp INTEGER NOT NULL,
		meta_ene_ss INTEGER NOT NULL,
		meta_feb_pp INTEGER NOT NULL,
		meta_feb_ss INTEGER NOT NULL
	) ON COMMIT DROP;`

// upsertFromStagingQuery never touches created_at of an existing row; both
// timestamps come from the server clock.
const upsertFromStagingQuery = `
	INSERT INTO public.club_power_avance
		(dni, nombre, dia,
		 pp_total, pp_vr, porta_pp,
		 ss_total, ss_vr, opp, oss,
		 meta_ene_pp, meta_ene_ss, meta_feb_pp, meta_feb_ss,
		 created_at, updated_at)
	SELECT dni, nombre, dia,
		 pp_total, pp_vr, porta_pp,
		 ss_total, ss_vr, opp, oss,
		 meta_ene_pp, meta_ene_ss, meta_feb_pp, meta_feb_ss,
		 now(), now()
	FROM club_power_avance_staging
	ON CONFLICT (dni) DO UPDATE SET
		nombre = EXCLUDED.nombre,
		dia = EXCLUDED.dia,
		pp_total = EXCLUDED.pp_total,
		pp_vr = EXCLUDED.pp_vr,
		porta_pp = EXCLUDED.porta_pp,
		ss_total = EXCLUDED.ss_total,
		ss_vr = EXCLUDED.ss_vr,
		opp = EXCLUDED.opp,
		oss = EXCLUDED.oss,
		meta_ene_pp = EXCLUDED.meta_ene_pp,
		meta_ene_ss = EXCLUDED.meta_ene_ss,
		meta_feb_pp = EXCLUDED.meta_feb_pp,
		meta_feb_ss = EXCLUDED.meta_feb_ss,
		updated_at = now();`

const truncateStagingQuery = `TRUNCATE club_power_avance_staging;`

// WriteSnapshot lands a deduplicated batch in one transaction. Under
// PolicyReplace the table is cleared inside that same transaction, so readers
// see either the previous snapshot or the new one. Each chunk is copied into a
// session staging table and upserted from there. Any failure rolls back
// everything and reports zero rows written.
func (m *PostgresDBManager) WriteSnapshot(ctx context.Context, records []models.ProgressRecord, opts WriteOptions) (int, error) {
	if _, err := ParseWritePolicy(string(opts.Policy)); err != nil {
		return 0, err
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if opts.Policy == PolicyReplace {
		if _, err := tx.Exec(ctx, truncateProgressQuery); err != nil {
			return 0, fmt.Errorf("error clearing %s: %w", progressTable, describe(err))
		}
	}

	if _, err := tx.Exec(ctx, createStagingQuery); err != nil {
		return 0, fmt.Errorf("error creating staging table %s: %w", stagingTable, describe(err))
	}

	written := 0
	for start := 0; start < len(records); start += chunkSize {
		end := min(start+chunkSize, len(records))
		chunk := records[start:end]

		if err := copyIntoStaging(ctx, tx, chunk); err != nil {
			return 0, fmt.Errorf("unable to copy rows %d-%d into %s: %w", start+1, end, stagingTable, describe(err))
		}
		if _, err := tx.Exec(ctx, upsertFromStagingQuery); err != nil {
			return 0, fmt.Errorf("error upserting rows %d-%d into %s: %w", start+1, end, progressTable, describe(err))
		}
		if _, err := tx.Exec(ctx, truncateStagingQuery); err != nil {
			return 0, fmt.Errorf("error truncating staging table %s: %w", stagingTable, describe(err))
		}

		written += len(chunk)
		if opts.Progress != nil {
			opts.Progress(written, len(records))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing snapshot of %d rows: %w", written, describe(err))
	}

	return written, nil
}

func copyIntoStaging(ctx context.Context, tx pgx.Tx, records []models.ProgressRecord) error {
	copySource := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		r := records[i]
		return []any{
			r.Identifier, r.DisplayName, r.SnapshotDate.Time,
			r.PrepaidTotal, r.PrepaidVerified, r.PrepaidPorted,
			r.PostpaidTotal, r.PostpaidVerified, r.PostpaidOther1, r.PostpaidOther2,
			r.TargetMonth1Prepaid, r.TargetMonth1Postpaid, r.TargetMonth2Prepaid, r.TargetMonth2Postpaid,
		}, nil
	})

	_, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, progressColumns, copySource)
	return err
}

// describe names the violated constraint when Postgres reports one.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
	}
	return err
}

func (m *PostgresDBManager) GetProgress(ctx context.Context, identifier string) (*models.ProgressRecord, error) {
	query := `
	SELECT dni, nombre, dia,
		pp_total, pp_vr, porta_pp,
		ss_total, ss_vr, opp, oss,
		meta_ene_pp, meta_ene_ss, meta_feb_pp, meta_feb_ss,
		created_at, updated_at
	FROM public.club_power_avance
	WHERE dni = $1;`

	var r models.ProgressRecord
	err := m.db.QueryRow(ctx, query, identifier).Scan(
		&r.Identifier, &r.DisplayName, &r.SnapshotDate.Time,
		&r.PrepaidTotal, &r.PrepaidVerified, &r.PrepaidPorted,
		&r.PostpaidTotal, &r.PostpaidVerified, &r.PostpaidOther1, &r.PostpaidOther2,
		&r.TargetMonth1Prepaid, &r.TargetMonth1Postpaid, &r.TargetMonth2Prepaid, &r.TargetMonth2Postpaid,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying progress for %s: %w", identifier, err)
	}

	return &r, nil
}

func (m *PostgresDBManager) GetPrizePoints(ctx context.Context, identifier string) (*models.PrizePoints, error) {
	query := `
	SELECT dni, puntos_1er_premio, puntos_2do_premio, puntos, pv, tipo, canal
	FROM public.club_power_puntos
	WHERE dni = $1;`

	var p models.PrizePoints
	err := m.db.QueryRow(ctx, query, identifier).Scan(
		&p.Identifier, &p.Canasta, &p.Pavo, &p.Points, &p.PV, &p.Type, &p.Channel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying prize points for %s: %w", identifier, err)
	}

	return &p, nil
}

func (m *PostgresDBManager) RecordIngestRun(ctx context.Context, run models.IngestRun) error {
	query := `
	INSERT INTO public.ingest_runs
		(id, file_name, checksum, policy, status,
		 rows_read, rows_rejected, rows_loaded, snapshot_date, error,
		 started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	var snapshotDate *time.Time
	if run.SnapshotDate != nil {
		snapshotDate = &run.SnapshotDate.Time
	}

	_, err := m.db.Exec(ctx, query,
		run.ID, run.FileName, run.Checksum, run.Policy, run.Status,
		run.RowsRead, run.RowsRejected, run.RowsLoaded, snapshotDate, run.Error,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting ingest run %s: %w", run.ID, err)
	}

	return nil
}
