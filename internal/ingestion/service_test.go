package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// MockDBManager is a mock implementation of the DBManager interface.
type MockDBManager struct {
	mock.Mock
}

func (m *MockDBManager) WriteSnapshot(ctx context.Context, records []models.ProgressRecord, opts database.WriteOptions) (int, error) {
	args := m.Called(ctx, records, opts)
	return args.Int(0), args.Error(1)
}

func (m *MockDBManager) RecordIngestRun(ctx context.Context, run models.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDBManager) GetProgress(ctx context.Context, identifier string) (*models.ProgressRecord, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProgressRecord), args.Error(1)
}

func (m *MockDBManager) GetPrizePoints(ctx context.Context, identifier string) (*models.PrizePoints, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrizePoints), args.Error(1)
}

func (m *MockDBManager) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

const csvHeader = "dni,nombre,dia,pp_total,pp_vr,porta_pp,ss_total,ss_vr,opp,oss,meta_ene_pp,meta_ene_ss,meta_feb_pp,meta_feb_ss"

func csvUpload(lines ...string) Upload {
	return Upload{
		FileName:    "avance.csv",
		ContentType: "text/csv",
		Payload:     []byte(csvHeader + "\n" + strings.Join(lines, "\n") + "\n"),
	}
}

var lima, _ = time.LoadLocation("America/Lima")

// newTestService pins the clock to 2026-01-06 10:00 in Lima, so the closed
// day is 2026-01-05.
func newTestService(dbManager *MockDBManager, policy database.WritePolicy) *IngestionService {
	service := NewIngestionService(dbManager, nil, Options{Policy: policy, ChunkSize: 1000, Location: lima})
	service.now = func() time.Time { return time.Date(2026, 1, 6, 10, 0, 0, 0, lima) }
	return service
}

func expectWrite(dbManager *MockDBManager, captured *[]models.ProgressRecord) *mock.Call {
	return dbManager.On("WriteSnapshot", mock.Anything, mock.Anything, mock.AnythingOfType("database.WriteOptions")).
		Run(func(args mock.Arguments) {
			*captured = args.Get(1).([]models.ProgressRecord)
		})
}

func TestIngestionService_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("should load valid rows with recomputed totals and the closed day", func(t *testing.T) {
		dbManager := new(MockDBManager)
		var written []models.ProgressRecord
		expectWrite(dbManager, &written).Return(1, nil).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.MatchedBy(func(run models.IngestRun) bool {
			return run.Status == models.RUN_STATUS_DONE && run.RowsRead == 2 && run.RowsRejected == 1 && run.RowsLoaded == 1
		})).Return(nil).Once()

		result, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, csvUpload(
			"666666,Juan,2099-01-01,999,40,16,0,1,1,1,0,0,0,0",
			"abc123,Pedro,2099-01-01,1,1,0,0,0,0,0,0,0,0,0",
		))

		require.NoError(t, err)
		assert.Equal(t, 1, result.RowsLoaded)
		assert.Equal(t, 1, result.RowsRejected)
		assert.Equal(t, "2026-01-05", result.SnapshotDate.String())
		assert.Equal(t, string(database.PolicyReplace), result.Policy)
		assert.NotEmpty(t, result.RunID)

		require.Len(t, written, 1)
		assert.Equal(t, "666666", written[0].Identifier)
		assert.Equal(t, 56, written[0].PrepaidTotal)
		assert.Equal(t, 3, written[0].PostpaidTotal)
		assert.Equal(t, "2026-01-05", written[0].SnapshotDate.String())
		dbManager.AssertExpectations(t)
	})

	t.Run("should keep the last row of a repeated identifier", func(t *testing.T) {
		dbManager := new(MockDBManager)
		var written []models.ProgressRecord
		expectWrite(dbManager, &written).Return(2, nil).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		result, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, csvUpload(
			"666666,Juan,,0,10,0,0,0,0,0,0,0,0,0",
			"123456,Ana,,0,5,0,0,0,0,0,0,0,0,0",
			"666666,Juan Perez,,0,25,0,0,0,0,0,0,0,0,0",
		))

		require.NoError(t, err)
		assert.Equal(t, 1, result.RowsDuplicated)
		require.Len(t, written, 2)
		assert.Equal(t, "123456", written[0].Identifier)
		assert.Equal(t, "666666", written[1].Identifier)
		assert.Equal(t, 25, written[1].PrepaidVerified)
		assert.Equal(t, "Juan Perez", written[1].DisplayName)
	})

	t.Run("should pass the configured policy and chunk size to storage", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("WriteSnapshot", mock.Anything, mock.Anything, mock.MatchedBy(func(o database.WriteOptions) bool {
			return o.Policy == database.PolicyMerge && o.ChunkSize == 1000
		})).Return(1, nil).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := newTestService(dbManager, database.PolicyMerge).Execute(ctx, csvUpload("666666,Juan,,0,1,0,0,0,0,0,0,0,0,0"))

		require.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("should reject a file without valid rows and leave storage alone", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("RecordIngestRun", mock.Anything, mock.MatchedBy(func(run models.IngestRun) bool {
			return run.Status == models.RUN_STATUS_FAILED && run.SnapshotDate == nil
		})).Return(nil).Once()

		result, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, csvUpload(
			"12345,Short,,0,1,0,0,0,0,0,0,0,0,0",
			"abcdefg,Letters,,0,1,0,0,0,0,0,0,0,0,0",
		))

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrEmptyBatch)
		dbManager.AssertNotCalled(t, "WriteSnapshot", mock.Anything, mock.Anything, mock.Anything)
		dbManager.AssertExpectations(t)
	})

	t.Run("should name every missing column", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, Upload{
			FileName: "avance.csv",
			Payload:  []byte("dni,nombre,pp_vr\n666666,Juan,1\n"),
		})

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, []string{"dia", "porta_pp", "ss_vr", "opp", "oss"}, schemaErr.Missing)
		dbManager.AssertNotCalled(t, "WriteSnapshot", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should reject an unsupported format", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, Upload{
			FileName:    "avance.pdf",
			ContentType: "application/pdf",
			Payload:     []byte("%PDF-1.4"),
		})

		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("should report an unreadable file as a parse error", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, Upload{
			FileName: "avance.xlsx",
			Payload:  []byte("not a workbook"),
		})

		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("should surface a storage failure as a write error", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("WriteSnapshot", mock.Anything, mock.Anything, mock.Anything).
			Return(0, errors.New("constraint ck_dia_d_menos_1 violated")).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.MatchedBy(func(run models.IngestRun) bool {
			return run.Status == models.RUN_STATUS_FAILED && strings.Contains(run.Error, "ck_dia_d_menos_1")
		})).Return(nil).Once()

		result, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, csvUpload("666666,Juan,,0,1,0,0,0,0,0,0,0,0,0"))

		assert.Nil(t, result)
		var writeErr *WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Contains(t, err.Error(), "ck_dia_d_menos_1")
		dbManager.AssertExpectations(t)
	})

	t.Run("should not fail the ingest when the audit entry cannot be written", func(t *testing.T) {
		dbManager := new(MockDBManager)
		dbManager.On("WriteSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(errors.New("ingest_runs missing")).Once()

		result, err := newTestService(dbManager, database.PolicyReplace).Execute(ctx, csvUpload("666666,Juan,,0,1,0,0,0,0,0,0,0,0,0"))

		require.NoError(t, err)
		assert.Equal(t, 1, result.RowsLoaded)
	})

	t.Run("should read a workbook with variant headers", func(t *testing.T) {
		book := excelize.NewFile()
		sheet := book.GetSheetName(0)
		require.NoError(t, book.SetSheetRow(sheet, "A1", &[]any{"Nro DNI", "Asesor", "Fecha", "PP VR", "Porta", "SS VR", "OPP", "OSS", "ss total"}))
		require.NoError(t, book.SetSheetRow(sheet, "A2", &[]any{"47178389", " Maria ", "2026-01-01", 4, 2, 3, 1, 0, 99}))
		buf, err := book.WriteToBuffer()
		require.NoError(t, err)
		require.NoError(t, book.Close())

		dbManager := new(MockDBManager)
		var written []models.ProgressRecord
		expectWrite(dbManager, &written).Return(1, nil).Once()
		dbManager.On("RecordIngestRun", mock.Anything, mock.Anything).Return(nil).Once()

		_, err = newTestService(dbManager, database.PolicyReplace).Execute(ctx, Upload{FileName: "Avance.XLSX", Payload: buf.Bytes()})

		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.Equal(t, "Maria", written[0].DisplayName)
		assert.Equal(t, 6, written[0].PrepaidTotal)
		assert.Equal(t, 4, written[0].PostpaidTotal)
		assert.Equal(t, 0, written[0].TargetMonth1Prepaid)
	})
}
