package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/export"
	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/internal/repository"
	"github.com/oasislab/checkup-export/internal/worker"
	"github.com/oasislab/checkup-export/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// stubExporter finishes immediately with a complete single-format result.
type stubExporter struct{}

func (stubExporter) Export(ctx context.Context, snap *models.CheckupSnapshot, opts models.ExportOptions, onProgress export.ProgressFunc) (*models.MultiFormatExportResult, error) {
	result := models.NewMultiFormatExportResult("/tmp/export")
	result.Artifacts[models.FormatText] = models.ExportedArtifact{
		Path:   "/tmp/export/report.txt",
		Name:   "report.txt",
		Format: models.FormatText,
	}
	result.Finished = true
	if onProgress != nil {
		onProgress(result.Clone())
	}
	return result, nil
}

func setupServer(t *testing.T) (*Server, *worker.Manager, int64) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../../migrations"))

	res, err := db.Exec(`
		INSERT INTO checkups (client_name, site_name, technician, equipment_type, checkup_date)
		VALUES ('Acme Bottling', 'Plant North', 'J. Doe', 'Palletizer', ?)`,
		time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	checkupID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO check_items (checkup_id, module_name, position, description, status)
		VALUES (?, 'Electrical', 1, 'Cabinet wiring', 'pass')`, checkupID)
	require.NoError(t, err)

	repo := repository.NewCheckupRepository(db.DB, zap.NewNop())
	manager := worker.NewManager(stubExporter{}, zap.NewNop())
	t.Cleanup(manager.Shutdown)
	estimator := export.NewEstimator(export.DefaultEstimatorConfig())

	server := NewServer(DefaultServerConfig(), repo, manager, estimator, nopLogger{})
	return server, manager, checkupID
}

func do(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := do(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, true, resp["success"])
}

func TestEstimateExport(t *testing.T) {
	server, _, checkupID := setupServer(t)

	rec := do(t, server, http.MethodPost,
		"/api/v1/checkups/"+itoa(checkupID)+"/estimate",
		`{"formats":["document","text"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp["data"].(map[string]interface{})
	formats := data["formats"].(map[string]interface{})
	assert.Contains(t, formats, "document")
	assert.Contains(t, formats, "text")
	assert.NotContains(t, formats, "photos")
}

func TestEstimateExportUnknownCheckup(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := do(t, server, http.MethodPost, "/api/v1/checkups/999/estimate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartExportAndGetResult(t *testing.T) {
	server, manager, checkupID := setupServer(t)

	rec := do(t, server, http.MethodPost, "/api/v1/checkups/"+itoa(checkupID)+"/exports", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp["data"].(map[string]interface{})
	jobID := data["job_id"].(string)
	require.NotEmpty(t, jobID)

	job, ok := manager.Get(jobID)
	require.True(t, ok)
	<-job.Done()

	rec = do(t, server, http.MethodGet, "/api/v1/exports/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp = decodeResponse(t, rec)
	data = resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["finished"])
	result := data["result"].(map[string]interface{})
	artifacts := result["artifacts"].(map[string]interface{})
	assert.Contains(t, artifacts, "text")
}

func TestStartExportInvalidOptions(t *testing.T) {
	server, _, checkupID := setupServer(t)

	rec := do(t, server, http.MethodPost, "/api/v1/checkups/"+itoa(checkupID)+"/exports", `{"formats":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportJobNotFound(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/exports/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, server, http.MethodDelete, "/api/v1/exports/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelExport(t *testing.T) {
	server, manager, checkupID := setupServer(t)

	rec := do(t, server, http.MethodPost, "/api/v1/checkups/"+itoa(checkupID)+"/exports", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp["data"].(map[string]interface{})
	jobID := data["job_id"].(string)

	job, ok := manager.Get(jobID)
	require.True(t, ok)
	<-job.Done()

	// Cancelling a finished job is still acknowledged.
	rec = do(t, server, http.MethodDelete, "/api/v1/exports/"+jobID, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
