package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLauncher records ExecuteScan calls instead of running nmap.
type stubLauncher struct {
	mu       sync.Mutex
	scanIDs  []uint
	networks [][]string
	done     chan struct{}
}

func newStubLauncher() *stubLauncher {
	return &stubLauncher{done: make(chan struct{}, 8)}
}

func (s *stubLauncher) ExecuteScan(ctx context.Context, scanID uint, networks []string) error {
	s.mu.Lock()
	s.scanIDs = append(s.scanIDs, scanID)
	s.networks = append(s.networks, networks)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *stubLauncher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("launcher was not invoked")
	}
}

func TestCreateScan(t *testing.T) {
	stub := newStubLauncher()
	SetScanLauncher(stub)
	defer SetScanLauncher(nil)

	app := fiber.New()
	app.Post("/api/scans", CreateScanHandler)

	resp := postJSON(t, app, "/api/scans", ScanCreateInput{
		Name:     "Office sweep",
		Networks: []string{"192.0.2.0/24", "198.51.100.0/24"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var scan db.Scan
	decodeBody(t, resp, &scan)
	assert.Equal(t, "Office sweep", scan.Name)
	assert.Equal(t, "192.0.2.0/24, 198.51.100.0/24", scan.NetworkRange)
	assert.Equal(t, db.ScanStatusPending, scan.Status)
	assert.Equal(t, "Scan queued", scan.ProgressMessage)

	stub.wait(t)
	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.scanIDs, 1)
	assert.Equal(t, scan.ID, stub.scanIDs[0])
	assert.Equal(t, []string{"192.0.2.0/24", "198.51.100.0/24"}, stub.networks[0])
}

func TestCreateScanDefaultsName(t *testing.T) {
	stub := newStubLauncher()
	SetScanLauncher(stub)
	defer SetScanLauncher(nil)

	app := fiber.New()
	app.Post("/api/scans", CreateScanHandler)

	resp := postJSON(t, app, "/api/scans", ScanCreateInput{Networks: []string{"192.0.2.0/28"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var scan db.Scan
	decodeBody(t, resp, &scan)
	assert.Equal(t, "Manual scan", scan.Name)
	stub.wait(t)
}

func TestCreateScanRejectsInvalidNetwork(t *testing.T) {
	stub := newStubLauncher()
	SetScanLauncher(stub)
	defer SetScanLauncher(nil)

	app := fiber.New()
	app.Post("/api/scans", CreateScanHandler)

	resp := postJSON(t, app, "/api/scans", ScanCreateInput{Networks: []string{"not-a-network"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid network", body.Error)
}

func TestCreateScanWithoutLauncher(t *testing.T) {
	SetScanLauncher(nil)

	app := fiber.New()
	app.Post("/api/scans", CreateScanHandler)

	resp := postJSON(t, app, "/api/scans", ScanCreateInput{Networks: []string{"192.0.2.0/24"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListScans(t *testing.T) {
	for _, name := range []string{"list-scan-1", "list-scan-2", "list-scan-3"} {
		_, err := db.Connection.CreateScan(&db.Scan{
			Name:         name,
			NetworkRange: "192.0.2.0/24",
			Status:       db.ScanStatusCompleted,
		})
		require.NoError(t, err)
	}

	app := fiber.New()
	app.Get("/api/scans", ListScansHandler)

	req := httptest.NewRequest("GET", "/api/scans?limit=100", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []db.Scan `json:"data"`
		Count int64     `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.GreaterOrEqual(t, body.Count, int64(3))
	require.NotEmpty(t, body.Data)
	// Newest first: the last scan created above leads the page.
	assert.Equal(t, "list-scan-3", body.Data[0].Name)

	req = httptest.NewRequest("GET", "/api/scans?limit=2", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	decodeBody(t, resp, &body)
	assert.Len(t, body.Data, 2)
}

func TestGetScanNotFound(t *testing.T) {
	app := fiber.New()
	app.Get("/api/scans/:id", GetScanHandler)

	req := httptest.NewRequest("GET", "/api/scans/999999", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Scan not found", body.Error)
}

func TestGetScanIncludesHostsAndPorts(t *testing.T) {
	scan, err := db.Connection.CreateScan(&db.Scan{
		Name:         "detail-scan",
		NetworkRange: "192.0.2.0/24",
		Status:       db.ScanStatusCompleted,
	})
	require.NoError(t, err)

	host, err := db.Connection.CreateHost(&db.Host{
		ScanID:     scan.ID,
		IPAddress:  "192.0.2.77",
		Hostname:   "web01",
		ScanStatus: db.HostScanStatusCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, db.Connection.DB().Create(&db.Port{
		HostID: host.ID, Port: 443, Protocol: "tcp", Service: "https", Product: "nginx",
	}).Error)

	app := fiber.New()
	app.Get("/api/scans/:id", GetScanHandler)

	req := httptest.NewRequest("GET", "/api/scans/"+itoa(scan.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got db.Scan
	decodeBody(t, resp, &got)
	require.Len(t, got.Hosts, 1)
	assert.Equal(t, "192.0.2.77", got.Hosts[0].IPAddress)
	require.Len(t, got.Hosts[0].Ports, 1)
	assert.Equal(t, 443, got.Hosts[0].Ports[0].Port)
}

func TestDeleteScanRemovesArtifactFiles(t *testing.T) {
	scan, err := db.Connection.CreateScan(&db.Scan{
		Name:         "delete-scan",
		NetworkRange: "192.0.2.0/24",
		Status:       db.ScanStatusCompleted,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	_, err = db.Connection.CreateArtifact(&db.Artifact{
		ScanID: scan.ID, Type: db.ArtifactTypeHTML, FilePath: path, FileSize: 13,
	})
	require.NoError(t, err)

	app := fiber.New()
	app.Delete("/api/scans/:id", DeleteScanHandler)

	req := httptest.NewRequest("DELETE", "/api/scans/"+itoa(scan.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = db.Connection.GetScanByID(scan.ID)
	assert.Error(t, err)

	// Gone means gone.
	req = httptest.NewRequest("DELETE", "/api/scans/"+itoa(scan.ID), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
