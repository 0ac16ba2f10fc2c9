package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/domain/task"
	"github.com/propsync/fieldtask/pkg/storage"
)

type stubPlanner struct {
	plan []application.PlannedTask
}

func (p *stubPlanner) PlanDay(ctx context.Context, workerID string, day time.Time) ([]application.PlannedTask, error) {
	return p.plan, nil
}

type stubLocator struct {
	position geo.Point
	err      error
}

func (l *stubLocator) ReadPosition(ctx context.Context) (geo.Point, error) {
	if l.err != nil {
		return geo.Point{}, l.err
	}
	return l.position, nil
}

type stubEvidenceStore struct{}

func (s *stubEvidenceStore) UploadEvidence(ctx context.Context, name string, data []byte) (string, error) {
	return "https://evidence.local/" + name, nil
}

func newTestServer(t *testing.T, locator *stubLocator) *httptest.Server {
	t.Helper()

	repo := storage.NewFilesystemRepository(t.TempDir())
	if err := repo.Initialize(); err != nil {
		t.Fatal(err)
	}

	fence, err := geo.NewFence(100)
	if err != nil {
		t.Fatal(err)
	}

	planner := &stubPlanner{plan: []application.PlannedTask{
		{
			Definition: task.Definition{ID: "def-pool", Name: "Clean pool", RequiresValidation: true, IsMainTask: true},
			SubTasks: []task.Definition{
				{ID: "def-pump", Name: "Check pump", RequiresScan: true},
			},
		},
		{
			Definition: task.Definition{ID: "def-lobby", Name: "Inspect lobby", IsMainTask: true},
		},
	}}

	generation := application.NewGenerationService(repo, planner, stats.NewAggregator(nil), nil)
	workflow := application.NewWorkflowService(repo, fence, locator, &stubEvidenceStore{}, nil, nil)
	statsSvc := application.NewStatsService(repo)

	srv := httptest.NewServer(NewServer(":0", generation, workflow, statsSvc, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func generateDay(t *testing.T, srv *httptest.Server, userID string) []task.Instance {
	t.Helper()
	resp := postJSON(t, srv.URL+"/user-tasks/generate", map[string]string{
		"user_id": userID,
		"date":    "2025-03-10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate returned %d", resp.StatusCode)
	}
	var out struct {
		Created   bool            `json:"created"`
		Instances []task.Instance `json:"instances"`
	}
	decode(t, resp, &out)
	return out.Instances
}

func findByDefinition(t *testing.T, instances []task.Instance, defID string) task.Instance {
	t.Helper()
	for _, inst := range instances {
		if inst.Definition.ID == defID {
			return inst
		}
	}
	t.Fatalf("no instance for definition %s", defID)
	return task.Instance{}
}

func TestServer_GenerateAndConflict(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})

	instances := generateDay(t, srv, "worker-1")
	if len(instances) != 3 {
		t.Fatalf("generated %d instances, want 3", len(instances))
	}

	// Second call for the same day conflicts but returns the existing set.
	resp := postJSON(t, srv.URL+"/user-tasks/generate", map[string]string{
		"user_id": "worker-1",
		"date":    "2025-03-10",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate generate returned %d, want 409", resp.StatusCode)
	}
	var out struct {
		Created   bool            `json:"created"`
		Instances []task.Instance `json:"instances"`
	}
	decode(t, resp, &out)
	if out.Created {
		t.Error("duplicate generate must report created=false")
	}
	if len(out.Instances) != 3 {
		t.Errorf("duplicate generate returned %d instances, want the existing 3", len(out.Instances))
	}
}

func TestServer_GenerateValidation(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})

	resp := postJSON(t, srv.URL+"/user-tasks/generate", map[string]string{"date": "2025-03-10"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing user_id returned %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/user-tasks/generate", map[string]string{"user_id": "w", "date": "March 10"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed date returned %d, want 400", resp.StatusCode)
	}
}

func TestServer_List(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})
	generateDay(t, srv, "worker-1")

	resp, err := http.Get(srv.URL + "/user-tasks?user_id=worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d", resp.StatusCode)
	}
	var out struct {
		UserTasks []struct {
			task.Instance
			EffectiveStatus task.Status     `json:"effective_status"`
			SubTasks        []task.Instance `json:"sub_user_task"`
		} `json:"user_tasks"`
	}
	decode(t, resp, &out)

	if len(out.UserTasks) != 2 {
		t.Fatalf("list returned %d mains, want 2", len(out.UserTasks))
	}
	for _, v := range out.UserTasks {
		if v.EffectiveStatus != task.StatusPending {
			t.Errorf("fresh instance %s effective status = %s", v.Definition.ID, v.EffectiveStatus)
		}
	}
}

func TestServer_StartAndCompleteWithEvidence(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})
	instances := generateDay(t, srv, "worker-1")
	pool := findByDefinition(t, instances, "def-pool")

	resp := postJSON(t, srv.URL+"/user-tasks/"+pool.InstanceID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start returned %d", resp.StatusCode)
	}
	var started task.Instance
	decode(t, resp, &started)
	if started.Status != task.StatusInProgress {
		t.Fatalf("started status = %s", started.Status)
	}

	// Completing without photos is rejected with the missing field list.
	resp = postJSON(t, srv.URL+"/user-tasks/"+pool.InstanceID+"/complete", map[string]string{"notes": "done"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("evidence-less complete returned %d, want 422", resp.StatusCode)
	}
	var errResp struct {
		Error   string                 `json:"error"`
		Details map[string]interface{} `json:"details"`
	}
	decode(t, resp, &errResp)
	if errResp.Details["missing"] == nil {
		t.Error("rejection must name the missing evidence fields")
	}

	// Multipart submission with both photos completes the task.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("notes", "scrubbed and refilled")
	for _, field := range []string{"file_before", "file_after"} {
		fw, err := mw.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(fw, "jpeg-bytes")
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/user-tasks/"+pool.InstanceID+"/complete", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("multipart complete returned %d: %s", resp.StatusCode, body)
	}
	var completed task.Instance
	decode(t, resp, &completed)
	if completed.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.Evidence == nil || completed.Evidence.PhotoBeforeURL == "" {
		t.Error("uploaded photo URLs missing from evidence")
	}
}

func TestServer_CompleteDirectTask(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})
	instances := generateDay(t, srv, "worker-1")
	lobby := findByDefinition(t, instances, "def-lobby")

	resp := postJSON(t, srv.URL+"/user-tasks/"+lobby.InstanceID+"/complete", map[string]string{"notes": "all fine"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("direct complete returned %d", resp.StatusCode)
	}
	var completed task.Instance
	decode(t, resp, &completed)
	if completed.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}

	// Replayed completion is a no-op success.
	resp = postJSON(t, srv.URL+"/user-tasks/"+lobby.InstanceID+"/complete", map[string]string{"notes": "retry"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("replayed complete returned %d, want 200", resp.StatusCode)
	}
}

func TestServer_StartDirectTaskConflicts(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})
	instances := generateDay(t, srv, "worker-1")
	lobby := findByDefinition(t, instances, "def-lobby")

	resp := postJSON(t, srv.URL+"/user-tasks/"+lobby.InstanceID+"/start", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("start on a direct task returned %d, want 409", resp.StatusCode)
	}
}

func TestServer_StartUnknownInstance(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})

	resp := postJSON(t, srv.URL+"/user-tasks/nope/start", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown instance returned %d, want 404", resp.StatusCode)
	}
}

func TestServer_GeofencedCompleteOutsideFence(t *testing.T) {
	locator := &stubLocator{position: geo.Point{Latitude: -6.3, Longitude: 106.8}}
	srv := newTestServer(t, locator)
	instances := generateDay(t, srv, "worker-1")
	pump := findByDefinition(t, instances, "def-pump")

	resp := postJSON(t, srv.URL+"/user-tasks/"+pump.InstanceID+"/start", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start returned %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("scan_code", `{"code":"pump-1","latitude":-6.2,"longitude":106.8}`)
	fw, ferr := mw.CreateFormFile("file_scan", "scan.jpg")
	if ferr != nil {
		t.Fatal(ferr)
	}
	if _, ferr := fw.Write([]byte("scan-bytes")); ferr != nil {
		t.Fatal(ferr)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/user-tasks/"+pump.InstanceID+"/complete", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-fence complete returned %d, want 422", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "distance_meters") {
		t.Error("rejection must report the measured distance")
	}
}

func TestServer_ScanCheck(t *testing.T) {
	locator := &stubLocator{position: geo.Point{Latitude: -6.2001, Longitude: 106.8001}}
	srv := newTestServer(t, locator)

	resp := postJSON(t, srv.URL+"/scans/check", map[string]string{
		"code": `{"code":"pump-1","latitude":-6.2,"longitude":106.8}`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan check returned %d", resp.StatusCode)
	}
	var check struct {
		Payload struct {
			Code   string     `json:"code"`
			Target *geo.Point `json:"target"`
		} `json:"payload"`
		Fence *geo.Result `json:"fence"`
	}
	decode(t, resp, &check)
	if check.Fence == nil || !check.Fence.Valid {
		t.Error("expected in-fence informational result")
	}
}

func TestServer_Stats(t *testing.T) {
	srv := newTestServer(t, &stubLocator{})
	instances := generateDay(t, srv, "worker-1")
	lobby := findByDefinition(t, instances, "def-lobby")

	resp := postJSON(t, srv.URL+"/user-tasks/"+lobby.InstanceID+"/complete", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete returned %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/user-tasks/stats?user_id=worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats returned %d", resp.StatusCode)
	}
	var out struct {
		Days []stats.DaySummary `json:"days"`
	}
	decode(t, resp, &out)
	if len(out.Days) != 1 {
		t.Fatalf("got %d day rows, want 1", len(out.Days))
	}
	day := out.Days[0]
	if day.Total != 2 || day.Completed != 1 || day.Percentage != 50 {
		t.Errorf("day rollup = %+v, want total 2 / completed 1 / 50%%", day)
	}

	detailResp, err := http.Get(srv.URL + "/user-tasks/stats/" + day.Date + "?user_id=worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if detailResp.StatusCode != http.StatusOK {
		t.Fatalf("stats detail returned %d", detailResp.StatusCode)
	}
	var detail stats.DayDetail
	decode(t, detailResp, &detail)
	if len(detail.Entries) != 3 {
		t.Errorf("detail has %d entries, want 3", len(detail.Entries))
	}
}
