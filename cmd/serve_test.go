package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-taskguard/app/controller"
	"github.com/vibast-solutions/ms-go-taskguard/app/jobs"
	"github.com/vibast-solutions/ms-go-taskguard/app/lock"
	"github.com/vibast-solutions/ms-go-taskguard/app/metrics"
	"github.com/vibast-solutions/ms-go-taskguard/app/queue"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/config"
)

func newTestServer(t *testing.T) *http.Server {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, _ := logtest.NewNullLogger()
	provider := lock.NewProviderFor(lock.KindRedis, lock.Stores{Redis: client}, lock.WithLogger(logger))
	tasks := service.NewTaskService(service.NewGuard(provider, config.TaskLimits{}, logger), logger)
	if err := jobs.Register(tasks); err != nil {
		t.Fatalf("jobs.Register: %v", err)
	}

	e := setupHTTPServer(logger, metrics.NewRegistry(),
		controller.NewLockController(tasks, logger),
		controller.NewTaskController(tasks, queue.NewTaskProducer(client), logger),
	)
	return &http.Server{Handler: e}
}

func TestSetupHTTPServerRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method string
		path   string
		code   int
		body   string
	}{
		{method: http.MethodGet, path: "/health", code: http.StatusOK, body: `"status":"ok"`},
		{method: http.MethodGet, path: "/metrics", code: http.StatusOK, body: "go_goroutines"},
		{method: http.MethodGet, path: "/tasks", code: http.StatusOK, body: jobs.AddTask},
		{method: http.MethodGet, path: "/locks/" + jobs.AddTask, code: http.StatusOK, body: `"running":false`},
		{method: http.MethodDelete, path: "/locks/" + jobs.AddTask, code: http.StatusOK, body: "lock reset"},
		{method: http.MethodGet, path: "/locks/jobs.unknown", code: http.StatusNotFound, body: "unknown task"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)

		if rec.Code != tt.code {
			t.Fatalf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.code, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.body) {
			t.Fatalf("%s %s: unexpected payload: %s", tt.method, tt.path, rec.Body.String())
		}
	}
}

func TestSetupHTTPServerEnqueue(t *testing.T) {
	server := newTestServer(t)

	body := strings.NewReader(`{"task_id":"t-1","args":[1,2]}`)
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+jobs.SubTask, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBuildTaskMessage(t *testing.T) {
	msg, err := buildTaskMessage([]string{jobs.MulTask, "[3,4]"}, `{"scale":2}`, "")
	if err != nil {
		t.Fatalf("buildTaskMessage: %v", err)
	}
	if msg.TaskID == "" {
		t.Fatalf("expected generated task id")
	}
	if string(msg.Args) != "[3,4]" || string(msg.Kwargs) != `{"scale":2}` {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := buildTaskMessage([]string{jobs.MulTask, "{}"}, "", "id"); err == nil {
		t.Fatalf("expected error for non-array args")
	}
	if _, err := buildTaskMessage([]string{jobs.MulTask}, "[]", "id"); err == nil {
		t.Fatalf("expected error for non-object kwargs")
	}
}

func TestLockRequest(t *testing.T) {
	req, err := lockRequest([]string{jobs.MulTask, "[3,4]", `{"a":1}`})
	if err != nil {
		t.Fatalf("lockRequest: %v", err)
	}
	fields := req.GetFields()
	if fields["task"].GetStringValue() != jobs.MulTask {
		t.Fatalf("unexpected task field %v", fields["task"])
	}
	if got := fields["args"].GetStringValue(); got != "[3,4]" {
		t.Fatalf("unexpected args %q", got)
	}
	if got := fields["kwargs"].GetStringValue(); got != `{"a":1}` {
		t.Fatalf("unexpected kwargs %q", got)
	}

	if _, err := lockRequest([]string{""}); err == nil {
		t.Fatalf("expected error for missing task")
	}
}
