package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/maintenance"
	"github.com/JustinTDCT/SerialDesk/internal/metrics"
	"github.com/JustinTDCT/SerialDesk/internal/models"
)

func TestExecutor_DispatchRunsInline(t *testing.T) {
	provider := db.NewMemoryProvider("test")
	h, _ := provider.Acquire(context.Background())
	h.Collection(models.CollectionChannels).InsertOne(context.Background(),
		bson.M{"name": "A", "logo_url": "/assets/images/channel/a.png"})

	m := metrics.New()
	e := NewExecutor(provider, nil, logger.Nop(), m)
	out, err := e.Dispatch(context.Background(), maintenance.TaskUpdateImagePaths)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Queued || out.Result == nil || out.Result.Modified != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if got := testutil.ToFloat64(m.MaintenanceRuns.WithLabelValues(maintenance.TaskUpdateImagePaths, "ok")); got != 1 {
		t.Errorf("maintenance counter = %v, want 1", got)
	}
}

func TestExecutor_DispatchUnknownTask(t *testing.T) {
	e := NewExecutor(db.NewMemoryProvider("test"), nil, logger.Nop(), nil)
	if _, err := e.Dispatch(context.Background(), maintenance.TaskDiagnostics); !errors.Is(err, maintenance.ErrUnknownTask) {
		t.Fatalf("err = %v, want ErrUnknownTask", err)
	}
}

func TestExecutor_ProcessTask(t *testing.T) {
	e := NewExecutor(db.NewMemoryProvider("test"), nil, logger.Nop(), nil)
	tests := []struct {
		name      string
		payload   string
		wantErr   bool
		skipRetry bool
	}{
		{"valid", `{"task":"clean-episodes"}`, false, false},
		{"malformed", `{`, true, true},
		{"unknown task", `{"task":"nope"}`, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ProcessTask(context.Background(), asynq.NewTask(TaskMaintenance, []byte(tt.payload)))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.skipRetry && !errors.Is(err, asynq.SkipRetry) {
				t.Errorf("err = %v, want SkipRetry", err)
			}
		})
	}
}

func TestRedisOpt(t *testing.T) {
	opt, err := RedisOpt("localhost:6379")
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := opt.(asynq.RedisClientOpt); !ok || c.Addr != "localhost:6379" {
		t.Errorf("opt = %#v", opt)
	}

	opt, err = RedisOpt("redis://cache:6380/1")
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := opt.(asynq.RedisClientOpt); !ok || c.Addr != "cache:6380" || c.DB != 1 {
		t.Errorf("opt = %#v", opt)
	}
}

func TestNewDispatcher_FallsBackInline(t *testing.T) {
	e := NewExecutor(db.NewMemoryProvider("test"), nil, logger.Nop(), nil)
	tests := []struct {
		name     string
		redisURL string
	}{
		{"no redis", ""},
		{"redis down", "127.0.0.1:1"},
		{"bad url", "redis://cache:6379/notanumber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, q := NewDispatcher(context.Background(), tt.redisURL, e, logger.Nop())
			if q != nil {
				t.Fatal("queue started without a reachable redis")
			}
			if d != Dispatcher(e) {
				t.Fatalf("dispatcher = %T, want the inline executor", d)
			}
			out, err := d.Dispatch(context.Background(), maintenance.TaskReport)
			if err != nil || out.Queued {
				t.Errorf("Dispatch = %+v, %v", out, err)
			}
		})
	}
}
