package maintenance

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store/memstore"
)

func seed(t *testing.T, database *memstore.Database, collection string, docs ...bson.M) {
	t.Helper()
	for _, d := range docs {
		if _, err := database.Collection(collection).InsertOne(context.Background(), d); err != nil {
			t.Fatalf("seed %s: %v", collection, err)
		}
	}
}

func TestRun_CleanEpisodes(t *testing.T) {
	database := memstore.New("test")
	seed(t, database, models.CollectionEpisodes,
		bson.M{"_id": "ep1", "serial_id": "s1", "video_url": "v1", "title": "Old", "thumbnail": "t.png"},
		bson.M{"_id": "ep2", "serial_id": "s1", "video_url": "v2"},
	)
	r := NewRunner(database, logger.Nop())

	res, err := r.Run(context.Background(), TaskCleanEpisodes)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Matched != 2 || res.Modified != 1 {
		t.Errorf("matched/modified = %d/%d, want 2/1", res.Matched, res.Modified)
	}

	var ep bson.M
	if err := database.Collection(models.CollectionEpisodes).FindOne(context.Background(), bson.M{"_id": "ep1"}, &ep); err != nil {
		t.Fatal(err)
	}
	if _, ok := ep["title"]; ok {
		t.Error("title still present")
	}
	if ep["video_url"] != "v1" {
		t.Errorf("video_url = %v, want v1", ep["video_url"])
	}
}

func TestRun_RemoveEpisodeTimestamps(t *testing.T) {
	database := memstore.New("test")
	seed(t, database, models.CollectionEpisodes,
		bson.M{"_id": "ep1", "createdAt": "x", "updatedAt": "y", "views": 3},
	)
	res, err := NewRunner(database, logger.Nop()).Run(context.Background(), TaskRemoveEpisodeTimestamps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Modified != 1 {
		t.Errorf("modified = %d, want 1", res.Modified)
	}
	var ep bson.M
	database.Collection(models.CollectionEpisodes).FindOne(context.Background(), bson.M{"_id": "ep1"}, &ep)
	for _, f := range []string{"createdAt", "updatedAt", "views"} {
		if _, ok := ep[f]; ok {
			t.Errorf("%s still present", f)
		}
	}
}

func TestUpdateImagePaths(t *testing.T) {
	database := memstore.New("test")
	seed(t, database, models.CollectionChannels,
		bson.M{"name": "A", "logo_url": "/assets/images/channel/a.png"},
		bson.M{"name": "B", "logo_url": "/assets/images/b.png"},
		bson.M{"name": "C"},
	)
	seed(t, database, models.CollectionSerials,
		bson.M{"title": "S", "image": "/assets/images/serial/s.jpg"},
		bson.M{"title": "T", "image": "https://cdn.example.com/assets/images/serial/t.jpg"},
	)

	res, err := NewRunner(database, logger.Nop()).Run(context.Background(), TaskUpdateImagePaths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Matched != 2 || res.Modified != 2 || len(res.Changes) != 2 {
		t.Fatalf("result = %+v, want 2 rewrites", res)
	}

	tests := []struct {
		collection string
		filter     bson.M
		field      string
		want       string
	}{
		{models.CollectionChannels, bson.M{"name": "A"}, "logo_url", "/assets/images/a.png"},
		{models.CollectionChannels, bson.M{"name": "B"}, "logo_url", "/assets/images/b.png"},
		{models.CollectionSerials, bson.M{"title": "S"}, "image", "/assets/images/s.jpg"},
		{models.CollectionSerials, bson.M{"title": "T"}, "image", "https://cdn.example.com/assets/images/serial/t.jpg"},
	}
	for _, tt := range tests {
		var doc bson.M
		if err := database.Collection(tt.collection).FindOne(context.Background(), tt.filter, &doc); err != nil {
			t.Fatal(err)
		}
		if doc[tt.field] != tt.want {
			t.Errorf("%s %v: %s = %v, want %s", tt.collection, tt.filter, tt.field, doc[tt.field], tt.want)
		}
	}

	again, err := NewRunner(database, logger.Nop()).UpdateImagePaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Matched != 0 {
		t.Errorf("second run matched %d documents", again.Matched)
	}
}

func TestReport(t *testing.T) {
	database := memstore.New("test")
	seed(t, database, models.CollectionChannels, bson.M{"name": "Star", "is_active": true})
	seed(t, database, models.CollectionSerials,
		bson.M{"title": "Titled", "image": "/i.png"},
		bson.M{"name": "Legacy"},
	)
	seed(t, database, models.CollectionEpisodes,
		bson.M{"_id": "ep1", "serial_id": "s1"},
		bson.M{"_id": "ep2", "serial_id": "s1"},
		bson.M{"_id": "ep3", "serial_id": "s2"},
	)

	res, err := NewRunner(database, logger.Nop()).Run(context.Background(), TaskReport)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := res.Report
	if rep.Counts[models.CollectionChannels] != 1 || rep.Counts[models.CollectionEpisodes] != 3 || rep.Counts[models.CollectionNotices] != 0 {
		t.Errorf("counts = %v", rep.Counts)
	}
	if len(rep.Counts) != 7 {
		t.Errorf("counted %d collections, want 7", len(rep.Counts))
	}
	if len(rep.Channels) != 1 || rep.Channels[0].Name != "Star" || !rep.Channels[0].IsActive {
		t.Errorf("channels = %+v", rep.Channels)
	}
	names := map[string]bool{}
	for _, s := range rep.Serials {
		names[s.Name] = true
	}
	if !names["Titled"] || !names["Legacy"] {
		t.Errorf("serial names = %v", names)
	}
	if rep.EpisodesBySerial["s1"] != 2 || rep.EpisodesBySerial["s2"] != 1 {
		t.Errorf("episodesBySerial = %v", rep.EpisodesBySerial)
	}
}

func TestRun_UnknownTask(t *testing.T) {
	_, err := NewRunner(memstore.New("test"), logger.Nop()).Run(context.Background(), "drop-everything")
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("err = %v, want ErrUnknownTask", err)
	}
	if Known("drop-everything") || !Known(TaskReport) {
		t.Error("Known disagrees with the task list")
	}
}

func TestDiagnose(t *testing.T) {
	cfg := &config.Config{AppEnv: "test", Port: 9000, DBDriver: config.DriverMemory}
	d := Diagnose(context.Background(), cfg, db.NewMemoryProvider("test"))
	if d.Database != "ok" || d.MongoURI != "not set" || d.Redis != "not set" {
		t.Errorf("diagnostics = %+v", d)
	}

	cfg = &config.Config{DBDriver: config.DriverMongo, DBConnectionMode: config.ModePerCall}
	provider, err := db.NewProvider(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	d = Diagnose(context.Background(), cfg, provider)
	if d.Database != "failed" || d.DatabaseError == "" {
		t.Errorf("diagnostics without a URI = %+v", d)
	}
}

func TestRunner_LogsComponentOnce(t *testing.T) {
	database := memstore.New("test")
	seed(t, database, models.CollectionChannels, bson.M{"name": "A", "logo_url": "/assets/images/channel/a.png"})

	core, logs := observer.New(zap.InfoLevel)
	log := (&logger.Logger{SugaredLogger: zap.New(core).Sugar()}).Named("maintenance")
	if _, err := NewRunner(database, log).Run(context.Background(), TaskUpdateImagePaths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries := logs.All()
	if len(entries) == 0 {
		t.Fatal("no log entries")
	}
	for _, e := range entries {
		n := 0
		for _, f := range e.Context {
			if f.Key == "component" {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%q carries %d component fields, want 1", e.Message, n)
		}
	}
}
