package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

const (
	TaskCleanEpisodes           = "clean-episodes"
	TaskRemoveEpisodeTimestamps = "remove-episode-timestamps"
	TaskUpdateImagePaths        = "update-image-paths"
	TaskReport                  = "report"
	TaskDiagnostics             = "diagnostics"
)

const (
	imagePrefix        = "/assets/images/"
	channelImagePrefix = "/assets/images/channel/"
	serialImagePrefix  = "/assets/images/serial/"
)

var ErrUnknownTask = errors.New("unknown maintenance task")

// Tasks lists the tasks Run accepts. Diagnostics needs the process
// configuration and is run through Diagnose instead.
var Tasks = []string{TaskCleanEpisodes, TaskRemoveEpisodeTimestamps, TaskUpdateImagePaths, TaskReport}

func Known(task string) bool {
	for _, t := range Tasks {
		if t == task {
			return true
		}
	}
	return false
}

type Result struct {
	Task     string       `json:"task"`
	Matched  int64        `json:"matched"`
	Modified int64        `json:"modified"`
	Changes  []PathChange `json:"changes,omitempty"`
	Report   *Report      `json:"report,omitempty"`
	Duration int64        `json:"durationMs"`
}

// PathChange records one rewritten image path.
type PathChange struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// Runner executes one-off data repairs against a database.
type Runner struct {
	db  store.Database
	log *logger.Logger
}

func NewRunner(db store.Database, log *logger.Logger) *Runner {
	return &Runner{db: db, log: log}
}

func (r *Runner) Run(ctx context.Context, task string) (*Result, error) {
	start := time.Now()
	var (
		res *Result
		err error
	)
	switch task {
	case TaskCleanEpisodes:
		res, err = r.unsetEpisodeFields(ctx, task, "title", "description", "duration", "thumbnail", "serial_title")
	case TaskRemoveEpisodeTimestamps:
		res, err = r.unsetEpisodeFields(ctx, task, "createdAt", "updatedAt", "views")
	case TaskUpdateImagePaths:
		res, err = r.UpdateImagePaths(ctx)
	case TaskReport:
		var rep *Report
		rep, err = r.Report(ctx)
		res = &Result{Task: task, Report: rep}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	if err != nil {
		r.log.Error("task failed", "task", task, "error", err)
		return nil, err
	}
	res.Duration = time.Since(start).Milliseconds()
	r.log.Info("task finished", "task", task, "matched", res.Matched, "modified", res.Modified)
	return res, nil
}

func (r *Runner) unsetEpisodeFields(ctx context.Context, task string, fields ...string) (*Result, error) {
	unset := bson.M{}
	for _, f := range fields {
		unset[f] = ""
	}
	ur, err := r.db.Collection(models.CollectionEpisodes).UpdateMany(ctx, bson.M{}, bson.M{"$unset": unset})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	return &Result{Task: task, Matched: ur.Matched, Modified: ur.Modified}, nil
}

// UpdateImagePaths flattens the legacy per-kind image folders into the
// shared images folder.
func (r *Runner) UpdateImagePaths(ctx context.Context) (*Result, error) {
	res := &Result{Task: TaskUpdateImagePaths}
	if err := r.rewritePaths(ctx, res, models.CollectionChannels, "logo_url", channelImagePrefix); err != nil {
		return nil, err
	}
	if err := r.rewritePaths(ctx, res, models.CollectionSerials, "image", serialImagePrefix); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) rewritePaths(ctx context.Context, res *Result, collection, field, prefix string) error {
	coll := r.db.Collection(collection)
	var docs []bson.M
	if err := coll.Find(ctx, bson.M{}, nil, &docs); err != nil {
		return fmt.Errorf("read %s: %w", collection, err)
	}
	for _, doc := range docs {
		old, _ := doc[field].(string)
		if !strings.HasPrefix(old, prefix) {
			continue
		}
		res.Matched++
		next := imagePrefix + strings.TrimPrefix(old, prefix)
		ur, err := coll.UpdateOne(ctx, bson.M{"_id": doc["_id"]}, bson.M{"$set": bson.M{field: next}})
		if err != nil {
			return fmt.Errorf("update %s %v: %w", collection, doc["_id"], err)
		}
		res.Modified += ur.Modified
		change := PathChange{Collection: collection, ID: idString(doc["_id"]), Name: displayName(doc), From: old, To: next}
		res.Changes = append(res.Changes, change)
		r.log.Info("image path updated", "collection", collection, "name", change.Name, "from", old, "to", next)
	}
	return nil
}

func displayName(doc bson.M) string {
	for _, k := range []string{"title", "name"} {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func idString(v any) string {
	if h, ok := v.(interface{ Hex() string }); ok {
		return h.Hex()
	}
	return fmt.Sprint(v)
}
