// Command serialdesk-maint runs one maintenance task against the configured
// database and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/maintenance"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout))
}

// execute runs the command and returns its exit status, so deferred cleanup
// completes before the process exits.
func execute(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("serialdesk-maint", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "abort the task after this long")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: serialdesk-maint [flags] <task>\n\ntasks: %s, %s\n\nflags:\n",
			strings.Join(maintenance.Tasks, ", "), maintenance.TaskDiagnostics)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	task := fs.Arg(0)

	cfg := config.Load()
	log := logger.New("serialdesk-maint", cfg.AppEnv)
	defer log.Sync()

	provider, err := db.NewProvider(cfg, log.Named("db"))
	if err != nil {
		log.Error("database setup failed", "error", err)
		return 1
	}
	defer provider.Close(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := run(ctx, task, cfg, provider, log)
	if err != nil {
		log.Error("maintenance task failed", "task", task, "error", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("encode result", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, task string, cfg *config.Config, provider db.Provider, log *logger.Logger) (any, error) {
	if task == maintenance.TaskDiagnostics {
		return maintenance.Diagnose(ctx, cfg, provider), nil
	}
	if !maintenance.Known(task) {
		return nil, fmt.Errorf("%w: %s", maintenance.ErrUnknownTask, task)
	}

	h, err := provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer provider.Release(ctx, h)

	return maintenance.NewRunner(h, log.Named("maintenance")).Run(ctx, task)
}
