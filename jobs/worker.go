package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 5

// TaskHandler binds a task type to its handler.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration schedules Task on Spec. An empty Spec disables the entry.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// Worker processes queued tasks and, when cron entries are configured,
// enqueues the periodic ones.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
	handlers  int
	schedules int
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	w := &Worker{logger: logger, mux: asynq.NewServeMux()}
	w.mux.Use(w.logTask)
	seen := make(map[string]struct{}, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			return nil, errors.New("jobs: handler needs a task type and a func")
		}
		if _, dup := seen[h.Type]; dup {
			return nil, fmt.Errorf("jobs: duplicate handler for %s", h.Type)
		}
		seen[h.Type] = struct{}{}
		w.mux.HandleFunc(h.Type, h.Handler)
	}
	w.handlers = len(seen)

	var cron []CronRegistration
	for _, entry := range cfg.Cron {
		if entry.Spec == "" {
			continue
		}
		if entry.Task == nil {
			return nil, fmt.Errorf("jobs: cron %q has no task", entry.Spec)
		}
		cron = append(cron, entry)
	}
	if len(cron) > 0 {
		w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   asynqLogger{logger},
		})
		for _, entry := range cron {
			if _, err := w.scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("jobs: register %s on %q: %w", entry.Task.Type(), entry.Spec, err)
			}
		}
		w.schedules = len(cron)
	}

	w.server = asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		ShutdownTimeout: 10 * time.Second,
		Logger:          asynqLogger{logger},
		ErrorHandler:    asynq.ErrorHandlerFunc(w.reportFailure),
	})
	return w, nil
}

// Run blocks until ctx is cancelled, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	defer w.server.Shutdown()

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}

	w.logger.Info("worker started",
		slog.Int("handlers", w.handlers),
		slog.Int("schedules", w.schedules))
	<-ctx.Done()
	w.logger.Info("worker stopping")
	return ctx.Err()
}

func (w *Worker) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		w.logger.Debug("task received", slog.String("type", t.Type()), slog.String("task_id", id))
		return next.ProcessTask(ctx, t)
	})
}

func (w *Worker) reportFailure(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	attrs := []any{
		slog.String("type", t.Type()),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err),
	}
	if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
		w.logger.Error("task archived", attrs...)
		return
	}
	w.logger.Warn("task failed, will retry", attrs...)
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{ l *slog.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
