package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/agrodistri/agrodistri/internal/inventory"
	jobmetrics "github.com/agrodistri/agrodistri/internal/jobs"
)

// LowStockSource lists active products under their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.Product, error)
}

// LowStockScanJob reports products that need restocking.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle runs one scan.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	logger := jobLogger(j.Logger, TaskLowStockScan)
	return j.Metrics.Run(TaskLowStockScan, func() error {
		products, err := j.Source.LowStock(ctx)
		if err != nil {
			logger.Error("scan failed", slog.Any("error", err))
			return err
		}
		for _, p := range products {
			logger.Warn("product below minimum stock",
				slog.Int64("product_id", p.ID),
				slog.String("name", p.Name),
				slog.Int("stock", p.Stock),
				slog.Int("min_stock", p.MinStock),
				slog.Int("shortfall", p.MinStock-p.Stock),
			)
		}
		j.Metrics.SetLowStock(len(products))
		logger.Info("completed low stock scan", slog.Int("products", len(products)))
		return nil
	})
}
