package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// DefaultRange is the window used when a report is requested without dates.
const DefaultRange = 30 * 24 * time.Hour

// ReportFunc produces one report kind.
type ReportFunc func(ctx context.Context, p Params) (any, error)

// Service dispatches report requests by kind.
type Service struct {
	source   Source
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group
	handlers map[Kind]ReportFunc
}

// NewService wires a Source with a Cache.
func NewService(source Source, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{source: source, cache: cache, logger: logger, now: time.Now}
	s.handlers = map[Kind]ReportFunc{
		KindSales:      cached(s, KindSales, s.sales),
		KindDebts:      cached(s, KindDebts, s.debts),
		KindStock:      cached(s, KindStock, s.stock),
		KindDeliveries: cached(s, KindDeliveries, s.deliveries),
		KindDashboard:  func(ctx context.Context, p Params) (any, error) { return s.dashboard(ctx, p) },
	}
	return s
}

// Kinds lists the available reports.
func (s *Service) Kinds() []Kind {
	return []Kind{KindSales, KindDebts, KindStock, KindDeliveries, KindDashboard}
}

// Normalize fills a missing range with the last DefaultRange days and
// truncates both ends to dates.
func (s *Service) Normalize(p Params) (Params, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	if p.To.IsZero() {
		p.To = today
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-DefaultRange)
	}
	p.From = p.From.UTC().Truncate(24 * time.Hour)
	p.To = p.To.UTC().Truncate(24 * time.Hour)
	if p.From.After(p.To) {
		return Params{}, shared.NewValidationError("from", "must not be after to")
	}
	return p, nil
}

// Run produces the report of the given kind.
func (s *Service) Run(ctx context.Context, kind Kind, p Params) (any, error) {
	h, ok := s.handlers[kind]
	if !ok {
		return nil, shared.NewValidationError("kind", fmt.Sprintf("unknown report %q", kind))
	}
	p, err := s.Normalize(p)
	if err != nil {
		return nil, err
	}
	return h(ctx, p)
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// cached serves load through the Redis cache. Concurrent misses on the same
// key share one load. Cache failures are logged and the report is computed
// from the source.
func cached[T any](s *Service, kind Kind, load func(context.Context, Params) (T, error)) ReportFunc {
	return func(ctx context.Context, p Params) (any, error) {
		log := s.logger.With(slog.String("kind", string(kind)))
		key, err := s.cache.Key(ctx, kind, p.token())
		if err != nil {
			log.Warn("report cache unavailable", slog.Any("error", err))
			return load(ctx, p)
		}
		v, err, _ := s.group.Do(string(kind)+"|"+p.token(), func() (any, error) {
			var out T
			hit, err := s.cache.Get(ctx, key, &out)
			if err != nil {
				log.Warn("report cache read failed", slog.Any("error", err))
			}
			if hit {
				return out, nil
			}
			out, err = load(ctx, p)
			if err != nil {
				return out, err
			}
			if err := s.cache.Put(ctx, key, out); err != nil {
				log.Warn("report cache write failed", slog.Any("error", err))
			}
			return out, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(T), nil
	}
}

// ============================================================================
// REPORTS
// ============================================================================

func (s *Service) sales(ctx context.Context, p Params) (SalesReport, error) {
	rows, err := s.source.SalesByMethod(ctx, p.From, p.To)
	if err != nil {
		return SalesReport{}, err
	}
	report := SalesReport{Params: p, Rows: make([]SalesRow, 0, len(rows)), GrandTotal: decimal.Zero}
	for _, row := range rows {
		row.Formatted = FormatRupiah(row.Total)
		report.Orders += row.Orders
		report.GrandTotal = report.GrandTotal.Add(row.Total)
		report.Rows = append(report.Rows, row)
	}
	report.Formatted = FormatRupiah(report.GrandTotal)
	return report, nil
}

func (s *Service) debts(ctx context.Context, _ Params) (DebtReport, error) {
	rows, err := s.source.OutstandingDebts(ctx)
	if err != nil {
		return DebtReport{}, err
	}
	report := DebtReport{Stores: make([]DebtRow, 0, len(rows)), Total: decimal.Zero}
	for _, row := range rows {
		row.Formatted = FormatRupiah(row.Debt)
		report.Total = report.Total.Add(row.Debt)
		report.Stores = append(report.Stores, row)
	}
	report.Formatted = FormatRupiah(report.Total)
	return report, nil
}

func (s *Service) stock(ctx context.Context, _ Params) (StockReport, error) {
	rows, err := s.source.StockLevels(ctx)
	if err != nil {
		return StockReport{}, err
	}
	report := StockReport{Products: make([]StockRow, 0, len(rows))}
	for _, row := range rows {
		row.LowStock = row.Stock < row.MinStock
		if row.LowStock {
			report.LowStockCount++
		}
		report.TotalSacks += row.Stock
		report.Products = append(report.Products, row)
	}
	return report, nil
}

func (s *Service) deliveries(ctx context.Context, p Params) (DeliveryReport, error) {
	rows, err := s.source.DeliveriesByStatus(ctx, p.From, p.To)
	if err != nil {
		return DeliveryReport{}, err
	}
	if rows == nil {
		rows = []DeliveryRow{}
	}
	return DeliveryReport{Params: p, Rows: rows}, nil
}

func (s *Service) dashboard(ctx context.Context, p Params) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.handlers[KindSales](ctx, p)
		if err == nil {
			d.Sales = v.(SalesReport)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.handlers[KindDebts](ctx, p)
		if err == nil {
			d.Debts = v.(DebtReport)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.handlers[KindStock](ctx, p)
		if err == nil {
			d.Stock = v.(StockReport)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.handlers[KindDeliveries](ctx, p)
		if err == nil {
			d.Deliveries = v.(DeliveryReport)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
