package observability

import "github.com/prometheus/client_golang/prometheus"

// Lifecycle counts business events. A nil *Lifecycle is valid and records
// nothing, so services can run without a registry in tests.
type Lifecycle struct {
	orders     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	payments   *prometheus.CounterVec
	stock      *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// NewLifecycle registers the lifecycle collectors.
func NewLifecycle(registerer prometheus.Registerer) *Lifecycle {
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrodistri_orders_total",
		Help: "Order events partitioned by event and payment method.",
	}, []string{"event", "payment_method"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrodistri_delivery_transitions_total",
		Help: "Delivery state transitions partitioned by target status.",
	}, []string{"status"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrodistri_payments_total",
		Help: "Recorded payments partitioned by method and resulting payment status.",
	}, []string{"method", "payment_status"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrodistri_stock_movements_total",
		Help: "Stock ledger movements partitioned by log type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrodistri_rejections_total",
		Help: "Operations rejected before any write, by operation and error kind.",
	}, []string{"operation", "kind"})
	registerer.MustRegister(orders, deliveries, payments, stock, rejections)
	return &Lifecycle{orders: orders, deliveries: deliveries, payments: payments, stock: stock, rejections: rejections}
}

// OrderEvent counts an order creation or cancellation.
func (l *Lifecycle) OrderEvent(event, paymentMethod string) {
	if l == nil {
		return
	}
	l.orders.WithLabelValues(event, paymentMethod).Inc()
}

// DeliveryTransition counts a delivery reaching status.
func (l *Lifecycle) DeliveryTransition(status string) {
	if l == nil {
		return
	}
	l.deliveries.WithLabelValues(status).Inc()
}

// Payment counts a recorded payment.
func (l *Lifecycle) Payment(method, paymentStatus string) {
	if l == nil {
		return
	}
	l.payments.WithLabelValues(method, paymentStatus).Inc()
}

// StockMovement counts n stock log rows of the given type.
func (l *Lifecycle) StockMovement(logType string, n int) {
	if l == nil || n <= 0 {
		return
	}
	l.stock.WithLabelValues(logType).Add(float64(n))
}

// Rejected counts an operation refused with a domain error kind.
func (l *Lifecycle) Rejected(operation, kind string) {
	if l == nil {
		return
	}
	l.rejections.WithLabelValues(operation, kind).Inc()
}
