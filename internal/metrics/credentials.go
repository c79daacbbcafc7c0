package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del ciclo de vida de credenciales. Viven en un paquete aparte para
// que store y credentials puedan importarlas sin ciclos.

var (
	CodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codes_issued_total",
		Help: "Authorization codes emitidos",
	})

	CodeReuse = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "code_reuse_total",
		Help: "Intentos de reusar un authorization code ya consumido",
	})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Tokens registrados como emitidos, por tipo",
	}, []string{"kind"})

	TokensRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_revoked_total",
		Help: "Tokens revocados, por tipo (access | refresh)",
	}, []string{"kind"})

	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_op_duration_seconds",
		Help:    "Latencia de operaciones del storage port",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"backend", "table", "op"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{CodesIssued, CodeReuse, TokensIssued, TokensRevoked, StoreOpDuration}
}

// Register registra las métricas en reg (o el default si es nil).
// Es idempotente: un AlreadyRegisteredError no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// ObserveStoreOp tiene la firma de store.OpObserver.
func ObserveStoreOp(backend, table, op string, d time.Duration) {
	StoreOpDuration.WithLabelValues(backend, table, op).Observe(d.Seconds())
}
