package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service holds the vault's prometheus collectors. A nil *Service is valid
// and drops every observation, which keeps instrumentation out of the way
// in unit tests.
type Service struct {
	messagesDispatched *prometheus.CounterVec
	messagesProcessed  *prometheus.CounterVec
	messagesRejected   *prometheus.CounterVec
	messagesQueued     prometheus.Counter
	messagesRetried    prometheus.Counter

	transfersInitiated prometheus.Counter
	transfersSettled   prometheus.Counter
	transfersFailed    prometheus.Counter

	rebalancesExecuted prometheus.Counter
	rebalancesVetoed   *prometheus.CounterVec

	totalAssets    prometheus.Gauge
	idleBalance    prometheus.Gauge
	deployedBalance prometheus.Gauge
}

// New registers the vault collectors on the given registerer.
func New(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)

	return &Service{
		messagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "messages_dispatched_total",
			Help:      "Outbound cross-domain messages handed to the relay.",
		}, []string{"type"}),
		messagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "messages_processed_total",
			Help:      "Inbound messages committed, by handler outcome.",
		}, []string{"outcome"}),
		messagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "messages_rejected_total",
			Help:      "Inbound messages rejected before commit, by reason.",
		}, []string{"reason"}),
		messagesQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "messages_queued_total",
			Help:      "Outbound messages queued after a delivery failure.",
		}),
		messagesRetried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "messages_retried_total",
			Help:      "Queued messages successfully delivered on retry.",
		}),
		transfersInitiated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "transfers_initiated_total",
			Help:      "Bridge transfers initiated.",
		}),
		transfersSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "transfers_settled_total",
			Help:      "Bridge transfers confirmed by the destination.",
		}),
		transfersFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "transfers_failed_total",
			Help:      "Bridge transfers marked permanently failed.",
		}),
		rebalancesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "rebalances_executed_total",
			Help:      "Rebalance decisions executed.",
		}),
		rebalancesVetoed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autousd",
			Name:      "rebalances_vetoed_total",
			Help:      "Rebalance decisions vetoed, by reason code.",
		}, []string{"reason"}),
		totalAssets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "autousd",
			Name:      "total_assets_units",
			Help:      "Total assets (idle + deployed) in base units.",
		}),
		idleBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "autousd",
			Name:      "idle_balance_units",
			Help:      "Idle balance in base units.",
		}),
		deployedBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "autousd",
			Name:      "deployed_balance_units",
			Help:      "Deployed balance in base units.",
		}),
	}
}

func (s *Service) MessageDispatched(messageType string) {
	if s == nil {
		return
	}
	s.messagesDispatched.WithLabelValues(messageType).Inc()
}

func (s *Service) MessageProcessed(success bool) {
	if s == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	s.messagesProcessed.WithLabelValues(outcome).Inc()
}

func (s *Service) MessageRejected(reason string) {
	if s == nil {
		return
	}
	s.messagesRejected.WithLabelValues(reason).Inc()
}

func (s *Service) MessageQueued() {
	if s == nil {
		return
	}
	s.messagesQueued.Inc()
}

func (s *Service) MessageRetried() {
	if s == nil {
		return
	}
	s.messagesRetried.Inc()
}

func (s *Service) TransferInitiated() {
	if s == nil {
		return
	}
	s.transfersInitiated.Inc()
}

func (s *Service) TransferSettled() {
	if s == nil {
		return
	}
	s.transfersSettled.Inc()
}

func (s *Service) TransferFailed() {
	if s == nil {
		return
	}
	s.transfersFailed.Inc()
}

func (s *Service) RebalanceExecuted() {
	if s == nil {
		return
	}
	s.rebalancesExecuted.Inc()
}

func (s *Service) RebalanceVetoed(reason string) {
	if s == nil {
		return
	}
	s.rebalancesVetoed.WithLabelValues(reason).Inc()
}

// SetBalances publishes the ledger gauges. Amounts beyond float64 range
// saturate, which is acceptable for monitoring.
func (s *Service) SetBalances(totalAssets, idle, deployed float64) {
	if s == nil {
		return
	}
	s.totalAssets.Set(totalAssets)
	s.idleBalance.Set(idle)
	s.deployedBalance.Set(deployed)
}
