// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "witnessvm"

type metrics struct {
	blocksApplied        prometheus.Counter
	blocksFailed         prometheus.Counter
	transactionsAccepted prometheus.Counter
	transactionsRejected prometheus.Counter
	missedSlots          prometheus.Counter
	forkSwitches         prometheus.Counter
	headBlock            prometheus.Gauge
	irreversibleBlock    prometheus.Gauge
	pendingTransactions  prometheus.Gauge
	blockApplyDuration   prometheus.Histogram
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_applied",
			Help:      "Number of blocks applied to the head state",
		}),
		blocksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_failed",
			Help:      "Number of blocks rejected during application",
		}),
		transactionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_accepted",
			Help:      "Number of transactions accepted into the pending state",
		}),
		transactionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_rejected",
			Help:      "Number of transactions rejected from the pending state",
		}),
		missedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "missed_slots",
			Help:      "Number of production slots without a block",
		}),
		forkSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fork_switches",
			Help:      "Number of switches to a longer fork",
		}),
		headBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "head_block",
			Help:      "Number of the head block",
		}),
		irreversibleBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "irreversible_block",
			Help:      "Number of the last irreversible block",
		}),
		pendingTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_transactions",
			Help:      "Number of transactions in the pending state",
		}),
		blockApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "block_apply_duration_seconds",
			Help:      "Time spent applying one block",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.blocksApplied),
		registerer.Register(m.blocksFailed),
		registerer.Register(m.transactionsAccepted),
		registerer.Register(m.transactionsRejected),
		registerer.Register(m.missedSlots),
		registerer.Register(m.forkSwitches),
		registerer.Register(m.headBlock),
		registerer.Register(m.irreversibleBlock),
		registerer.Register(m.pendingTransactions),
		registerer.Register(m.blockApplyDuration),
	)
	return m, errs.Err
}
