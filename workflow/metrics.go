package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutboxPublishTotal counts publish outcomes: sent, failed (will retry) or dead.
var OutboxPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inventory",
	Name:      "outbox_publish_total",
	Help:      "Outbox records handled by the dispatcher, by result.",
}, []string{"result"})
