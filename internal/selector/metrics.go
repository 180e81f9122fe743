package selector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var selections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tripgraph_selections_total",
	Help: "Trip selections by the tier that produced them",
}, []string{"tier"})
