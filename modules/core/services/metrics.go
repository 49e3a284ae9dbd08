package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type authMetrics struct {
	signIns    *prometheus.CounterVec
	challenges *prometheus.CounterVec
}

var authMetricsSingleton = sync.OnceValue(func() *authMetrics {
	return &authMetrics{
		signIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sign_ins_total",
			Help:      "Password sign-in attempts by result.",
		}, []string{"result"}),
		challenges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "mfa_challenges_total",
			Help:      "Second factor verifications by method and result.",
		}, []string{"method", "result"}),
	}
})

func recordSignIn(err error) {
	authMetricsSingleton().signIns.WithLabelValues(resultLabel(err)).Inc()
}

func recordChallenge(stage MfaStage, err error) {
	authMetricsSingleton().challenges.WithLabelValues(string(stage), resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(serrors.CodeOf(err))
}
