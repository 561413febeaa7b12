// metrics — счётчики Prometheus клиента сессии.
//
// Все методы безопасны для nil-получателя: сессия без метрик просто ничего
// не считает.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "session_client"

// Исходы обновления access-токена.
const (
	RefreshOK       = "ok"
	RefreshNoToken  = "no_refresh_token"
	RefreshRejected = "rejected"
	RefreshError    = "error"
)

type Metrics struct {
	requests     *prometheus.CounterVec
	refresh      *prometheus.CounterVec
	terminations prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg (nil — prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Authorized requests by response status class.",
		}, []string{"code"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		terminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Sessions terminated (explicitly or after a failed refresh).",
		}),
	}

	reg.MustRegister(m.requests, m.refresh, m.terminations)
	return m
}

// ObserveRequest учитывает ответ авторизованного запроса; status 0 — сетевая ошибка.
func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(StatusClass(status)).Inc()
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTermination() {
	if m == nil {
		return
	}
	m.terminations.Inc()
}

// StatusClass сворачивает HTTP-статус в метку: "2xx", "4xx", ..., 401 отдельно.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 401:
		return "401"
	case status >= 100 && status < 600:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "other"
	}
}
