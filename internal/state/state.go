package state

import (
	"chess-duel-be/internal/config"
	"chess-duel-be/internal/service/session"

	"github.com/prometheus/client_golang/prometheus"
)

type AppState struct {
	Cfg     *config.AppConfig
	Session *session.Coordinator
	// 为 nil 时不暴露 /metrics
	Gatherer prometheus.Gatherer
}

func NewAppState(
	cfg *config.AppConfig,
	sess *session.Coordinator,
	gatherer prometheus.Gatherer,
) *AppState {
	return &AppState{
		Cfg:      cfg,
		Session:  sess,
		Gatherer: gatherer,
	}
}
