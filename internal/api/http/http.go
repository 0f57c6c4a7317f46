package http

import (
	"chess-duel-be/internal/api/http/websocket"
	"chess-duel-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp 组装路由，不启动监听
func NewApp(appState *state.AppState) *iris.Application {
	app := iris.Default()
	app.Logger().SetLevel(appState.Cfg.LogLevel)

	app.Get("/healthz", func(ctx iris.Context) {
		ctx.WriteString("ok")
	})

	if appState.Gatherer != nil {
		app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(appState.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Party("/api/v1")

	api.Get("/game/state", GetGameState(appState))

	api.Get("/ws/play", websocket.Play(appState))

	return app
}

func RunServer(appState *state.AppState) error {
	app := NewApp(appState)

	// 收到中断信号时先停止协调器，关闭所有连接的响应流
	iris.RegisterOnInterrupt(appState.Session.Stop)

	return app.Listen(
		appState.Cfg.Addr(),
		iris.WithoutServerError(iris.ErrServerClosed),
	)
}
