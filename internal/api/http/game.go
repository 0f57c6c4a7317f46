package http

import (
	"errors"

	"chess-duel-be/internal/service/session"
	"chess-duel-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

func GetGameState(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.Session.State(ctx.Request().Context())
		if err != nil {
			zap.L().Warn("查询对局状态失败", zap.Error(err))

			status := iris.StatusInternalServerError
			if errors.Is(err, session.ErrStopped) {
				status = iris.StatusServiceUnavailable
			}

			ctx.StatusCode(status)
			ctx.JSON(iris.Map{
				"error": "对局状态暂不可用",
			})
			return
		}

		ctx.JSON(resp)
	}
}
