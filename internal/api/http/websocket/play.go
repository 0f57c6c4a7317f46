package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chess-duel-be/internal/service/session"
	"chess-duel-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// Play 把一条 WebSocket 连接接入对局：
// 连接时登记并获得身份，读循环转发落子请求，断开时同步释放席位
func Play(appState *state.AppState) iris.Handler {
	upgrader := newUpgrader(appState.Cfg.AllowedOrigins)
	heartbeatInterval := appState.Cfg.HeartbeatInterval
	heartbeatTimeout := appState.Cfg.HeartbeatTimeout
	coord := appState.Session

	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			// Upgrade 失败时已经写回了 HTTP 错误
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()

		clientIP := ctx.RemoteAddr()
		connID := session.GenID()

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		conn.SetPongHandler(heartbeatHandler(conn, heartbeatTimeout))

		joinCtx, cancelJoin := context.WithTimeout(context.Background(), lifecycleTimeout)
		stream, err := coord.Connect(joinCtx, connID)
		cancelJoin()
		if err != nil {
			zap.L().Error(
				"加入对局失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session unavailable"),
				time.Now().Add(writeWait),
			)
			return
		}

		zap.L().Info(
			"客户端接入对局",
			zap.String("client_ip", clientIP),
			zap.String("conn_id", connID),
			// 上游认证后的展示名，仅用于日志
			zap.String("name", ctx.URLParam("name")),
		)

		// 传输层错误不经过协调器，由读协程直接交给写协程
		localCh := make(chan session.ResponseWrapper, 8)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		writerExitedCh := make(chan struct{})

		go func() {
			defer close(writerExitedCh)
			// 写协程退出后关闭连接，读循环随之结束
			defer conn.Close()

			writeLoop(conn, connID, stream, localCh, writeDoneCh, coord.Done(), heartbeatInterval)
		}()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("conn_id", connID),
						zap.Error(err),
					)
				}

				break
			}

			var wrapper session.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Warn(
					"解析消息失败",
					zap.String("conn_id", connID),
					zap.Error(err),
				)

				sendLocal(localCh, connID, session.WrapErrResponse("invalid request format"))

				continue
			}

			if err := coord.Submit(connID, wrapper); err != nil {
				if errors.Is(err, session.ErrStopped) {
					break
				}

				zap.L().Warn(
					"发送请求到对局协调器失败",
					zap.String("conn_id", connID),
					zap.Error(err),
				)

				sendLocal(localCh, connID, session.WrapErrResponse("session busy, retry"))
			}
		}

		// 读循环退出，表示客户端断开连接，同步释放席位
		leaveCtx, cancelLeave := context.WithTimeout(context.Background(), lifecycleTimeout)
		if err := coord.Disconnect(leaveCtx, connID, stream); err != nil {
			zap.L().Warn(
				"释放连接失败",
				zap.String("conn_id", connID),
				zap.Error(err),
			)
		}
		cancelLeave()

		close(writeDoneCh)
		<-writerExitedCh

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("conn_id", connID),
		)
	}
}

func writeLoop(
	conn *websocket.Conn,
	connID string,
	stream <-chan session.ResponseWrapper,
	localCh <-chan session.ResponseWrapper,
	writeDoneCh <-chan struct{},
	sessionDoneCh <-chan struct{},
	heartbeatInterval time.Duration,
) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-writeDoneCh:
			return

		case <-sessionDoneCh:
			writeClose(conn, websocket.CloseGoingAway, "session closed")
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug(
					"发送心跳失败",
					zap.String("conn_id", connID),
					zap.Error(err),
				)
				return
			}

		case resp, ok := <-stream:
			// 协调器关闭了响应流：正常断开或因积压被驱逐
			if !ok {
				writeClose(conn, websocket.CloseNormalClosure, "")
				return
			}

			if !writeResp(conn, connID, resp) {
				return
			}

		case resp := <-localCh:
			if !writeResp(conn, connID, resp) {
				return
			}
		}
	}
}

func writeResp(conn *websocket.Conn, connID string, resp session.ResponseWrapper) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := conn.WriteJSON(resp); err != nil {
		zap.L().Warn(
			"发送消息失败",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		return false
	}

	zap.L().Debug(
		"发送消息",
		zap.String("conn_id", connID),
		zap.String("resp_type", resp.RespType),
	)

	return true
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
}

func sendLocal(localCh chan<- session.ResponseWrapper, connID string, resp session.ResponseWrapper) {
	select {
	case localCh <- resp:
	default:
		zap.L().Warn(
			"发送错误响应失败：本地通道已满",
			zap.String("conn_id", connID),
		)
	}
}
