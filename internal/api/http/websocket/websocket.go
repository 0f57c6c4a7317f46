package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 单条写入允许的最长时间
	writeWait = 10 * time.Second
	// 客户端单条消息的最大字节数
	maxMessageSize = 4096
	// 等待协调器登记或释放连接的最长时间
	lifecycleTimeout = 3 * time.Second
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// 未配置白名单时允许所有来源
			if len(allowed) == 0 {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			_, ok := allowed[origin]
			return ok
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func heartbeatHandler(conn *websocket.Conn, timeout time.Duration) func(string) error {
	return func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	}
}
