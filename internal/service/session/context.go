package session

import (
	"chess-duel-be/internal/metrics"
	"chess-duel-be/internal/service/engine"

	"go.uber.org/zap"
)

// SessionContext 是一局对局的全部可变状态，只由协调器协程持有
type SessionContext struct {
	Engine   engine.Engine
	Registry *RoleRegistry
	Conns    map[string]*Conn

	Metrics *metrics.Metrics
}

func NewSessionContext(eng engine.Engine, m *metrics.Metrics) *SessionContext {
	return &SessionContext{
		Engine:   eng,
		Registry: NewRoleRegistry(),
		Conns:    make(map[string]*Conn),
		Metrics:  m,
	}
}

// BroadcastResp 发送给所有存活连接，包括发起者本身。
// 缓冲已满的连接会被驱逐，避免其状态与权威状态产生偏差。
func (sc *SessionContext) BroadcastResp(resp ResponseWrapper) {
	for _, c := range sc.Conns {
		select {
		case c.RespCh <- resp:
			zap.L().Debug(
				"成功发送广播响应",
				zap.String("conn_id", c.ID),
				zap.String("resp_type", resp.RespType),
			)
		default:
			zap.L().Warn(
				"发送广播响应失败：连接响应通道已满，驱逐连接",
				zap.String("conn_id", c.ID),
			)
			sc.evict(c)
		}
	}
}

func (sc *SessionContext) UnicastResp(connID string, resp ResponseWrapper) {
	c, ok := sc.Conns[connID]
	if !ok {
		zap.L().Warn(
			"无法找到连接进行单播响应",
			zap.String("conn_id", connID),
		)
		return
	}

	select {
	case c.RespCh <- resp:
		zap.L().Debug(
			"发送单播响应成功",
			zap.String("conn_id", connID),
			zap.String("resp_type", resp.RespType),
		)
	default:
		zap.L().Warn(
			"发送单播响应失败：连接响应通道已满，驱逐连接",
			zap.String("conn_id", connID),
		)
		sc.evict(c)
	}
}

// removeConn 释放席位并关闭响应通道，写协程随后会关闭底层连接
func (sc *SessionContext) removeConn(c *Conn) {
	sc.Registry.ReleaseRole(c.ID)
	delete(sc.Conns, c.ID)
	close(c.RespCh)

	sc.Metrics.ConnectionClosed()
}

func (sc *SessionContext) evict(c *Conn) {
	sc.removeConn(c)
	sc.Metrics.Evicted()
}

func (sc *SessionContext) closeAll() {
	for _, c := range sc.Conns {
		sc.removeConn(c)
	}
}
