package session

import (
	"errors"

	"chess-duel-be/internal/metrics"
	"chess-duel-be/internal/service/dto"
	"chess-duel-be/internal/service/engine"

	"go.uber.org/zap"
)

// 返回给客户端的故障描述，不暴露内部细节
const (
	FAULT_MALFORMED_MOVE = "malformed move"
	FAULT_ENGINE         = "move could not be evaluated"
)

func onConnect(ctx *SessionContext, req *ConnectRequest) {
	if _, exists := ctx.Conns[req.ConnID]; exists {
		// 连接 ID 由服务端生成，重复说明调用方有误；旧连接保持不变
		zap.L().Error(
			"重复的连接 ID，拒绝登记",
			zap.String("conn_id", req.ConnID),
		)
		close(req.RespCh)
		return
	}

	role := ctx.Registry.AssignRole(req.ConnID)

	ctx.Conns[req.ConnID] = &Conn{
		ID:     req.ConnID,
		Role:   role,
		RespCh: req.RespCh,
	}

	ctx.Metrics.ConnectionOpened(string(role))

	zap.L().Info(
		"连接加入对局",
		zap.String("conn_id", req.ConnID),
		zap.String("role", string(role)),
	)

	ctx.UnicastResp(
		req.ConnID,
		WrapResponse(RESP_ROLE_ANNOUNCEMENT, RoleAnnouncementResponse{Role: role}),
	)
}

// onDisconnect 只释放席位，不广播空位，也不重置对局
func onDisconnect(ctx *SessionContext, req *DisconnectRequest) {
	defer close(req.Ack)

	c, exists := ctx.Conns[req.ConnID]
	if !exists {
		// 已被驱逐或从未登记
		zap.L().Debug(
			"断开的连接不存在",
			zap.String("conn_id", req.ConnID),
		)
		return
	}

	if req.Stream != nil && (<-chan ResponseWrapper)(c.RespCh) != req.Stream {
		zap.L().Warn(
			"断开请求与登记的响应通道不一致，忽略",
			zap.String("conn_id", req.ConnID),
		)
		return
	}

	ctx.removeConn(c)

	zap.L().Info(
		"连接离开对局",
		zap.String("conn_id", req.ConnID),
		zap.String("role", string(c.Role)),
	)
}

func onSubmitMove(ctx *SessionContext, req RequestWrapper) {
	// 非执子方没有落子资格，静默丢弃
	role, ok := ctx.Registry.RoleOf(req.ConnID)
	if !ok {
		zap.L().Debug(
			"丢弃非执子方的落子",
			zap.String("conn_id", req.ConnID),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeDiscarded)
		return
	}

	// 不是该方的回合，静默丢弃
	side, _ := role.Side()
	if turn := ctx.Engine.CurrentTurn(); turn != side {
		zap.L().Debug(
			"丢弃非本方回合的落子",
			zap.String("conn_id", req.ConnID),
			zap.String("role", string(role)),
			zap.String("turn", string(roleForSide(turn))),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeDiscarded)
		return
	}

	move, err := UnwrapCandidateMove(req)
	if err != nil {
		zap.L().Warn(
			"落子请求格式错误",
			zap.String("conn_id", req.ConnID),
			zap.Error(err),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeFault)
		ctx.UnicastResp(req.ConnID, WrapResponse(RESP_MOVE_FAULT, MoveFaultResponse{Reason: FAULT_MALFORMED_MOVE}))
		return
	}

	snapshot, err := ctx.Engine.ApplyIfLegal(engine.Move{
		From:      move.From,
		To:        move.To,
		Promotion: move.Promotion,
	})

	switch {
	case err == nil:
		zap.L().Info(
			"落子被接受",
			zap.String("conn_id", req.ConnID),
			zap.String("role", string(role)),
			zap.Any("move", move),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeAccepted)

		// 落子和局面是两个独立的广播事件
		ctx.BroadcastResp(WrapResponse(RESP_MOVE_ACCEPTED, move))
		ctx.BroadcastResp(WrapResponse(RESP_STATE_SNAPSHOT, StateSnapshotResponse{FEN: snapshot}))

	case errors.Is(err, engine.ErrIllegalMove):
		zap.L().Debug(
			"非法落子",
			zap.String("conn_id", req.ConnID),
			zap.Any("move", move),
			zap.Error(err),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeRejected)
		ctx.UnicastResp(req.ConnID, WrapResponse(RESP_MOVE_REJECTED, move))

	default:
		zap.L().Error(
			"规则引擎处理落子失败",
			zap.String("conn_id", req.ConnID),
			zap.Any("move", move),
			zap.Error(err),
		)
		ctx.Metrics.MoveOutcome(metrics.OutcomeFault)
		ctx.UnicastResp(req.ConnID, WrapResponse(RESP_MOVE_FAULT, MoveFaultResponse{Reason: FAULT_ENGINE}))
	}
}

func buildStateView(ctx *SessionContext) dto.GameStateResponse {
	result, method := ctx.Engine.Outcome()

	return dto.GameStateResponse{
		FEN:             ctx.Engine.Snapshot(),
		Turn:            string(roleForSide(ctx.Engine.CurrentTurn())),
		Outcome:         result,
		Method:          method,
		FirstSeatTaken:  ctx.Registry.FirstTaken(),
		SecondSeatTaken: ctx.Registry.SecondTaken(),
		Connections:     len(ctx.Conns),
	}
}
