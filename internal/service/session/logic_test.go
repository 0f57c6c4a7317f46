package session

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"chess-duel-be/internal/metrics"
	"chess-duel-be/internal/service/engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()

	eng, err := engine.NewChessEngine("")
	require.NoError(t, err)

	return NewCoordinator(eng, opts...)
}

// connect 直接在当前协程处理连接请求，测试无需启动事件循环
func connect(c *Coordinator, id string) chan ResponseWrapper {
	ch := make(chan ResponseWrapper, c.clientBuffer)

	c.handle(RequestWrapper{
		ReqType:    REQ_CONNECT,
		ConnID:     id,
		NativeData: &ConnectRequest{ConnID: id, RespCh: ch},
	})

	return ch
}

func disconnect(c *Coordinator, id string, ch chan ResponseWrapper) {
	c.handle(RequestWrapper{
		ReqType:    REQ_DISCONNECT,
		ConnID:     id,
		NativeData: &DisconnectRequest{ConnID: id, Stream: ch, Ack: make(chan struct{})},
	})
}

func submit(t *testing.T, c *Coordinator, id string, move CandidateMove) {
	t.Helper()

	c.handle(RequestWrapper{
		ReqType: REQ_SUBMIT_MOVE,
		Data:    mustMarshal(t, move),
		ConnID:  id,
	})
}

// drain 读出通道中已有的全部消息，并报告通道是否已关闭
func drain(ch <-chan ResponseWrapper) ([]ResponseWrapper, bool) {
	var out []ResponseWrapper

	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return out, true
			}
			out = append(out, resp)
		default:
			return out, false
		}
	}
}

func respTypes(resps []ResponseWrapper) []string {
	types := make([]string, 0, len(resps))
	for _, r := range resps {
		types = append(types, r.RespType)
	}

	return types
}

func announcedRole(t *testing.T, ch <-chan ResponseWrapper) Role {
	t.Helper()

	resps, _ := drain(ch)
	require.Len(t, resps, 1)
	require.Equal(t, RESP_ROLE_ANNOUNCEMENT, resps[0].RespType)

	data, ok := resps[0].Data.(RoleAnnouncementResponse)
	require.True(t, ok)

	return data.Role
}

func TestOnConnect_RolesByArrivalOrder(t *testing.T) {
	c := newTestCoordinator(t)

	want := []Role{ROLE_FIRST_PLAYER, ROLE_SECOND_PLAYER, ROLE_OBSERVER, ROLE_OBSERVER, ROLE_OBSERVER}
	for i, role := range want {
		ch := connect(c, string(rune('a'+i)))
		assert.Equal(t, role, announcedRole(t, ch), "connection #%d", i)
	}
}

func TestSubmitMove_FullScenario(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	chC := connect(c, "C")

	require.Equal(t, ROLE_FIRST_PLAYER, announcedRole(t, chA))
	require.Equal(t, ROLE_SECOND_PLAYER, announcedRole(t, chB))
	require.Equal(t, ROLE_OBSERVER, announcedRole(t, chC))

	// A 走出合法的开局
	opening := CandidateMove{From: "e2", To: "e4"}
	submit(t, c, "A", opening)

	for name, ch := range map[string]chan ResponseWrapper{"A": chA, "B": chB, "C": chC} {
		resps, _ := drain(ch)
		require.Equal(t, []string{RESP_MOVE_ACCEPTED, RESP_STATE_SNAPSHOT}, respTypes(resps), "conn %s", name)
		assert.Equal(t, opening, resps[0].Data)

		snap, ok := resps[1].Data.(StateSnapshotResponse)
		require.True(t, ok)
		assert.Equal(t, c.ctx.Engine.Snapshot(), snap.FEN)
	}
	assert.Equal(t, engine.SideSecond, c.ctx.Engine.CurrentTurn())

	// A 在对方回合落子：任何人都收不到消息
	submit(t, c, "A", CandidateMove{From: "d2", To: "d4"})
	for _, ch := range []chan ResponseWrapper{chA, chB, chC} {
		resps, _ := drain(ch)
		assert.Empty(t, resps)
	}

	// B 走出合法应对
	reply := CandidateMove{From: "e7", To: "e5"}
	submit(t, c, "B", reply)
	for _, ch := range []chan ResponseWrapper{chA, chB, chC} {
		resps, _ := drain(ch)
		require.Equal(t, []string{RESP_MOVE_ACCEPTED, RESP_STATE_SNAPSHOT}, respTypes(resps))
		assert.Equal(t, reply, resps[0].Data)
	}
	assert.Equal(t, engine.SideFirst, c.ctx.Engine.CurrentTurn())

	// A 断开，先手席位空出，不通知其他人，对局不重置
	fenBefore := c.ctx.Engine.Snapshot()
	disconnect(c, "A", chA)

	_, closed := drain(chA)
	assert.True(t, closed)
	assert.False(t, c.ctx.Registry.FirstTaken())
	for _, ch := range []chan ResponseWrapper{chB, chC} {
		resps, _ := drain(ch)
		assert.Empty(t, resps)
	}
	assert.Equal(t, fenBefore, c.ctx.Engine.Snapshot())

	// D 接替先手
	chD := connect(c, "D")
	assert.Equal(t, ROLE_FIRST_PLAYER, announcedRole(t, chD))
}

func TestSubmitMove_ObserverIsSilent(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	chC := connect(c, "C")
	drain(chA)
	drain(chB)
	drain(chC)

	before := c.ctx.Engine.Snapshot()

	for _, mv := range []CandidateMove{
		{From: "e2", To: "e4"}, // 合法
		{From: "e2", To: "e5"}, // 非法
		{From: "zz", To: "e4"}, // 格式错误
	} {
		submit(t, c, "C", mv)
	}

	// 未登记的连接同样被忽略
	submit(t, c, "ghost", CandidateMove{From: "e2", To: "e4"})

	for _, ch := range []chan ResponseWrapper{chA, chB, chC} {
		resps, _ := drain(ch)
		assert.Empty(t, resps)
	}
	assert.Equal(t, before, c.ctx.Engine.Snapshot())
}

func TestSubmitMove_OutOfTurnIsSilent(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	drain(chA)
	drain(chB)

	// 先手回合，后手提交
	submit(t, c, "B", CandidateMove{From: "e7", To: "e5"})

	for _, ch := range []chan ResponseWrapper{chA, chB} {
		resps, _ := drain(ch)
		assert.Empty(t, resps)
	}
	assert.Equal(t, engine.SideFirst, c.ctx.Engine.CurrentTurn())
}

func TestSubmitMove_IllegalMoveUnicastsRejection(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	chC := connect(c, "C")
	drain(chA)
	drain(chB)
	drain(chC)

	before := c.ctx.Engine.Snapshot()
	illegal := CandidateMove{From: "e2", To: "e5", Promotion: "q"}
	submit(t, c, "A", illegal)

	resps, _ := drain(chA)
	require.Equal(t, []string{RESP_MOVE_REJECTED}, respTypes(resps))
	assert.Equal(t, illegal, resps[0].Data)

	for _, ch := range []chan ResponseWrapper{chB, chC} {
		others, _ := drain(ch)
		assert.Empty(t, others)
	}

	assert.Equal(t, before, c.ctx.Engine.Snapshot())
	assert.Equal(t, engine.SideFirst, c.ctx.Engine.CurrentTurn())
}

func TestSubmitMove_OpponentPieceIsRejectedNotSilent(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	drain(chA)
	drain(chB)

	submit(t, c, "A", CandidateMove{From: "e2", To: "e4"})
	drain(chA)
	drain(chB)

	// 轮到后手，但后手试图移动先手的棋子
	submit(t, c, "B", CandidateMove{From: "d2", To: "d4"})

	resps, _ := drain(chB)
	assert.Equal(t, []string{RESP_MOVE_REJECTED}, respTypes(resps))

	others, _ := drain(chA)
	assert.Empty(t, others)
}

func TestSubmitMove_MalformedPayloadIsFault(t *testing.T) {
	c := newTestCoordinator(t)

	chA := connect(c, "A")
	chB := connect(c, "B")
	drain(chA)
	drain(chB)

	c.handle(RequestWrapper{
		ReqType: REQ_SUBMIT_MOVE,
		Data:    json.RawMessage(`{"from": 12}`),
		ConnID:  "A",
	})

	submit(t, c, "A", CandidateMove{From: "e2", To: "e9"})

	resps, _ := drain(chA)
	require.Equal(t, []string{RESP_MOVE_FAULT, RESP_MOVE_FAULT}, respTypes(resps))
	assert.Equal(t, MoveFaultResponse{Reason: FAULT_MALFORMED_MOVE}, resps[0].Data)
	assert.Equal(t, MoveFaultResponse{Reason: FAULT_ENGINE}, resps[1].Data)

	others, _ := drain(chB)
	assert.Empty(t, others)
	assert.Equal(t, engine.StandardFEN, c.ctx.Engine.Snapshot())
}

type faultyEngine struct {
	applied int
}

func (*faultyEngine) CurrentTurn() engine.Side { return engine.SideFirst }
func (*faultyEngine) Snapshot() string         { return "opaque" }
func (*faultyEngine) Outcome() (string, string) {
	return "*", ""
}

func (fe *faultyEngine) ApplyIfLegal(engine.Move) (string, error) {
	fe.applied++
	return "", errors.New("board index out of range")
}

func TestSubmitMove_EngineFaultStaysWithSubmitter(t *testing.T) {
	fe := &faultyEngine{}
	c := NewCoordinator(fe)

	chA := connect(c, "A")
	chB := connect(c, "B")
	drain(chA)
	drain(chB)

	submit(t, c, "A", CandidateMove{From: "e2", To: "e4"})

	assert.Equal(t, 1, fe.applied)

	resps, _ := drain(chA)
	require.Len(t, resps, 1)
	assert.Equal(t, RESP_MOVE_FAULT, resps[0].RespType)

	fault, ok := resps[0].Data.(MoveFaultResponse)
	require.True(t, ok)
	assert.False(t, strings.Contains(fault.Reason, "index"), "internal detail leaked: %q", fault.Reason)

	others, _ := drain(chB)
	assert.Empty(t, others)
}

func TestBroadcast_EvictsFullConnection(t *testing.T) {
	c := newTestCoordinator(t, WithClientBuffer(2))

	chA := connect(c, "A")
	drain(chA)
	chB := connect(c, "B") // 不读取，B 的缓冲会被占满

	submit(t, c, "A", CandidateMove{From: "e2", To: "e4"})

	resps, closed := drain(chA)
	assert.False(t, closed)
	assert.Equal(t, []string{RESP_MOVE_ACCEPTED, RESP_STATE_SNAPSHOT}, respTypes(resps))

	resps, closed = drain(chB)
	assert.True(t, closed, "lagging connection must be dropped")
	assert.Equal(t, []string{RESP_ROLE_ANNOUNCEMENT, RESP_MOVE_ACCEPTED}, respTypes(resps))

	assert.False(t, c.ctx.Registry.SecondTaken())
	assert.NotContains(t, c.ctx.Conns, "B")

	// 被驱逐的连接随后发来的断开请求不会有副作用
	disconnect(c, "B", chB)
	assert.True(t, c.ctx.Registry.FirstTaken())
}

func TestOnConnect_DuplicateIDKeepsOriginal(t *testing.T) {
	c := newTestCoordinator(t)

	orig := connect(c, "A")
	drain(orig)

	dup := connect(c, "A")
	_, closed := drain(dup)
	assert.True(t, closed)

	// 重复连接的断开请求与登记的通道不一致，不能释放原连接的席位
	disconnect(c, "A", dup)
	assert.True(t, c.ctx.Registry.FirstTaken())

	_, closed = drain(orig)
	assert.False(t, closed)
}

func TestBuildStateView(t *testing.T) {
	c := newTestCoordinator(t)

	connect(c, "A")
	connect(c, "B")
	connect(c, "C")
	submit(t, c, "A", CandidateMove{From: "e2", To: "e4"})

	view := buildStateView(c.ctx)
	assert.Equal(t, c.ctx.Engine.Snapshot(), view.FEN)
	assert.Equal(t, string(ROLE_SECOND_PLAYER), view.Turn)
	assert.Equal(t, "*", view.Outcome)
	assert.Empty(t, view.Method)
	assert.True(t, view.FirstSeatTaken)
	assert.True(t, view.SecondSeatTaken)
	assert.Equal(t, 3, view.Connections)
}

func TestSubmitMove_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestCoordinator(t, WithMetrics(metrics.New(reg)))

	connect(c, "A")
	connect(c, "B")
	connect(c, "C")

	submit(t, c, "C", CandidateMove{From: "e2", To: "e4"}) // discarded
	submit(t, c, "A", CandidateMove{From: "e2", To: "e5"}) // rejected
	submit(t, c, "A", CandidateMove{From: "e2", To: "e4"}) // accepted

	expected := `
# HELP chess_duel_moves_total Move submissions by outcome
# TYPE chess_duel_moves_total counter
chess_duel_moves_total{outcome="accepted"} 1
chess_duel_moves_total{outcome="discarded"} 1
chess_duel_moves_total{outcome="rejected"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "chess_duel_moves_total"))

	expected = `
# HELP chess_duel_live_connections Number of connections currently attached to the session
# TYPE chess_duel_live_connections gauge
chess_duel_live_connections 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "chess_duel_live_connections"))
}
