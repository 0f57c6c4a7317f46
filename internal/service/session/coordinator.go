package session

import (
	"context"
	"errors"
	"sync"

	"chess-duel-be/internal/metrics"
	"chess-duel-be/internal/service/dto"
	"chess-duel-be/internal/service/engine"

	"go.uber.org/zap"
)

var (
	ErrBusy    = errors.New("session request queue is full")
	ErrStopped = errors.New("session coordinator stopped")
)

const (
	defaultQueueSize    = 64
	defaultClientBuffer = 64
)

type Option func(*Coordinator)

func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithClientBuffer 设置每条连接响应通道的容量
func WithClientBuffer(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.clientBuffer = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator 是对局的唯一写者：连接、断开、落子和查询都汇总到同一个请求通道，
// 由 Start 所在的协程逐个同步处理
type Coordinator struct {
	ctx *SessionContext

	// 所有请求汇总的通道
	reqCh chan RequestWrapper
	// 通知事件循环退出
	doneCh chan struct{}
	// 事件循环退出后关闭
	exitedCh chan struct{}
	stopOnce sync.Once

	queueSize    int
	clientBuffer int
	metrics      *metrics.Metrics
}

func NewCoordinator(eng engine.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		doneCh:       make(chan struct{}),
		exitedCh:     make(chan struct{}),
		queueSize:    defaultQueueSize,
		clientBuffer: defaultClientBuffer,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.reqCh = make(chan RequestWrapper, c.queueSize)
	c.ctx = NewSessionContext(eng, c.metrics)

	return c
}

// Start 运行事件循环，直到 Stop 被调用
func (c *Coordinator) Start() {
	defer close(c.exitedCh)

	zap.L().Info(
		"对局协调器启动",
		zap.String("fen", c.ctx.Engine.Snapshot()),
	)

	for {
		select {
		case req := <-c.reqCh:
			c.handle(req)

		case <-c.doneCh:
			c.ctx.closeAll()
			c.drain()

			zap.L().Info("收到退出信号，对局协调器结束")
			return
		}
	}
}

// drain 让排队中尚未处理的连接请求得到收尾，避免调用方一直等待
func (c *Coordinator) drain() {
	for {
		select {
		case req := <-c.reqCh:
			if r, ok := req.NativeData.(*ConnectRequest); ok && r.RespCh != nil {
				close(r.RespCh)
			}
			if r, ok := req.NativeData.(*DisconnectRequest); ok && r.Ack != nil {
				close(r.Ack)
			}
		default:
			return
		}
	}
}

// Done 在事件循环退出后关闭
func (c *Coordinator) Done() <-chan struct{} {
	return c.exitedCh
}

func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
}

// Connect 登记一条新连接，返回其响应流；流上的第一条消息是身份通知
func (c *Coordinator) Connect(ctx context.Context, connID string) (<-chan ResponseWrapper, error) {
	respCh := make(chan ResponseWrapper, c.clientBuffer)

	req := RequestWrapper{
		ReqType:    REQ_CONNECT,
		ConnID:     connID,
		NativeData: &ConnectRequest{ConnID: connID, RespCh: respCh},
	}

	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}

	return respCh, nil
}

// Disconnect 阻塞到协调器释放席位并关闭响应流为止。
// stream 必须是 Connect 返回的那个通道。
func (c *Coordinator) Disconnect(ctx context.Context, connID string, stream <-chan ResponseWrapper) error {
	ack := make(chan struct{})

	req := RequestWrapper{
		ReqType: REQ_DISCONNECT,
		ConnID:  connID,
		NativeData: &DisconnectRequest{
			ConnID: connID,
			Stream: stream,
			Ack:    ack,
		},
	}

	if err := c.enqueue(ctx, req); err != nil {
		return err
	}

	select {
	case <-ack:
		return nil
	case <-c.exitedCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit 投递客户端请求，不阻塞；队列已满时返回 ErrBusy
func (c *Coordinator) Submit(connID string, wrapper RequestWrapper) error {
	wrapper.ConnID = connID
	wrapper.NativeData = nil

	select {
	case <-c.doneCh:
		return ErrStopped
	default:
	}

	select {
	case c.reqCh <- wrapper:
		return nil
	default:
		return ErrBusy
	}
}

// State 经由事件循环读取对局视图，保证与落子串行
func (c *Coordinator) State(ctx context.Context) (dto.GameStateResponse, error) {
	reply := make(chan dto.GameStateResponse, 1)

	req := RequestWrapper{
		ReqType:    REQ_QUERY_STATE,
		NativeData: &QueryStateRequest{Reply: reply},
	}

	if err := c.enqueue(ctx, req); err != nil {
		return dto.GameStateResponse{}, err
	}

	select {
	case state := <-reply:
		return state, nil
	case <-c.exitedCh:
		return dto.GameStateResponse{}, ErrStopped
	case <-ctx.Done():
		return dto.GameStateResponse{}, ctx.Err()
	}
}

// 连接事件不能丢弃，阻塞等待队列空位
func (c *Coordinator) enqueue(ctx context.Context, req RequestWrapper) error {
	select {
	case <-c.doneCh:
		return ErrStopped
	default:
	}

	select {
	case c.reqCh <- req:
		return nil
	case <-c.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) handle(req RequestWrapper) {
	zap.L().Debug(
		"接收到请求",
		zap.String("request_type", req.ReqType),
		zap.String("conn_id", req.ConnID),
	)

	if r := TryUnwrapConnectRequest(req); r != nil {
		onConnect(c.ctx, r)
		return
	}

	if r := TryUnwrapDisconnectRequest(req); r != nil {
		onDisconnect(c.ctx, r)
		return
	}

	if r := TryUnwrapQueryStateRequest(req); r != nil {
		r.Reply <- buildStateView(c.ctx)
		return
	}

	if req.ReqType == REQ_SUBMIT_MOVE {
		onSubmitMove(c.ctx, req)
		return
	}

	zap.L().Debug(
		"忽略未知请求类型",
		zap.String("request_type", req.ReqType),
		zap.String("conn_id", req.ConnID),
	)
}
