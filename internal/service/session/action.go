package session

import "chess-duel-be/internal/service/dto"

// CandidateMove 是客户端提交的未经校验的落子，也原样用于 MoveAccepted / MoveRejected 回显
type CandidateMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type RoleAnnouncementResponse struct {
	Role Role `json:"role"`
}

type StateSnapshotResponse struct {
	FEN string `json:"fen"`
}

type MoveFaultResponse struct {
	Reason string `json:"reason"`
}

type ConnectRequest struct {
	ConnID string
	RespCh chan ResponseWrapper
}

// DisconnectRequest 的 Stream 用于识别发起方，
// 只有与登记的通道一致时才会释放席位
type DisconnectRequest struct {
	ConnID string
	Stream <-chan ResponseWrapper
	Ack    chan struct{}
}

type QueryStateRequest struct {
	Reply chan dto.GameStateResponse
}
