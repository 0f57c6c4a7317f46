package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 请求类型
const (
	// 客户端请求
	REQ_SUBMIT_MOVE = "SubmitMove"

	// 内部请求，只能通过 NativeData 构造
	REQ_CONNECT     = "Connect"
	REQ_DISCONNECT  = "Disconnect"
	REQ_QUERY_STATE = "QueryState"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	// 由传输层填写，客户端无法伪造
	ConnID     string `json:"-"`
	NativeData any    `json:"-"`
}

func TryUnwrapConnectRequest(wrapper RequestWrapper) *ConnectRequest {
	if wrapper.ReqType != REQ_CONNECT {
		return nil
	}

	req, ok := wrapper.NativeData.(*ConnectRequest)
	if !ok || req == nil || req.RespCh == nil {
		zap.L().Error(
			"Failed to unwrap ConnectRequest",
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return req
}

func TryUnwrapDisconnectRequest(wrapper RequestWrapper) *DisconnectRequest {
	if wrapper.ReqType != REQ_DISCONNECT {
		return nil
	}

	req, ok := wrapper.NativeData.(*DisconnectRequest)
	if !ok || req == nil {
		zap.L().Error(
			"Failed to unwrap DisconnectRequest",
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return req
}

func TryUnwrapQueryStateRequest(wrapper RequestWrapper) *QueryStateRequest {
	if wrapper.ReqType != REQ_QUERY_STATE {
		return nil
	}

	req, ok := wrapper.NativeData.(*QueryStateRequest)
	if !ok || req == nil || req.Reply == nil {
		zap.L().Error(
			"Failed to unwrap QueryStateRequest",
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return req
}

// UnwrapCandidateMove 解析落子请求的负载。
// 解析失败不在这里记录，由调用方决定如何回应。
func UnwrapCandidateMove(wrapper RequestWrapper) (CandidateMove, error) {
	var move CandidateMove

	if wrapper.ReqType != REQ_SUBMIT_MOVE {
		return move, fmt.Errorf("unexpected request type %q", wrapper.ReqType)
	}

	if len(wrapper.Data) == 0 {
		return move, errors.New("empty move payload")
	}

	if err := json.Unmarshal(wrapper.Data, &move); err != nil {
		return move, fmt.Errorf("decode move payload: %w", err)
	}

	if move.From == "" || move.To == "" {
		return move, errors.New("move payload missing squares")
	}

	return move, nil
}

// 响应类型
const (
	// 传输层错误，不属于对局协议
	RESP_ERROR = "Error"

	RESP_ROLE_ANNOUNCEMENT = "RoleAnnouncement"
	RESP_MOVE_ACCEPTED     = "MoveAccepted"
	RESP_STATE_SNAPSHOT    = "StateSnapshot"
	RESP_MOVE_REJECTED     = "MoveRejected"
	RESP_MOVE_FAULT        = "MoveFault"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
