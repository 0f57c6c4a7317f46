package session

import "chess-duel-be/internal/service/engine"

type Role string

// 连接身份
const (
	ROLE_FIRST_PLAYER  Role = "FirstPlayer"
	ROLE_SECOND_PLAYER Role = "SecondPlayer"
	ROLE_OBSERVER      Role = "Observer"
)

// Side 返回该身份控制的一方，观察者没有
func (r Role) Side() (engine.Side, bool) {
	switch r {
	case ROLE_FIRST_PLAYER:
		return engine.SideFirst, true
	case ROLE_SECOND_PLAYER:
		return engine.SideSecond, true
	default:
		return 0, false
	}
}

func roleForSide(side engine.Side) Role {
	if side == engine.SideFirst {
		return ROLE_FIRST_PLAYER
	}

	return ROLE_SECOND_PLAYER
}

// Conn 是一条存活连接在协调器中的表示
type Conn struct {
	ID   string
	Role Role

	RespCh chan ResponseWrapper
}
