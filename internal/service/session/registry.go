package session

// RoleRegistry 记录两个执子席位分别被哪条连接占用。
// 观察者不占席位，也不会被记录。
// 不是并发安全的，只能由协调器协程访问。
type RoleRegistry struct {
	first  string
	second string
}

func NewRoleRegistry() *RoleRegistry {
	return &RoleRegistry{}
}

// AssignRole 按到达顺序分配：先填先手席位，再填后手席位，其余为观察者
func (rr *RoleRegistry) AssignRole(connID string) Role {
	if connID == "" {
		return ROLE_OBSERVER
	}

	// 同一连接不会同时占两个席位
	if role, ok := rr.RoleOf(connID); ok {
		return role
	}

	if rr.first == "" {
		rr.first = connID
		return ROLE_FIRST_PLAYER
	}

	if rr.second == "" {
		rr.second = connID
		return ROLE_SECOND_PLAYER
	}

	return ROLE_OBSERVER
}

// ReleaseRole 清空该连接占用的席位，幂等
func (rr *RoleRegistry) ReleaseRole(connID string) {
	if connID == "" {
		return
	}

	if rr.first == connID {
		rr.first = ""
	}

	if rr.second == connID {
		rr.second = ""
	}
}

// RoleOf 只返回执子身份；观察者和未知连接返回 false
func (rr *RoleRegistry) RoleOf(connID string) (Role, bool) {
	switch {
	case connID == "":
		return ROLE_OBSERVER, false
	case rr.first == connID:
		return ROLE_FIRST_PLAYER, true
	case rr.second == connID:
		return ROLE_SECOND_PLAYER, true
	default:
		return ROLE_OBSERVER, false
	}
}

func (rr *RoleRegistry) FirstTaken() bool {
	return rr.first != ""
}

func (rr *RoleRegistry) SecondTaken() bool {
	return rr.second != ""
}
