package session

import (
	"github.com/google/uuid"
)

// GenID 生成连接 ID，UUIDv7 按时间有序，便于在日志中排查
func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}
