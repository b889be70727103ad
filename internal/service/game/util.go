package game

import (
	"strings"

	"github.com/google/uuid"
)

func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}

// GenShortID 返回 8 位短 ID，用作房间号和玩家号
func GenShortID() string {
	id := GenID()
	return id[len(id)-8:]
}

// normalizeText 是词语和线索去重使用的统一归一化：去首尾空白并转小写
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
