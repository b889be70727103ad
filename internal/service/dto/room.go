package dto

type CreateRoomRequest struct {
	// 可选，留空时由服务端生成
	RoomID      string `json:"room_id,omitempty"`
	CreatorName string `json:"creator_name"`
	IsPublic    bool   `json:"is_public"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type PublicRoomResponse struct {
	RoomID      string `json:"room_id"`
	PlayerCount int    `json:"player_count"`
}
