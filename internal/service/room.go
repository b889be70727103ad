package service

import (
	"errors"
	"sync"
	"time"

	"mind-mayhem-be/internal/service/dto"
	"mind-mayhem-be/internal/service/game"

	"go.uber.org/zap"
)

// RoomService 是房间注册表，唯一拥有房间生命周期：
// 创建、公开房间发现、按不活跃时间过期清理
// 房间内部的游戏状态完全由对应的状态机协程管理
type RoomService struct {
	state *roomServiceState
}

type roomServiceState struct {
	mu sync.RWMutex

	rooms map[string]*roomEntry
	// 公开房间按创建顺序排列，发现时取第一个可加入的
	publicRooms []string

	expiry      time.Duration
	cleanUpDone chan struct{}
}

type roomEntry struct {
	machine  *game.GameMachine
	doneCh   chan struct{}
	isPublic bool
}

func NewRoomService(expiry time.Duration) *RoomService {
	state := &roomServiceState{
		rooms:       make(map[string]*roomEntry),
		expiry:      expiry,
		cleanUpDone: make(chan struct{}),
	}

	rs := &RoomService{state: state}

	// 启动一个协程定期清理过期的房间
	go rs.startCleanupLoop()

	return rs
}

func (rs *RoomService) startCleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rs.state.cleanUpDone:
			return

		case <-ticker.C:
			rs.ExpireInactive(time.Now())
		}
	}
}

// ExpireInactive 删除所有超过过期时长没有活动的房间
// 扫描是幂等的，重复调用总是安全
func (rs *RoomService) ExpireInactive(now time.Time) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for roomID, entry := range rs.state.rooms {
		if now.Sub(entry.machine.LastActive()) <= rs.state.expiry {
			continue
		}

		zap.S().Infof("房间 %s 长时间无活动，开始清理", roomID)

		// 尽力通知房间内的玩家，通知失败不阻塞清理
		shutdown := game.RequestWrapper{
			ReqType: game.REQ_SHUTDOWN,
			NativeData: &game.ShutdownRequest{
				Reason: "Room expired due to inactivity.",
			},
		}

		select {
		case entry.machine.GetReqCh() <- shutdown:
		default:
			close(entry.doneCh)
		}

		rs.removeRoomLocked(roomID)
	}
}

func (rs *RoomService) removeRoomLocked(roomID string) {
	delete(rs.state.rooms, roomID)

	for i, id := range rs.state.publicRooms {
		if id == roomID {
			rs.state.publicRooms = append(
				rs.state.publicRooms[:i],
				rs.state.publicRooms[i+1:]...,
			)
			break
		}
	}
}

func (rs *RoomService) Close() {
	close(rs.state.cleanUpDone)

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for roomID, entry := range rs.state.rooms {
		close(entry.doneCh)
		delete(rs.state.rooms, roomID)
	}

	rs.state.publicRooms = nil
}

// CreateRoom 创建房间并启动对应的状态机协程
// 客户端可以指定房间号；房间号已被占用时报错，不会覆盖已有房间
func (rs *RoomService) CreateRoom(req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	if req.CreatorName == "" {
		return dto.CreateRoomResponse{}, errors.New("创建者名称不能为空")
	}

	roomID := req.RoomID
	if roomID == "" {
		roomID = game.GenShortID()
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	if _, exists := rs.state.rooms[roomID]; exists {
		return dto.CreateRoomResponse{}, errors.New("房间已存在")
	}

	doneCh := make(chan struct{})
	machine := game.NewGameMachine(roomID, doneCh)

	rs.state.rooms[roomID] = &roomEntry{
		machine:  machine,
		doneCh:   doneCh,
		isPublic: req.IsPublic,
	}

	if req.IsPublic {
		rs.state.publicRooms = append(rs.state.publicRooms, roomID)
	}

	go machine.Start()

	zap.S().Infof("房间 %s 由 %s 创建", roomID, req.CreatorName)

	return dto.CreateRoomResponse{RoomID: roomID}, nil
}

// JoinRoom 返回房间状态机的请求通道
// 加入请求本身由 WebSocket 层带着连接的响应通道投递进去
func (rs *RoomService) JoinRoom(roomID string) (chan game.RequestWrapper, error) {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	entry, ok := rs.state.rooms[roomID]
	if !ok {
		return nil, errors.New("房间不存在")
	}

	return entry.machine.GetReqCh(), nil
}

// GetPublicRoom 按创建顺序返回第一个可加入的公开房间：
// 等待阶段且人数少于 8，没有则返回空
func (rs *RoomService) GetPublicRoom() (dto.PublicRoomResponse, bool) {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	for _, roomID := range rs.state.publicRooms {
		entry, ok := rs.state.rooms[roomID]
		if !ok {
			continue
		}

		machine := entry.machine
		if machine.Stage() != game.STAGE_WAITING {
			continue
		}

		count := machine.PlayerCount()
		if count >= game.MAX_PLAYERS {
			continue
		}

		return dto.PublicRoomResponse{
			RoomID:      roomID,
			PlayerCount: count,
		}, true
	}

	return dto.PublicRoomResponse{}, false
}

// RoomCount 当前房间数，暴露给测试和日志
func (rs *RoomService) RoomCount() int {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	return len(rs.state.rooms)
}
