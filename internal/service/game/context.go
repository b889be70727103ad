package game

import (
	"time"

	"go.uber.org/zap"
)

// GameContext 是一个房间的全部可变状态
// 只允许房间自己的状态机协程读写，跨协程只通过通道交互
type GameContext struct {
	RoomID    string
	GameStage string

	Players map[string]*Player
	// 加入顺序，计票和战报遍历都按这个顺序，保证结果确定
	PlayerOrder []string

	Round    int
	Category string
	Word     string

	// 整局游戏范围内的去重集合，键为小写
	UsedWords map[string]struct{}
	UsedClues map[string]struct{}

	// 仅当前轮次有效，每轮开始时清空
	Clues []Clue
	Votes map[string]string
	Peace *PeacekeeperExchange

	// 换词能力一局只能用一次
	MayhemUsed bool
	// 当前轮次是否已经发生过换词（换词后的线索阶段用短计时）
	SwappedRound bool

	Words WordBank

	// 超时事件通道，定时器到期后把事件投递回状态机协程
	TmoCh chan RequestWrapper

	timer    *time.Timer
	timerSeq uint64
}

func (gc *GameContext) GetPlayer(playerID string) *Player {
	return gc.Players[playerID]
}

// OrderedPlayers 按加入顺序返回所有玩家
func (gc *GameContext) OrderedPlayers() []*Player {
	players := make([]*Player, 0, len(gc.PlayerOrder))
	for _, id := range gc.PlayerOrder {
		if p, ok := gc.Players[id]; ok {
			players = append(players, p)
		}
	}

	return players
}

func (gc *GameContext) CountAlive() int {
	count := 0
	for _, p := range gc.Players {
		if p.IsAlive {
			count++
		}
	}

	return count
}

func (gc *GameContext) IsRoleAlive(role string) bool {
	for _, p := range gc.Players {
		if p.Role == role && p.IsAlive {
			return true
		}
	}

	return false
}

// FindByRole 返回第一个持有该角色的玩家，按加入顺序查找
func (gc *GameContext) FindByRole(role string) *Player {
	for _, p := range gc.OrderedPlayers() {
		if p.Role == role {
			return p
		}
	}

	return nil
}

func (gc *GameContext) BroadcastResp(resp ResponseWrapper) {
	for _, p := range gc.Players {
		select {
		case p.RespCh <- resp:
		default:
			zap.L().Warn(
				"发送广播响应失败：玩家响应通道已满",
				zap.String("room_id", gc.RoomID),
				zap.String("player_id", p.ID),
			)
		}
	}
}

func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	player, ok := gc.Players[playerID]
	if !ok {
		zap.L().Warn(
			"无法找到玩家进行单播响应",
			zap.String("room_id", gc.RoomID),
			zap.String("player_id", playerID),
		)
		return
	}

	select {
	case player.RespCh <- resp:
	default:
		zap.L().Warn(
			"发送单播响应失败：玩家响应通道已满",
			zap.String("room_id", gc.RoomID),
			zap.String("player_id", playerID),
		)
	}
}

// SetTimeout 为当前阶段布置唯一的定时器
// 先取消上一个定时器，并给本次到期事件打上阶段和序号
// 序号不匹配的到期事件会被 handler 丢弃，保证被取代的定时器必然无效
func (gc *GameContext) SetTimeout(d time.Duration) {
	gc.ClearTimeout()

	gc.timerSeq++
	seq := gc.timerSeq
	stage := gc.GameStage

	gc.timer = time.AfterFunc(d, func() {
		wrapper := RequestWrapper{
			ReqType:    REQ_TIMEOUT,
			NativeData: &TimeoutRequest{Stage: stage, Seq: seq},
		}

		select {
		case gc.TmoCh <- wrapper:
		default:
			// 房间协程已经退出时直接丢弃
		}
	})
}

func (gc *GameContext) ClearTimeout() {
	if gc.timer != nil {
		gc.timer.Stop()
		gc.timer = nil
	}
}

// IsStaleTimeout 判断一个到期事件是否来自已被取代的定时器
func (gc *GameContext) IsStaleTimeout(req *TimeoutRequest) bool {
	return req.Stage != gc.GameStage || req.Seq != gc.timerSeq
}
