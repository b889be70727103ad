package game

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// GameMachine 是房间的状态机，一个房间对应一个事件循环协程
// 玩家动作、定时器到期和关闭指令都汇入同一个循环，天然串行
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler

	// 所有客户端请求汇总的通道
	reqCh chan RequestWrapper
	// 结束通道，用于通知状态机退出事件循环
	doneCh chan struct{}

	createdAt time.Time

	// 供清理协程和公开房间发现读取的快照，避免跨协程读 ctx
	stage       atomic.Value
	playerCount atomic.Int32
	lastActive  atomic.Int64
}

func NewGameMachine(roomID string, doneCh chan struct{}) *GameMachine {
	ctx := &GameContext{
		RoomID: roomID,
		Words:  DefaultWordBank(),
		TmoCh:  make(chan RequestWrapper, 64),
	}

	gm := &GameMachine{
		ctx:       ctx,
		handler:   NewWaitStageHandler(),
		reqCh:     make(chan RequestWrapper, 64),
		doneCh:    doneCh,
		createdAt: time.Now(),
	}

	gm.handler.SetOnSwitch(func(nextStage string) {
		gm.ctx.GameStage = nextStage
	})

	gm.stage.Store(STAGE_WAITING)
	gm.lastActive.Store(time.Now().UnixNano())

	return gm
}

func (gm *GameMachine) GetReqCh() chan RequestWrapper {
	return gm.reqCh
}

func (gm *GameMachine) Start() {
	gm.handler.OnEnter(gm.ctx)

	defer func() {
		gm.ctx.ClearTimeout()
		gm.closePlayerChannels()

		zap.L().Info(
			"游戏状态机已退出",
			zap.String("room_id", gm.ctx.RoomID),
		)
	}()

	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"接收到客户端请求",
				zap.String("room_id", gm.ctx.RoomID),
				zap.String("request_type", req.ReqType),
			)
		case req = <-gm.ctx.TmoCh:
			zap.L().Debug(
				"接收到超时事件",
				zap.String("room_id", gm.ctx.RoomID),
			)
		case <-gm.doneCh:
			zap.L().Info(
				"收到退出信号，结束游戏状态机",
				zap.String("room_id", gm.ctx.RoomID),
			)
			return
		}

		// 关闭指令在进入 handler 前处理，保证任何阶段都能退出
		if shutdownReq := TryUnwrapShutdownRequest(req); shutdownReq != nil {
			gm.ctx.BroadcastResp(WrapResponse(
				RESP_ANNOUNCEMENT,
				AnnouncementResponse{Message: shutdownReq.Reason},
			))
			return
		}

		if err := gm.handler.OnHandle(gm.ctx, req); err != nil {
			zap.L().Debug(
				"处理请求失败",
				zap.Error(err),
				zap.String("room_id", gm.ctx.RoomID),
				zap.String("stage", gm.handler.Stage()),
				zap.String("request_type", req.ReqType),
			)
		}

		gm.lastActive.Store(time.Now().UnixNano())
		gm.playerCount.Store(int32(len(gm.ctx.Players)))

		// 检查阶段是否发生变化，可能连续切换多次
		// （例如投票结算直接开出下一轮）
		for gm.ctx.GameStage != gm.handler.Stage() {
			gm.switchStage()
			gm.handler.OnEnter(gm.ctx)
		}

		gm.stage.Store(gm.ctx.GameStage)
	}
}

func (gm *GameMachine) switchStage() {
	gm.handler.OnExit(gm.ctx)

	var newHandler StageHandler

	switch gm.ctx.GameStage {
	case STAGE_WAITING:
		newHandler = NewWaitStageHandler()
	case STAGE_CLUE_SUBMISSION:
		newHandler = NewClueStageHandler()
	case STAGE_PEACEKEEPER_QUERY:
		newHandler = NewPeacekeeperStageHandler()
	case STAGE_MAYHEM_DECISION:
		newHandler = NewMayhemStageHandler()
	case STAGE_VOTING:
		newHandler = NewVoteStageHandler()
	case STAGE_IMPOSTER_GUESS:
		newHandler = NewImposterGuessStageHandler()
	case STAGE_FINISHED:
		newHandler = NewFinishStageHandler()
	default:
		zap.L().Error(
			"未知的游戏阶段",
			zap.String("room_id", gm.ctx.RoomID),
			zap.String("stage", gm.ctx.GameStage),
		)
		return
	}

	newHandler.SetOnSwitch(func(nextStage string) {
		gm.ctx.GameStage = nextStage
	})

	gm.handler = newHandler
}

func (gm *GameMachine) closePlayerChannels() {
	for _, p := range gm.ctx.Players {
		if p.RespCh != nil {
			close(p.RespCh)
			p.RespCh = nil
		}
	}
}

func (gm *GameMachine) Stage() string {
	return gm.stage.Load().(string)
}

func (gm *GameMachine) PlayerCount() int {
	return int(gm.playerCount.Load())
}

func (gm *GameMachine) LastActive() time.Time {
	return time.Unix(0, gm.lastActive.Load())
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}
