package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// 一局游戏的阶段：
// 1. 等待阶段（waiting）：玩家加入房间，等待开始
// 2. 线索阶段（clue_submission）：存活玩家提交线索，满额或超时进入下一阶段
// 3. 质询阶段（peacekeeper_query）：Peacekeeper 可以向一名玩家私密提问
// 4. 换词阶段（mayhem_decision）：Mayhem 可以发动一局一次的换词能力
// 5. 投票阶段（voting）：存活玩家互相投票，到时结算
// 6. 猜词阶段（imposter_guess）：投票平局后的附加窗口
// 7. 结束阶段（finished）：公布战报，可以直接开新的一局
const (
	STAGE_WAITING           = "waiting"
	STAGE_CLUE_SUBMISSION   = "clue_submission"
	STAGE_PEACEKEEPER_QUERY = "peacekeeper_query"
	STAGE_MAYHEM_DECISION   = "mayhem_decision"
	STAGE_VOTING            = "voting"
	STAGE_IMPOSTER_GUESS    = "imposter_guess"
	STAGE_FINISHED          = "finished"
)

// 各阶段时长，换词后的线索阶段使用缩短的计时
const (
	CLUE_DURATION      = 60 * time.Second
	CLUE_SWAP_DURATION = 45 * time.Second
	PEACE_DURATION     = 15 * time.Second
	MAYHEM_DURATION    = 10 * time.Second
	VOTING_DURATION    = 20 * time.Second
	GUESS_DURATION     = 15 * time.Second
)

const (
	// 一个房间最多 8 名玩家
	MAX_PLAYERS = 8
	// 开局至少需要三个特殊角色加一名普通玩家
	MIN_PLAYERS = 4
)

// 胜利方标识
const (
	WINNER_IMPOSTER   = "imposter"
	WINNER_DETECTIVES = "detectives"
)

type StageHandler interface {
	Stage() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextStage string))
}

// ----------------------------------------------------------------------------
// 各阶段共用的处理逻辑

// enterTimedPhase 广播阶段切换并布置本阶段唯一的定时器
func enterTimedPhase(ctx *GameContext, d time.Duration) {
	ctx.BroadcastResp(WrapResponse(
		RESP_PHASE_CHANGE,
		PhaseChangeResponse{
			NewPhase: ctx.GameStage,
			Timer:    int(d.Seconds()),
			Round:    ctx.Round,
		},
	))

	ctx.BroadcastResp(WrapResponse(
		RESP_PHASE_TRANSITION,
		PhaseTransitionResponse{Phase: ctx.GameStage, Animate: true},
	))

	ctx.SetTimeout(d)
}

// sanitizePlayer 返回隐藏身份的公开副本
// 身份只通过私发的 RoleAssignment 和终局战报公开
func sanitizePlayer(p *Player) Player {
	public := *p
	public.Role = ""
	public.RespCh = nil

	return public
}

// buildPublicPlayersList 构造房间级广播用的玩家列表，一律用公开副本
func buildPublicPlayersList(ctx *GameContext) []Player {
	players := make([]Player, 0, len(ctx.PlayerOrder))
	for _, p := range ctx.OrderedPlayers() {
		players = append(players, sanitizePlayer(p))
	}

	return players
}

func hostID(ctx *GameContext) string {
	if len(ctx.PlayerOrder) == 0 {
		return ""
	}

	return ctx.PlayerOrder[0]
}

func broadcastRoomUpdate(ctx *GameContext) {
	ctx.BroadcastResp(WrapResponse(
		RESP_ROOM_UPDATE,
		RoomUpdateResponse{
			RoomID:  ctx.RoomID,
			Stage:   ctx.GameStage,
			Players: buildPublicPlayersList(ctx),
			HostID:  hostID(ctx),
		},
	))
}

// onPlayerJoin 处理加入请求
// 相同 ID 或相同名字视为断线重连：替换响应通道并重发私有快照
// 游戏进行中加入的新玩家先以未存活状态旁观，下一局开始时转正
func onPlayerJoin(ctx *GameContext, req *JoinGameRequest) {
	playerID := req.PlayerID
	if playerID == "" {
		playerID = GenShortID()
	}

	// 按 ID 或名字查找既有玩家
	existing := ctx.Players[playerID]
	if existing == nil {
		for _, p := range ctx.OrderedPlayers() {
			if p.Name == req.JoinerName {
				existing = p
				break
			}
		}
	}

	if existing != nil {
		zap.L().Info(
			"检测到重复的玩家，执行断线重连",
			zap.String("room_id", ctx.RoomID),
			zap.String("player_id", existing.ID),
			zap.String("player_name", existing.Name),
		)

		// 关闭旧连接的响应通道，让旧的写协程退出
		if existing.RespCh != nil {
			close(existing.RespCh)
		}

		existing.RespCh = req.RespCh

		ctx.UnicastResp(existing.ID, WrapResponse(
			RESP_JOIN_GAME,
			JoinGameResponse{
				RoomID:  ctx.RoomID,
				Stage:   ctx.GameStage,
				Joiner:  *existing,
				Players: buildPublicPlayersList(ctx),
				HostID:  hostID(ctx),
			},
		))

		broadcastRoomUpdate(ctx)

		return
	}

	if len(ctx.Players) >= MAX_PLAYERS {
		select {
		case req.RespCh <- WrapErrResponse("房间已满"):
		default:
		}
		return
	}

	player := &Player{
		ID:      playerID,
		Name:    req.JoinerName,
		Role:    ROLE_NORMAL,
		IsAlive: true,
		RespCh:  req.RespCh,
	}

	// 第一个加入的玩家是房主，房主在规则上仍等同于普通玩家
	if len(ctx.Players) == 0 {
		player.Role = ROLE_HOST
	}

	// 游戏已经开始时加入的玩家先旁观，避免影响线索满额和投票
	if ctx.GameStage != STAGE_WAITING && ctx.GameStage != STAGE_FINISHED {
		player.IsAlive = false
	}

	ctx.Players[player.ID] = player
	ctx.PlayerOrder = append(ctx.PlayerOrder, player.ID)

	ctx.UnicastResp(player.ID, WrapResponse(
		RESP_JOIN_GAME,
		JoinGameResponse{
			RoomID:  ctx.RoomID,
			Stage:   ctx.GameStage,
			Joiner:  *player,
			Players: buildPublicPlayersList(ctx),
			HostID:  hostID(ctx),
		},
	))

	broadcastRoomUpdate(ctx)

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
	)
}

// onPlayerExit 把玩家从房间移除，返回被移除的玩家
// 响应通道不匹配说明是被顶替的旧连接，只发确认不删玩家
func onPlayerExit(ctx *GameContext, req *ExitGameRequest) *Player {
	player, exists := ctx.Players[req.PlayerID]
	if !exists {
		zap.L().Warn(
			"玩家不存在，无法退出",
			zap.String("room_id", ctx.RoomID),
			zap.String("player_id", req.PlayerID),
		)
		return nil
	}

	exitResp := WrapResponse(
		RESP_EXIT_GAME,
		ExitGameResponse{
			LeftPlayerID:   player.ID,
			LeftPlayerName: player.Name,
		},
	)

	if req.RespCh != nil && player.RespCh != req.RespCh {
		select {
		case req.RespCh <- exitResp:
		default:
		}
		return nil
	}

	select {
	case player.RespCh <- exitResp:
	default:
	}

	close(player.RespCh)
	player.RespCh = nil

	delete(ctx.Players, player.ID)
	for i, id := range ctx.PlayerOrder {
		if id == player.ID {
			ctx.PlayerOrder = append(ctx.PlayerOrder[:i], ctx.PlayerOrder[i+1:]...)
			break
		}
	}

	// 离场者自己的票和投给他的票都作废，结算时不能出现场外候选人
	delete(ctx.Votes, player.ID)
	for voterID, targetID := range ctx.Votes {
		if targetID == player.ID {
			delete(ctx.Votes, voterID)
		}
	}

	broadcastRoomUpdate(ctx)

	zap.L().Info(
		"玩家已退出房间",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
	)

	return player
}

// assignRoles 在每局开始时重新洗牌分配角色：
// 一名 Imposter、一名 Peacekeeper、一名 Mayhem，其余为 Normal
func assignRoles(ctx *GameContext) {
	order := make([]string, len(ctx.PlayerOrder))
	copy(order, ctx.PlayerOrder)

	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for i, id := range order {
		p := ctx.Players[id]
		p.IsAlive = true

		switch i {
		case 0:
			p.Role = ROLE_IMPOSTER
		case 1:
			p.Role = ROLE_PEACEKEEPER
		case 2:
			p.Role = ROLE_MAYHEM
		default:
			p.Role = ROLE_NORMAL
		}
	}
}

// notifyRoles 向每名玩家单播身份通知
// Imposter 只能看到分类，看不到词
func notifyRoles(ctx *GameContext) {
	for _, p := range ctx.OrderedPlayers() {
		resp := RoleAssignmentResponse{
			Role:     p.Role,
			Category: ctx.Category,
		}

		if capsOf(p.Role).SeesWord {
			resp.Word = ctx.Word
		}

		ctx.UnicastResp(p.ID, WrapResponse(RESP_ROLE_ASSIGNMENT, resp))
	}
}

// startNextRound 开出一个新轮次
// category 为空或非法时随机选取分类；分类中已无未用词时广播提示并返回错误，
// 调用方决定是中止开局还是结束整局
func startNextRound(ctx *GameContext, category string) error {
	if category == "" || !ctx.Words.Contains(category) {
		category = ctx.Words.RandomCategory()
	}

	word, err := ctx.Words.PickWord(category, ctx.UsedWords)
	if err != nil {
		ctx.BroadcastResp(WrapResponse(
			RESP_ANNOUNCEMENT,
			AnnouncementResponse{
				Message: fmt.Sprintf("No unused words left in category %q.", category),
			},
		))
		return err
	}

	ctx.Round++
	ctx.Category = category
	ctx.Word = word
	ctx.UsedWords[normalizeText(word)] = struct{}{}

	ctx.Clues = nil
	ctx.Votes = make(map[string]string)
	ctx.Peace = nil
	ctx.SwappedRound = false

	notifyRoles(ctx)

	zap.L().Info(
		"新轮次开始",
		zap.String("room_id", ctx.RoomID),
		zap.Int("round", ctx.Round),
		zap.String("category", category),
	)

	return nil
}

// handleStartGame 校验并开始新的一局，成功后由调用方切换到线索阶段
func handleStartGame(ctx *GameContext, req *StartGameRequest) error {
	if _, ok := ctx.Players[req.StartPlayerID]; !ok {
		return errors.New("无法开始游戏：发起者不在房间内")
	}

	if len(ctx.Players) < MIN_PLAYERS {
		return fmt.Errorf("无法开始游戏：玩家数量不足 %d 人", MIN_PLAYERS)
	}

	// 新的一局：清空整局范围的状态
	ctx.Round = 0
	ctx.UsedWords = make(map[string]struct{})
	ctx.UsedClues = make(map[string]struct{})
	ctx.MayhemUsed = false

	assignRoles(ctx)

	if err := startNextRound(ctx, req.Category); err != nil {
		return fmt.Errorf("无法开始游戏：%w", err)
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_STARTED,
		GameStartedResponse{Category: ctx.Category},
	))

	return nil
}

func broadcastGameSummary(ctx *GameContext) {
	summary := make([]PlayerSummary, 0, len(ctx.PlayerOrder))
	for _, p := range ctx.OrderedPlayers() {
		summary = append(summary, PlayerSummary{
			Name:  p.Name,
			Role:  p.Role,
			Alive: p.IsAlive,
		})
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_SUMMARY,
		GameSummaryResponse{Players: summary},
	))
}

func broadcastGameOver(ctx *GameContext, winners []string, reason string) {
	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_OVER,
		GameOverResponse{
			Winners: winners,
			Reason:  reason,
			Word:    ctx.Word,
		},
	))

	broadcastGameSummary(ctx)

	zap.L().Info(
		"游戏结束",
		zap.String("room_id", ctx.RoomID),
		zap.Strings("winners", winners),
		zap.String("reason", reason),
	)
}

// evaluateWin 评估常驻胜负条件，无论淘汰来自投票还是退场都走同一判定：
// Imposter 出局则好人方胜，Peacekeeper 出局则 Imposter 胜
func evaluateWin(ctx *GameContext) (winners []string, reason string, over bool) {
	if !ctx.IsRoleAlive(ROLE_IMPOSTER) {
		return []string{WINNER_DETECTIVES}, "Imposter was eliminated. Detectives win!", true
	}

	if !ctx.IsRoleAlive(ROLE_PEACEKEEPER) {
		return []string{WINNER_IMPOSTER}, "Peacekeeper was eliminated. Imposter wins!", true
	}

	return nil, "", false
}

// handleImposterGuess 处理反派的直接猜词，线索阶段之后的任何阶段都接受
// 猜中立即结束游戏；猜错只记录并广播
func handleImposterGuess(ctx *GameContext, req *ImposterGuessRequest) (over bool, err error) {
	player, ok := ctx.Players[req.PlayerID]
	if !ok {
		return false, errors.New("猜词者不在房间内")
	}

	if !capsOf(player.Role).CanGuessWord {
		return false, errors.New("只有 Imposter 可以直接猜词")
	}

	correct := normalizeText(req.Word) == normalizeText(ctx.Word)

	ctx.BroadcastResp(WrapResponse(
		RESP_IMPOSTER_GUESS,
		ImposterGuessResponse{
			PlayerName: player.Name,
			Word:       req.Word,
			Correct:    correct,
		},
	))

	if !correct {
		return false, nil
	}

	broadcastGameOver(
		ctx,
		[]string{WINNER_IMPOSTER},
		"Imposter guessed the word!",
	)

	return true, nil
}

// handleDeparture 处理游戏进行中的玩家退场对胜负的影响
func handleDeparture(ctx *GameContext, left *Player, onSwitch func(string)) {
	if left == nil {
		return
	}

	if winners, reason, over := evaluateWin(ctx); over {
		broadcastGameOver(ctx, winners, reason)
		onSwitch(STAGE_FINISHED)
	}
}

// ----------------------------------------------------------------------------
// 等待阶段

type waitStageHandler struct {
	onSwitch func(string)
}

func NewWaitStageHandler() *waitStageHandler {
	return &waitStageHandler{}
}

func (wsh *waitStageHandler) Stage() string {
	return STAGE_WAITING
}

func (wsh *waitStageHandler) OnEnter(ctx *GameContext) {
	// 状态机创建后第一次进入，初始化上下文
	if ctx.Players == nil {
		ctx.GameStage = STAGE_WAITING
		ctx.Players = make(map[string]*Player)
		ctx.UsedWords = make(map[string]struct{})
		ctx.UsedClues = make(map[string]struct{})
		ctx.Votes = make(map[string]string)
	}
}

func (wsh *waitStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		onPlayerExit(ctx, exitReq)
		return nil
	}

	if startReq := TryUnwrapStartGameRequest(req); startReq != nil {
		if err := handleStartGame(ctx, startReq); err != nil {
			return err
		}

		wsh.onSwitch(STAGE_CLUE_SUBMISSION)
		return nil
	}

	return errors.New("等待阶段不支持该请求类型")
}

func (wsh *waitStageHandler) OnExit(ctx *GameContext) {
}

func (wsh *waitStageHandler) SetOnSwitch(onSwitch func(string)) {
	wsh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 线索阶段

type clueStageHandler struct {
	onSwitch func(string)
}

func NewClueStageHandler() *clueStageHandler {
	return &clueStageHandler{}
}

func (csh *clueStageHandler) Stage() string {
	return STAGE_CLUE_SUBMISSION
}

func (csh *clueStageHandler) OnEnter(ctx *GameContext) {
	duration := CLUE_DURATION
	if ctx.SwappedRound {
		duration = CLUE_SWAP_DURATION
	}

	enterTimedPhase(ctx, duration)
}

func (csh *clueStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		left := onPlayerExit(ctx, exitReq)
		handleDeparture(ctx, left, csh.onSwitch)

		// 退场可能让线索数刚好满额
		if ctx.GameStage == STAGE_CLUE_SUBMISSION &&
			left != nil && len(ctx.Clues) >= ctx.CountAlive() {
			csh.onSwitch(STAGE_PEACEKEEPER_QUERY)
		}

		return nil
	}

	if tmoReq := TryUnwrapTimeoutRequest(req); tmoReq != nil {
		if ctx.IsStaleTimeout(tmoReq) {
			return nil
		}

		csh.onSwitch(STAGE_PEACEKEEPER_QUERY)
		return nil
	}

	if guessReq := TryUnwrapImposterGuessRequest(req); guessReq != nil {
		over, err := handleImposterGuess(ctx, guessReq)
		if over {
			csh.onSwitch(STAGE_FINISHED)
		}
		return err
	}

	if clueReq := TryUnwrapSubmitClueRequest(req); clueReq != nil {
		return csh.handleClue(ctx, clueReq)
	}

	return errors.New("线索阶段不支持该请求类型")
}

func (csh *clueStageHandler) handleClue(ctx *GameContext, req *SubmitClueRequest) error {
	player, ok := ctx.Players[req.PlayerID]
	if !ok {
		return errors.New("提交者不在房间内")
	}

	if !player.IsAlive {
		return errors.New("已出局的玩家不能提交线索")
	}

	normalized := normalizeText(req.Clue)
	if normalized == "" {
		return errors.New("线索不能为空")
	}

	// 整局范围去重：本轮和之前轮次用过的线索都不允许重复
	if _, used := ctx.UsedClues[normalized]; used {
		ctx.UnicastResp(player.ID, WrapResponse(
			RESP_CLUE_ERROR,
			ClueErrorResponse{Message: "Clue already used in this game!"},
		))
		return errors.New("线索已被使用")
	}

	ctx.Clues = append(ctx.Clues, Clue{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Clue:       req.Clue,
	})
	ctx.UsedClues[normalized] = struct{}{}

	ctx.BroadcastResp(WrapResponse(
		RESP_CLUE_UPDATE,
		ClueUpdateResponse{Clues: ctx.Clues},
	))

	// 线索数达到存活人数时提前结束本阶段，不等计时器
	if len(ctx.Clues) >= ctx.CountAlive() {
		csh.onSwitch(STAGE_PEACEKEEPER_QUERY)
	}

	return nil
}

func (csh *clueStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
}

func (csh *clueStageHandler) SetOnSwitch(onSwitch func(string)) {
	csh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 质询阶段

type peacekeeperStageHandler struct {
	onSwitch func(string)
}

func NewPeacekeeperStageHandler() *peacekeeperStageHandler {
	return &peacekeeperStageHandler{}
}

func (psh *peacekeeperStageHandler) Stage() string {
	return STAGE_PEACEKEEPER_QUERY
}

func (psh *peacekeeperStageHandler) OnEnter(ctx *GameContext) {
	// 新的质询阶段覆盖上一次未公开的问答
	ctx.Peace = nil

	enterTimedPhase(ctx, PEACE_DURATION)
}

func (psh *peacekeeperStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		left := onPlayerExit(ctx, exitReq)
		handleDeparture(ctx, left, psh.onSwitch)
		return nil
	}

	if tmoReq := TryUnwrapTimeoutRequest(req); tmoReq != nil {
		if ctx.IsStaleTimeout(tmoReq) {
			return nil
		}

		// 换词已经发生过的轮次不再有换词窗口，直接进入投票
		if ctx.SwappedRound {
			psh.onSwitch(STAGE_VOTING)
		} else {
			psh.onSwitch(STAGE_MAYHEM_DECISION)
		}

		return nil
	}

	if guessReq := TryUnwrapImposterGuessRequest(req); guessReq != nil {
		over, err := handleImposterGuess(ctx, guessReq)
		if over {
			psh.onSwitch(STAGE_FINISHED)
		}
		return err
	}

	if queryReq := TryUnwrapPeacekeeperQueryRequest(req); queryReq != nil {
		return psh.handleQuery(ctx, queryReq)
	}

	if respReq := TryUnwrapPeacekeeperResponseRequest(req); respReq != nil {
		return psh.handleResponse(ctx, respReq)
	}

	if revealReq := TryUnwrapPeacekeeperRevealRequest(req); revealReq != nil {
		return psh.handleReveal(ctx, revealReq)
	}

	return errors.New("质询阶段不支持该请求类型")
}

func (psh *peacekeeperStageHandler) handleQuery(ctx *GameContext, req *PeacekeeperQueryRequest) error {
	asker, ok := ctx.Players[req.PlayerID]
	if !ok {
		return errors.New("提问者不在房间内")
	}

	if !capsOf(asker.Role).CanPeaceAsk || !asker.IsAlive {
		return errors.New("只有存活的 Peacekeeper 可以提问")
	}

	// 每个质询阶段只允许一次提问
	if ctx.Peace != nil {
		return errors.New("本阶段已经提过问题")
	}

	target, ok := ctx.Players[req.TargetID]
	if !ok || target.ID == asker.ID || !target.IsAlive {
		return errors.New("提问对象无效")
	}

	ctx.Peace = &PeacekeeperExchange{
		AskerID:  asker.ID,
		TargetID: target.ID,
		Question: req.Question,
	}

	ctx.UnicastResp(target.ID, WrapResponse(
		RESP_PEACE_PROMPT,
		PeacekeeperPromptResponse{Question: req.Question},
	))

	return nil
}

func (psh *peacekeeperStageHandler) handleResponse(ctx *GameContext, req *PeacekeeperResponseRequest) error {
	if ctx.Peace == nil || ctx.Peace.Answered {
		return errors.New("当前没有待回答的问题")
	}

	if req.PlayerID != ctx.Peace.TargetID {
		return errors.New("只有被提问的玩家可以回答")
	}

	ctx.Peace.Answer = req.Answer
	ctx.Peace.Answered = true

	ctx.UnicastResp(ctx.Peace.AskerID, WrapResponse(
		RESP_PEACE_RECEIVED,
		PeacekeeperReceivedResponse{Answer: req.Answer},
	))

	return nil
}

func (psh *peacekeeperStageHandler) handleReveal(ctx *GameContext, req *PeacekeeperRevealRequest) error {
	if ctx.Peace == nil {
		return errors.New("当前没有可公开的问答")
	}

	if req.PlayerID != ctx.Peace.AskerID {
		return errors.New("只有提问者可以公开问答")
	}

	// 重复公开是幂等的，只会把存档的问答再广播一次
	ctx.Peace.Revealed = true

	ctx.BroadcastResp(WrapResponse(
		RESP_PEACE_REVEAL,
		PeacekeeperRevealResponse{
			Question: ctx.Peace.Question,
			Answer:   ctx.Peace.Answer,
		},
	))

	return nil
}

func (psh *peacekeeperStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
}

func (psh *peacekeeperStageHandler) SetOnSwitch(onSwitch func(string)) {
	psh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 换词阶段

type mayhemStageHandler struct {
	onSwitch func(string)
}

func NewMayhemStageHandler() *mayhemStageHandler {
	return &mayhemStageHandler{}
}

func (msh *mayhemStageHandler) Stage() string {
	return STAGE_MAYHEM_DECISION
}

func (msh *mayhemStageHandler) OnEnter(ctx *GameContext) {
	enterTimedPhase(ctx, MAYHEM_DURATION)
}

func (msh *mayhemStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		left := onPlayerExit(ctx, exitReq)
		handleDeparture(ctx, left, msh.onSwitch)
		return nil
	}

	if tmoReq := TryUnwrapTimeoutRequest(req); tmoReq != nil {
		if ctx.IsStaleTimeout(tmoReq) {
			return nil
		}

		msh.onSwitch(STAGE_VOTING)
		return nil
	}

	if guessReq := TryUnwrapImposterGuessRequest(req); guessReq != nil {
		over, err := handleImposterGuess(ctx, guessReq)
		if over {
			msh.onSwitch(STAGE_FINISHED)
		}
		return err
	}

	if mayhemReq := TryUnwrapActivateMayhemRequest(req); mayhemReq != nil {
		return msh.handleActivate(ctx, mayhemReq)
	}

	return errors.New("换词阶段不支持该请求类型")
}

// handleActivate 发动一局一次的换词能力：
// 换一个未用过的词、作废本轮已提交的线索、重新下发身份通知，
// 并以缩短的计时重开线索阶段
func (msh *mayhemStageHandler) handleActivate(ctx *GameContext, req *ActivateMayhemRequest) error {
	player, ok := ctx.Players[req.PlayerID]
	if !ok {
		return errors.New("发动者不在房间内")
	}

	if !capsOf(player.Role).CanMayhem || !player.IsAlive {
		ctx.UnicastResp(req.PlayerID, WrapResponse(
			RESP_MAYHEM_ERROR,
			MayhemErrorResponse{Message: "Mayhem ability already used or invalid."},
		))
		return errors.New("只有存活的 Mayhem 可以发动换词")
	}

	if ctx.MayhemUsed {
		ctx.UnicastResp(player.ID, WrapResponse(
			RESP_MAYHEM_ERROR,
			MayhemErrorResponse{Message: "Mayhem ability already used or invalid."},
		))
		return errors.New("换词能力本局已经用过")
	}

	newWord, err := ctx.Words.PickWord(ctx.Category, ctx.UsedWords)
	if err != nil {
		ctx.UnicastResp(player.ID, WrapResponse(
			RESP_MAYHEM_ERROR,
			MayhemErrorResponse{Message: "No unused words left in this category."},
		))
		return err
	}

	ctx.Word = newWord
	ctx.UsedWords[normalizeText(newWord)] = struct{}{}
	ctx.MayhemUsed = true
	ctx.SwappedRound = true

	// 只作废本轮线索：之前轮次用过的线索仍然被整局集合挡住
	for _, c := range ctx.Clues {
		delete(ctx.UsedClues, normalizeText(c.Clue))
	}
	ctx.Clues = nil

	ctx.BroadcastResp(WrapResponse(
		RESP_MAYHEM_WORD_CHANGED,
		MayhemWordChangedResponse{Category: ctx.Category},
	))

	notifyRoles(ctx)

	zap.L().Info(
		"换词能力已发动",
		zap.String("room_id", ctx.RoomID),
		zap.Int("round", ctx.Round),
	)

	msh.onSwitch(STAGE_CLUE_SUBMISSION)

	return nil
}

func (msh *mayhemStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
}

func (msh *mayhemStageHandler) SetOnSwitch(onSwitch func(string)) {
	msh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 投票阶段

type voteStageHandler struct {
	onSwitch func(string)
}

func NewVoteStageHandler() *voteStageHandler {
	return &voteStageHandler{}
}

func (vsh *voteStageHandler) Stage() string {
	return STAGE_VOTING
}

func (vsh *voteStageHandler) OnEnter(ctx *GameContext) {
	ctx.Votes = make(map[string]string)

	enterTimedPhase(ctx, VOTING_DURATION)
}

func (vsh *voteStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		left := onPlayerExit(ctx, exitReq)
		handleDeparture(ctx, left, vsh.onSwitch)
		return nil
	}

	if tmoReq := TryUnwrapTimeoutRequest(req); tmoReq != nil {
		if ctx.IsStaleTimeout(tmoReq) {
			return nil
		}

		vsh.resolveVotes(ctx)
		return nil
	}

	if guessReq := TryUnwrapImposterGuessRequest(req); guessReq != nil {
		over, err := handleImposterGuess(ctx, guessReq)
		if over {
			vsh.onSwitch(STAGE_FINISHED)
		}
		return err
	}

	if voteReq := TryUnwrapVoteRequest(req); voteReq != nil {
		return vsh.handleVote(ctx, voteReq)
	}

	return errors.New("投票阶段不支持该请求类型")
}

func (vsh *voteStageHandler) handleVote(ctx *GameContext, req *VoteRequest) error {
	voter, ok := ctx.Players[req.VoterID]
	if !ok {
		return errors.New("投票者不在房间内")
	}

	if !voter.IsAlive {
		return errors.New("已出局的玩家不能投票")
	}

	target, ok := ctx.Players[req.TargetID]
	if !ok {
		return errors.New("被投票者不在房间内")
	}

	if !target.IsAlive {
		return errors.New("不能投票给已出局的玩家")
	}

	// 重复投票覆盖之前的选择，结算只看计时器到期那一刻的投票
	ctx.Votes[voter.ID] = target.ID

	return nil
}

// resolveVotes 在计时器到期时结算投票
// 唯一最高票的玩家出局；并列最高票不淘汰任何人，转入猜词阶段
func (vsh *voteStageHandler) resolveVotes(ctx *GameContext) {
	tally := make(map[string]int)
	for _, targetID := range ctx.Votes {
		tally[targetID]++
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_VOTE_SUMMARY,
		VoteSummaryResponse{Tally: tally},
	))

	// 按加入顺序遍历，保证并列判断的结果确定
	maxVotes := 0
	topTargets := make([]string, 0, 1)

	for _, p := range ctx.OrderedPlayers() {
		count := tally[p.ID]
		if count == 0 {
			continue
		}

		switch {
		case count > maxVotes:
			maxVotes = count
			topTargets = topTargets[:0]
			topTargets = append(topTargets, p.ID)
		case count == maxVotes:
			topTargets = append(topTargets, p.ID)
		}
	}

	if len(topTargets) != 1 {
		ctx.BroadcastResp(WrapResponse(
			RESP_ANNOUNCEMENT,
			AnnouncementResponse{Message: "Tie vote! No one ejected."},
		))

		vsh.onSwitch(STAGE_IMPOSTER_GUESS)
		return
	}

	ejected := ctx.Players[topTargets[0]]
	ejected.IsAlive = false

	ctx.BroadcastResp(WrapResponse(
		RESP_ANNOUNCEMENT,
		AnnouncementResponse{
			Message: fmt.Sprintf("%s was ejected by vote.", ejected.Name),
		},
	))

	if winners, reason, over := evaluateWin(ctx); over {
		broadcastGameOver(ctx, winners, reason)
		vsh.onSwitch(STAGE_FINISHED)
		return
	}

	// 胜负未分，继续下一轮；词库耗尽则整局结束
	if err := startNextRound(ctx, ""); err != nil {
		broadcastGameOver(ctx, nil, "Word bank exhausted. Game ends without a winner.")
		vsh.onSwitch(STAGE_FINISHED)
		return
	}

	vsh.onSwitch(STAGE_CLUE_SUBMISSION)
}

func (vsh *voteStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
}

func (vsh *voteStageHandler) SetOnSwitch(onSwitch func(string)) {
	vsh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 猜词阶段（投票平局后的附加窗口）

type imposterGuessStageHandler struct {
	onSwitch func(string)
}

func NewImposterGuessStageHandler() *imposterGuessStageHandler {
	return &imposterGuessStageHandler{}
}

func (igh *imposterGuessStageHandler) Stage() string {
	return STAGE_IMPOSTER_GUESS
}

func (igh *imposterGuessStageHandler) OnEnter(ctx *GameContext) {
	enterTimedPhase(ctx, GUESS_DURATION)
}

func (igh *imposterGuessStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		left := onPlayerExit(ctx, exitReq)
		handleDeparture(ctx, left, igh.onSwitch)
		return nil
	}

	if tmoReq := TryUnwrapTimeoutRequest(req); tmoReq != nil {
		if ctx.IsStaleTimeout(tmoReq) {
			return nil
		}

		// 猜词窗口结束，进入下一轮
		if err := startNextRound(ctx, ""); err != nil {
			broadcastGameOver(ctx, nil, "Word bank exhausted. Game ends without a winner.")
			igh.onSwitch(STAGE_FINISHED)
			return nil
		}

		igh.onSwitch(STAGE_CLUE_SUBMISSION)
		return nil
	}

	if guessReq := TryUnwrapImposterGuessRequest(req); guessReq != nil {
		over, err := handleImposterGuess(ctx, guessReq)
		if over {
			igh.onSwitch(STAGE_FINISHED)
		}
		return err
	}

	return errors.New("猜词阶段不支持该请求类型")
}

func (igh *imposterGuessStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
}

func (igh *imposterGuessStageHandler) SetOnSwitch(onSwitch func(string)) {
	igh.onSwitch = onSwitch
}

// ----------------------------------------------------------------------------
// 结束阶段

type finishStageHandler struct {
	onSwitch func(string)
}

func NewFinishStageHandler() *finishStageHandler {
	return &finishStageHandler{}
}

func (fsh *finishStageHandler) Stage() string {
	return STAGE_FINISHED
}

func (fsh *finishStageHandler) OnEnter(ctx *GameContext) {
	// 战报已经在结束前广播过，这里不再布置任何定时器
	ctx.ClearTimeout()
}

func (fsh *finishStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if joinReq := TryUnwrapJoinGameRequest(req); joinReq != nil {
		onPlayerJoin(ctx, joinReq)
		return nil
	}

	if exitReq := TryUnwrapExitGameRequest(req); exitReq != nil {
		onPlayerExit(ctx, exitReq)
		return nil
	}

	// 房间可以复用：在结束阶段直接开始新的一局
	if startReq := TryUnwrapStartGameRequest(req); startReq != nil {
		if err := handleStartGame(ctx, startReq); err != nil {
			return err
		}

		fsh.onSwitch(STAGE_CLUE_SUBMISSION)
		return nil
	}

	return errors.New("游戏已结束")
}

func (fsh *finishStageHandler) OnExit(ctx *GameContext) {
}

func (fsh *finishStageHandler) SetOnSwitch(onSwitch func(string)) {
	fsh.onSwitch = onSwitch
}
