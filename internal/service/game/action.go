package game

// 加入请求比较特殊：无论游戏处于什么阶段都允许，
// 所以两个通道字段由 WebSocket 层在进程内填充，不走 JSON
type JoinGameRequest struct {
	RoomID     string               `json:"room_id"`
	JoinerName string               `json:"joiner_name"`
	PlayerID   string               `json:"player_id,omitempty"`
	RespCh     chan ResponseWrapper `json:"-"`
}

type JoinGameResponse struct {
	RoomID  string   `json:"room_id"`
	Stage   string   `json:"stage"`
	Joiner  Player   `json:"joiner"`
	Players []Player `json:"players"`
	HostID  string   `json:"host_id"`
}

type RoomUpdateResponse struct {
	RoomID  string   `json:"room_id"`
	Stage   string   `json:"stage"`
	Players []Player `json:"players"`
	HostID  string   `json:"host_id"`
}

type ExitGameRequest struct {
	PlayerID string               `json:"player_id"`
	RespCh   chan ResponseWrapper `json:"-"`
}

type ExitGameResponse struct {
	LeftPlayerID   string `json:"left_player_id"`
	LeftPlayerName string `json:"left_player_name"`
}

type StartGameRequest struct {
	StartPlayerID string `json:"start_player_id"`
	// 可选，留空或非法时随机选分类
	Category string `json:"category,omitempty"`
}

type GameStartedResponse struct {
	Category string `json:"category"`
}

// RoleAssignmentResponse 只单播给对应玩家
// Imposter 收到分类但永远收不到词
type RoleAssignmentResponse struct {
	Role     string `json:"role"`
	Word     string `json:"word,omitempty"`
	Category string `json:"category"`
}

type PhaseChangeResponse struct {
	NewPhase string `json:"new_phase"`
	Timer    int    `json:"timer"`
	Round    int    `json:"round"`
}

type PhaseTransitionResponse struct {
	Phase   string `json:"phase"`
	Animate bool   `json:"animate"`
}

type SubmitClueRequest struct {
	PlayerID string `json:"player_id"`
	Clue     string `json:"clue"`
}

type ClueUpdateResponse struct {
	Clues []Clue `json:"clues"`
}

type ClueErrorResponse struct {
	Message string `json:"message"`
}

type ActivateMayhemRequest struct {
	PlayerID string `json:"player_id"`
}

type MayhemWordChangedResponse struct {
	Category string `json:"category"`
}

type MayhemErrorResponse struct {
	Message string `json:"message"`
}

type PeacekeeperQueryRequest struct {
	PlayerID string `json:"player_id"`
	TargetID string `json:"target_id"`
	Question string `json:"question"`
}

type PeacekeeperPromptResponse struct {
	Question string `json:"question"`
}

type PeacekeeperResponseRequest struct {
	PlayerID string `json:"player_id"`
	Answer   string `json:"answer"`
}

type PeacekeeperReceivedResponse struct {
	Answer string `json:"answer"`
}

type PeacekeeperRevealRequest struct {
	PlayerID string `json:"player_id"`
}

type PeacekeeperRevealResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ImposterGuessRequest struct {
	PlayerID string `json:"player_id"`
	Word     string `json:"word"`
}

type ImposterGuessResponse struct {
	PlayerName string `json:"player_name"`
	Word       string `json:"word"`
	Correct    bool   `json:"correct"`
}

type VoteRequest struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
}

// VoteSummaryResponse 的 key 是被投玩家 ID，得零票的不会出现
type VoteSummaryResponse struct {
	Tally map[string]int `json:"tally"`
}

type PlayerSummary struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Alive bool   `json:"alive"`
}

type GameSummaryResponse struct {
	Players []PlayerSummary `json:"players"`
}

type GameOverResponse struct {
	Winners []string `json:"winners"`
	Reason  string   `json:"reason"`
	Word    string   `json:"word,omitempty"`
}

type AnnouncementResponse struct {
	Message string `json:"message"`
}

type TimeoutRequest struct {
	Stage string `json:"stage"`
	Seq   uint64 `json:"seq"`
}

// ShutdownRequest 由清理协程注入，让状态机广播关闭通知后退出
type ShutdownRequest struct {
	Reason string
}
