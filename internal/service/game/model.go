package game

// 玩家身份
// Host 只是房主的标记，游戏规则上等同于 Normal
// Imposter 是唯一看不到谜底词的阵营（反派）
// Peacekeeper 是好人阵营的核心角色，每轮可以私聊提问一次
// Mayhem 持有一局一次的换词能力
const (
	ROLE_HOST        = "host"
	ROLE_NORMAL      = "normal"
	ROLE_IMPOSTER    = "imposter"
	ROLE_PEACEKEEPER = "peacekeeper"
	ROLE_MAYHEM      = "mayhem"
)

// roleCaps 是封闭的角色能力表，避免把角色字符串散落在各个 handler 里
type roleCaps struct {
	SeesWord     bool
	CanMayhem    bool
	CanPeaceAsk  bool
	CanGuessWord bool
}

var roleTable = map[string]roleCaps{
	ROLE_HOST:        {SeesWord: true},
	ROLE_NORMAL:      {SeesWord: true},
	ROLE_IMPOSTER:    {CanGuessWord: true},
	ROLE_PEACEKEEPER: {SeesWord: true, CanPeaceAsk: true},
	ROLE_MAYHEM:      {SeesWord: true, CanMayhem: true},
}

func capsOf(role string) roleCaps {
	caps, ok := roleTable[role]
	if !ok {
		// 未知角色一律按无能力处理
		return roleCaps{}
	}

	return caps
}

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	IsAlive bool   `json:"is_alive"`

	RespCh chan ResponseWrapper `json:"-"`
}

// Clue 是当前轮次内一条已被接受的线索
type Clue struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Clue       string `json:"clue"`
}

// PeacekeeperExchange 记录一次私密问答，进入新的提问阶段时整体覆盖
type PeacekeeperExchange struct {
	AskerID  string
	TargetID string
	Question string
	Answer   string
	Answered bool
	Revealed bool
}
