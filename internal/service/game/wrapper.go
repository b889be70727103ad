package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 请求类型
const (
	REQ_JOIN_GAME       = "JoinGame"
	REQ_EXIT_GAME       = "ExitGame"
	REQ_START_GAME      = "StartGame"
	REQ_SUBMIT_CLUE     = "SubmitClue"
	REQ_ACTIVATE_MAYHEM = "ActivateMayhem"
	REQ_PEACE_QUERY     = "PeacekeeperQuery"
	REQ_PEACE_RESPONSE  = "PeacekeeperResponse"
	REQ_PEACE_REVEAL    = "PeacekeeperReveal"
	REQ_IMPOSTER_GUESS  = "ImposterGuess"
	REQ_VOTE            = "Vote"
	REQ_TIMEOUT         = "Timeout"
	REQ_SHUTDOWN        = "Shutdown"
)

// RequestWrapper 是状态机事件的统一信封
// 来自客户端的请求带 JSON Data，进程内部产生的事件带 NativeData
type RequestWrapper struct {
	ReqType    string          `json:"request_type"`
	Data       json.RawMessage `json:"data"`
	NativeData any             `json:"-"`
}

// tryUnwrap 先看 NativeData，再尝试反序列化 Data
func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	if wrapper.NativeData != nil {
		if req, ok := wrapper.NativeData.(*T); ok {
			return req
		}

		return nil
	}

	var req T

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"解析请求数据失败",
			zap.Error(err),
			zap.String("request_type", reqType),
		)
		return nil
	}

	return &req
}

// tryUnwrapNative 只认进程内部构造的事件，不尝试反序列化 Data
func tryUnwrapNative[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	req, ok := wrapper.NativeData.(*T)
	if !ok {
		return nil
	}

	return req
}

func TryUnwrapJoinGameRequest(wrapper RequestWrapper) *JoinGameRequest {
	return tryUnwrap[JoinGameRequest](wrapper, REQ_JOIN_GAME)
}

func TryUnwrapExitGameRequest(wrapper RequestWrapper) *ExitGameRequest {
	return tryUnwrap[ExitGameRequest](wrapper, REQ_EXIT_GAME)
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	return tryUnwrap[StartGameRequest](wrapper, REQ_START_GAME)
}

func TryUnwrapSubmitClueRequest(wrapper RequestWrapper) *SubmitClueRequest {
	return tryUnwrap[SubmitClueRequest](wrapper, REQ_SUBMIT_CLUE)
}

func TryUnwrapActivateMayhemRequest(wrapper RequestWrapper) *ActivateMayhemRequest {
	return tryUnwrap[ActivateMayhemRequest](wrapper, REQ_ACTIVATE_MAYHEM)
}

func TryUnwrapPeacekeeperQueryRequest(wrapper RequestWrapper) *PeacekeeperQueryRequest {
	return tryUnwrap[PeacekeeperQueryRequest](wrapper, REQ_PEACE_QUERY)
}

func TryUnwrapPeacekeeperResponseRequest(wrapper RequestWrapper) *PeacekeeperResponseRequest {
	return tryUnwrap[PeacekeeperResponseRequest](wrapper, REQ_PEACE_RESPONSE)
}

func TryUnwrapPeacekeeperRevealRequest(wrapper RequestWrapper) *PeacekeeperRevealRequest {
	return tryUnwrap[PeacekeeperRevealRequest](wrapper, REQ_PEACE_REVEAL)
}

func TryUnwrapImposterGuessRequest(wrapper RequestWrapper) *ImposterGuessRequest {
	return tryUnwrap[ImposterGuessRequest](wrapper, REQ_IMPOSTER_GUESS)
}

func TryUnwrapVoteRequest(wrapper RequestWrapper) *VoteRequest {
	return tryUnwrap[VoteRequest](wrapper, REQ_VOTE)
}

// Timeout 和 Shutdown 是进程内部事件
// 只接受 NativeData，客户端伪造的 JSON 载荷一律拒绝
func TryUnwrapTimeoutRequest(wrapper RequestWrapper) *TimeoutRequest {
	return tryUnwrapNative[TimeoutRequest](wrapper, REQ_TIMEOUT)
}

func TryUnwrapShutdownRequest(wrapper RequestWrapper) *ShutdownRequest {
	return tryUnwrapNative[ShutdownRequest](wrapper, REQ_SHUTDOWN)
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_JOIN_GAME           = "JoinGame"
	RESP_EXIT_GAME           = "ExitGame"
	RESP_ROOM_UPDATE         = "RoomUpdate"
	RESP_GAME_STARTED        = "GameStarted"
	RESP_ROLE_ASSIGNMENT     = "RoleAssignment"
	RESP_PHASE_CHANGE        = "PhaseChange"
	RESP_PHASE_TRANSITION    = "PhaseTransition"
	RESP_CLUE_UPDATE         = "ClueUpdate"
	RESP_CLUE_ERROR          = "ClueError"
	RESP_MAYHEM_WORD_CHANGED = "MayhemWordChanged"
	RESP_MAYHEM_ERROR        = "MayhemError"
	RESP_PEACE_PROMPT        = "PeacekeeperPrompt"
	RESP_PEACE_RECEIVED      = "PeacekeeperReceived"
	RESP_PEACE_REVEAL        = "PeacekeeperReveal"
	RESP_IMPOSTER_GUESS      = "ImposterGuess"
	RESP_VOTE_SUMMARY        = "VoteSummary"
	RESP_GAME_SUMMARY        = "GameSummary"
	RESP_GAME_OVER           = "GameOver"
	RESP_ANNOUNCEMENT        = "Announcement"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
