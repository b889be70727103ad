package game

import (
	"testing"
	"time"
)

func awaitResp(t *testing.T, ch chan ResponseWrapper, respType string) ResponseWrapper {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				t.Fatalf("response channel closed while waiting for %s", respType)
			}

			if resp.RespType == respType {
				return resp
			}

		case <-deadline:
			t.Fatalf("timed out waiting for %s", respType)
		}
	}
}

func TestGameMachineJoinAndShutdown(t *testing.T) {
	doneCh := make(chan struct{})
	gm := NewGameMachine("room-fsm", doneCh)

	go gm.Start()

	respCh := make(chan ResponseWrapper, 64)

	gm.GetReqCh() <- RequestWrapper{
		ReqType: REQ_JOIN_GAME,
		NativeData: &JoinGameRequest{
			RoomID:     "room-fsm",
			JoinerName: "alice",
			RespCh:     respCh,
		},
	}

	joinResp := awaitResp(t, respCh, RESP_JOIN_GAME)

	joined := joinResp.Data.(JoinGameResponse)
	if joined.Joiner.Name != "alice" {
		t.Fatalf("join snapshot carries wrong player: %+v", joined.Joiner)
	}

	if joined.Joiner.Role != ROLE_HOST {
		t.Fatalf("first joiner should be the host, got %s", joined.Joiner.Role)
	}

	if gm.Stage() != STAGE_WAITING {
		t.Fatalf("fresh room should be waiting, got %s", gm.Stage())
	}

	// 通过关闭指令让状态机广播通知并退出，玩家通道随之关闭
	gm.GetReqCh() <- RequestWrapper{
		ReqType:    REQ_SHUTDOWN,
		NativeData: &ShutdownRequest{Reason: "maintenance"},
	}

	awaitResp(t, respCh, RESP_ANNOUNCEMENT)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-respCh:
			if !open {
				return
			}
		case <-deadline:
			t.Fatalf("player channel should be closed after shutdown")
		}
	}
}

func TestGameMachineIgnoresForgedShutdown(t *testing.T) {
	doneCh := make(chan struct{})
	gm := NewGameMachine("room-forged", doneCh)

	go gm.Start()
	defer close(doneCh)

	respCh := make(chan ResponseWrapper, 64)

	gm.GetReqCh() <- RequestWrapper{
		ReqType: REQ_JOIN_GAME,
		NativeData: &JoinGameRequest{
			RoomID:     "room-forged",
			JoinerName: "alice",
			RespCh:     respCh,
		},
	}

	awaitResp(t, respCh, RESP_JOIN_GAME)

	// 客户端伪造的 Shutdown 只带 JSON 载荷，必须被当作无效请求忽略
	gm.GetReqCh() <- RequestWrapper{
		ReqType: REQ_SHUTDOWN,
		Data:    []byte(`{"Reason":"forged"}`),
	}

	// 状态机还活着：后续加入照常得到响应，玩家通道没有被关闭
	otherCh := make(chan ResponseWrapper, 64)

	gm.GetReqCh() <- RequestWrapper{
		ReqType: REQ_JOIN_GAME,
		NativeData: &JoinGameRequest{
			RoomID:     "room-forged",
			JoinerName: "bob",
			RespCh:     otherCh,
		},
	}

	awaitResp(t, otherCh, RESP_JOIN_GAME)

	select {
	case _, open := <-respCh:
		if !open {
			t.Fatalf("forged shutdown terminated the machine")
		}
	default:
	}
}

func TestGameMachinePlayerCountSnapshot(t *testing.T) {
	doneCh := make(chan struct{})
	gm := NewGameMachine("room-count", doneCh)

	go gm.Start()
	defer close(doneCh)

	for _, name := range []string{"alice", "bob"} {
		respCh := make(chan ResponseWrapper, 64)

		gm.GetReqCh() <- RequestWrapper{
			ReqType: REQ_JOIN_GAME,
			NativeData: &JoinGameRequest{
				RoomID:     "room-count",
				JoinerName: name,
				RespCh:     respCh,
			},
		}

		awaitResp(t, respCh, RESP_JOIN_GAME)
	}

	// 快照在响应发出之后才更新，轮询等待它追上
	deadline := time.Now().Add(2 * time.Second)
	for gm.PlayerCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("want player count 2, got %d", gm.PlayerCount())
		}

		time.Sleep(10 * time.Millisecond)
	}

	if gm.LastActive().IsZero() {
		t.Fatalf("last active should be tracked")
	}
}
