package websocket

import (
	"encoding/json"
	"time"

	"mind-mayhem-be/internal/service/game"
	"mind-mayhem-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// JoinGame 升级连接并把它接入房间的状态机：
// 首条消息必须是 JoinGame 请求，之后读协程把请求转发给状态机，
// 写协程把状态机的响应和心跳发回客户端
func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		// 带缓冲的响应通道，服务端可以先读到加入确认再交给写协程
		respCh := make(chan game.ResponseWrapper, 64)

		// 读取首次请求，获取房间号等必要参数
		_, msg, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error(
				"读取首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)
			return
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"解析首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)
			return
		}

		joinReq := game.TryUnwrapJoinGameRequest(wrapper)
		if joinReq == nil {
			zap.L().Error(
				"首次请求不是JoinGame类型",
				zap.String("client_ip", ctx.RemoteAddr()),
			)
			return
		}

		joinReq.RespCh = respCh

		// 找到房间状态机的请求通道
		reqCh, err := appState.RoomSvc.JoinRoom(joinReq.RoomID)
		if err != nil {
			zap.L().Warn(
				"加入房间失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.String("room_id", joinReq.RoomID),
				zap.Error(err),
			)

			conn.WriteJSON(game.WrapErrResponse("房间不存在"))
			return
		}

		select {
		case reqCh <- game.RequestWrapper{
			ReqType:    game.REQ_JOIN_GAME,
			NativeData: joinReq,
		}:
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"房间无法及时处理加入请求",
				zap.String("room_id", joinReq.RoomID),
			)
			return
		}

		// 等待加入确认响应，从中取得玩家ID
		var playerID string
		var playerName string

		select {
		case joinResp := <-respCh:
			if joinResp.RespType == game.RESP_JOIN_GAME {
				if respData, ok := joinResp.Data.(game.JoinGameResponse); ok {
					playerID = respData.Joiner.ID
					playerName = respData.Joiner.Name
				}

				// 把确认响应放回通道，交给写协程真正发出去
				select {
				case respCh <- joinResp:
				default:
					zap.L().Warn("无法回放加入响应")
				}
			} else {
				// 加入被拒绝（例如房间已满）
				conn.WriteJSON(joinResp)
				return
			}
		case <-time.After(3 * time.Second):
			zap.L().Error("等待加入响应超时", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		if playerID == "" {
			zap.L().Error("未能获取玩家ID", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		zap.L().Info(
			"玩家成功加入房间",
			zap.String("client_ip", ctx.RemoteAddr()),
			zap.String("room_id", joinReq.RoomID),
			zap.String("player_id", playerID),
			zap.String("player_name", playerName),
		)

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		clientIP := ctx.RemoteAddr()

		// 写入协程
		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					return

				case <-ticker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Error(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

				case resp, ok := <-respCh:
					// 通道已关闭说明状态机已经清理了这名玩家
					if !ok {
						return
					}

					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"发送消息失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}
				}
			}
		}()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			var wrapper game.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Error(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				respCh <- game.WrapErrResponse("无效的请求格式")

				continue
			}

			// 内部事件类型不接受来自客户端的伪造；
			// 退出请求只能退自己，改写成进程内部事件
			switch wrapper.ReqType {
			case game.REQ_SHUTDOWN, game.REQ_TIMEOUT:
				zap.L().Warn(
					"客户端尝试发送内部事件类型",
					zap.String("client_ip", clientIP),
					zap.String("player_id", playerID),
					zap.String("request_type", wrapper.ReqType),
				)

				respCh <- game.WrapErrResponse("不支持的请求类型")

				continue

			case game.REQ_EXIT_GAME:
				wrapper = game.RequestWrapper{
					ReqType: game.REQ_EXIT_GAME,
					NativeData: &game.ExitGameRequest{
						PlayerID: playerID,
						RespCh:   respCh,
					},
				}
			}

			select {
			case reqCh <- wrapper:
			default:
				zap.L().Error(
					"发送请求到游戏状态机失败：请求通道已满",
					zap.String("client_ip", clientIP),
				)

				respCh <- game.WrapErrResponse("房间繁忙，请稍后再试")
			}
		}

		// 读循环退出，表示客户端断开连接
		// 发送 ExitGame 请求通知状态机清理玩家
		zap.L().Info(
			"客户端连接断开，发送退出请求",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)

		exitWrapper := game.RequestWrapper{
			ReqType: game.REQ_EXIT_GAME,
			NativeData: &game.ExitGameRequest{
				PlayerID: playerID,
				RespCh:   respCh,
			},
		}

		select {
		case reqCh <- exitWrapper:
		default:
			zap.L().Warn(
				"发送退出请求失败：请求通道已满",
				zap.String("player_id", playerID),
			)
		}

		// 等待退出确认响应或超时
		select {
		case resp, ok := <-respCh:
			if !ok || resp.RespType == game.RESP_EXIT_GAME {
				zap.L().Info(
					"玩家退出完成",
					zap.String("player_id", playerID),
				)
			}
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"等待退出确认超时，强制退出",
				zap.String("player_id", playerID),
			)
		}
	}
}
