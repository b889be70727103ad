package main

import (
	"time"

	"mind-mayhem-be/internal/api/http"
	"mind-mayhem-be/internal/config"
	"mind-mayhem-be/internal/logger"
	"mind-mayhem-be/internal/service"
	"mind-mayhem-be/internal/state"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	roomSvc := service.NewRoomService(
		time.Duration(cfg.RoomExpiryMinutes) * time.Minute,
	)
	defer roomSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, roomSvc)

	// 启动服务器
	http.RunServer(appState)
}
