package fibersrv

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-txscope/pkg/configx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/serverx"
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config configx.Config
}

// NewFiberServer - Fiber server constructor.
func NewFiberServer(config configx.Config) serverx.Server[*fiber.App] {
	return &FiberServer{fiber.New(buildFiberConfig(config)), config}
}

func buildFiberConfig(config configx.Config) fiber.Config {
	fiberConfig := fiber.Config{
		AppName:       config.GetServiceName(),
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
	}

	if serverConfig := config.GetServerConfig(); serverConfig != nil {
		fiberConfig.Concurrency = serverConfig.Concurrency
		fiberConfig.DisableStartupMessage = serverConfig.DisableStartupMessage
	}

	return fiberConfig
}

// GetServer - return the fiber server.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - Run the server sync.
func (srv *FiberServer) RunSync() {
	if srv.Server != nil {
		runServer(srv)
	}
}

// RunAsync - Run the server async.
func (srv *FiberServer) RunAsync() {
	if srv.Server != nil {
		go func() {
			runServer(srv)
		}()
	}
}

// Setup - Receive a callback function setupFunc that let to configure the server.
func (srv *FiberServer) Setup(ctx context.Context, setupFunc func(fiber *fiber.App)) {
	if srv.Server != nil {
		setupFunc(srv.Server)
	}
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if srv.Server != nil {
		if err := srv.Server.ShutdownWithContext(ctx); err != nil {
			logx.GetLogger().LogError(ctx, "Error shutting down the Server", err)
		} else {
			logx.GetLogger().LogInfo(ctx, "Server shut down.. ")
		}
	}
}

func runServer(srv *FiberServer) {
	port := "8080"
	if serverConfig := srv.config.GetServerConfig(); serverConfig != nil && serverConfig.Port != "" {
		port = serverConfig.Port
	}

	if err := srv.Server.Listen(fmt.Sprintf(":%s", port)); err != nil {
		logx.GetLogger().LogPanic(context.TODO(), "Oops... server is not running! error:", err)
	}
}
