package fibersrv

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

// DatabaseProbe is the part of rds.Client the database routes need.
type DatabaseProbe interface {
	Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error)
	Stats() dbx.PoolStats
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	LatencyMs int64        `json:"latencyMs"`
	Error     string       `json:"error,omitempty"`
	Pool      dbx.PoolStats `json:"pool"`
}

// RegisterDatabaseRoutes exposes the pool occupancy on GET /stats and a database round trip on GET /health.
// A health check that can not get a connection answers 503.
func RegisterDatabaseRoutes(app *fiber.App, db DatabaseProbe) {
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(db.Stats())
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		start := time.Now()
		_, err := db.Query(c.UserContext(), "SELECT 1")

		resp := HealthResponse{
			Status:    "UP",
			LatencyMs: time.Since(start).Milliseconds(),
			Pool:      db.Stats(),
		}

		if err != nil {
			logx.GetLogger().LogWarning(c.UserContext(), "database health check failed", err)
			resp.Status = "DOWN"
			resp.Error = err.Error()

			status := fiber.StatusInternalServerError
			if errorx.IsPoolWaitTimeout(err) || errorx.IsGetConnectionError(err) {
				status = fiber.StatusServiceUnavailable
			}

			return c.Status(status).JSON(resp)
		}

		return c.JSON(resp)
	})
}
