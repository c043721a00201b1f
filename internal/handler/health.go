package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness probe used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready reports whether the database answers.  Redis is optional, so its
// state is reported without failing the probe.
func Ready(db *sql.DB, rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		out := echo.Map{"database": "ok", "redis": "disabled"}
		status := http.StatusOK
		if db == nil || db.PingContext(ctx) != nil {
			out["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			out["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				out["redis"] = "down"
			}
		}
		return c.JSON(status, out)
	}
}
