package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Check is one dependency probed by Health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Health probes every check concurrently and answers 503 if any fails.
func Health(timeout time.Duration, checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		results := make([]string, len(checks))
		var g errgroup.Group
		for i, chk := range checks {
			g.Go(func() error {
				if err := chk.Ping(ctx); err != nil {
					results[i] = "down"
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		err := g.Wait()

		status := gin.H{}
		for i, chk := range checks {
			status[chk.Name] = results[i]
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, envelope{Body: status, Msg: "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, envelope{Success: true, Body: status, Msg: "ok"})
	}
}
