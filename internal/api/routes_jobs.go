package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dstarenko/storebot/internal/fulfillment"
	appErrors "github.com/dstarenko/storebot/pkg/errors"
	"github.com/dstarenko/storebot/pkg/response"
)

// triggerRequest optionally restricts the invite sender to a user subset.
type triggerRequest struct {
	UserIDs []string `json:"user_ids"`
}

func registerJobRoutes(group *gin.RouterGroup, runner *fulfillment.Runner) {
	group.POST("/jobs/:name/run", func(c *gin.Context) {
		var req triggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.Error(c, appErrors.NewBadRequest("invalid request body"))
				return
			}
		}

		var (
			processed int
			err       error
		)

		switch c.Param("name") {
		case "invites":
			processed, err = runner.SendPendingInvites(c.Request.Context(), req.UserIDs...)
		case "carts":
			processed, err = runner.ReapIdleCarts(c.Request.Context())
		case "sweep":
			processed, err = runner.SweepExpiredInvites(c.Request.Context())
		default:
			response.Error(c, appErrors.NewBadRequest("unknown job name"))
			return
		}

		if err != nil {
			response.Error(c, appErrors.Wrap(err, "job run failed"))
			return
		}

		response.Success(c, http.StatusOK, gin.H{"processed": processed})
	})
}
