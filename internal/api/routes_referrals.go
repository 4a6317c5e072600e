package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dstarenko/storebot/internal/services"
	appErrors "github.com/dstarenko/storebot/pkg/errors"
	"github.com/dstarenko/storebot/pkg/response"
)

func registerReferralRoutes(group *gin.RouterGroup, referrals *services.ReferralService) {
	group.GET("/referrals/:id/chain", func(c *gin.Context) {
		chain, err := referrals.AncestorChain(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, referralError(err))
			return
		}
		response.Success(c, http.StatusOK, gin.H{"chain": chain})
	})

	group.GET("/referrals/:id/tree", func(c *gin.Context) {
		// Depth zero defers to the service default, which differs for
		// manager-rooted reports.
		depth := 0
		if raw := c.Query("depth"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				response.Error(c, appErrors.NewBadRequest("depth must be a positive integer"))
				return
			}
			depth = parsed
		}

		report, err := referrals.Subtree(c.Request.Context(), c.Param("id"), depth)
		if err != nil {
			response.Error(c, referralError(err))
			return
		}
		response.Success(c, http.StatusOK, report)
	})
}

func referralError(err error) error {
	if errors.Is(err, services.ErrUserNotFound) {
		return appErrors.ErrNotFound.WithInternal(err)
	}
	return appErrors.ErrInternalServer.WithInternal(err)
}
