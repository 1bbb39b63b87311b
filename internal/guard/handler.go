package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	guard *Guard
}

func NewHandler(g *Guard) *Handler {
	return &Handler{guard: g}
}

// @Summary      List security events
// @Description  Admin-only: recent rate limit trips and failed human checks, newest first
// @Tags         admin,security
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} guard.Event
// @Failure      401 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Router       /admin/security/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	c.JSON(http.StatusOK, h.guard.Events())
}
