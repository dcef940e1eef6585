package handlers

import (
	"errors"
	"net/http"

	"preheat_scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      List device rooms
// @Tags         rooms
// @Produce      json
// @Param        home_id  path      string  true  "Thermostat site id"
// @Success      200      {object}  map[string]interface{}  "count, rooms"
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /api/v1/rooms/{home_id} [get]
// @Security     BearerAuth
func (h *Handler) listRooms(c *gin.Context) {
	if _, ok := userID(c); !ok {
		return
	}
	homeID := c.Param("home_id")
	rooms, err := h.services.Generator.Rooms(c.Request.Context(), homeID)
	if errors.Is(err, service.ErrValidation) {
		h.respondServiceError(c, "rooms_list_failed", err)
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "failed to list rooms", "rooms_list_failed", err, "home_id", homeID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rooms), "rooms": rooms})
}
