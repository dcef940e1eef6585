package handlers

import (
	"net/http"

	"preheat_scheduler/internal/models"

	"github.com/gin-gonic/gin"
)

// ScenarioRequest is an exported model for Swagger docs of the scenario payload.
type ScenarioRequest struct {
	// relative | absolute
	PreheatMode string `json:"preheat_mode,omitempty" example:"relative"`
	// Lead time before arrival, used in relative mode (minimum 5)
	PreheatMinutes int `json:"preheat_minutes,omitempty" example:"240"`
	// Fixed start on the arrival day, used in absolute mode
	HeatStartTime string `json:"heat_start_time_of_day,omitempty" example:"13:00"`
	ArrivalTime   string `json:"arrival_time_of_day,omitempty" example:"15:00"`
	// Celsius, 5..30
	ArrivalTargetTemp float64 `json:"arrival_target_temp,omitempty" example:"20"`
	EcoTime           string  `json:"eco_time_of_day,omitempty" example:"10:00"`
	EcoTargetTemp     float64 `json:"eco_target_temp,omitempty" example:"16"`
}

// @Summary      Get preheat scenario
// @Description  Returns the stored scenario or the defaults when none was saved.
// @Tags         scenario
// @Produce      json
// @Success      200  {object}  models.ScenarioConfig
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/scenario [get]
// @Security     BearerAuth
func (h *Handler) getScenario(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	sc, err := h.services.Scenario.Get(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, "scenario_get_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// @Summary      Save preheat scenario
// @Description  Partial update; omitted fields keep their stored values.
// @Tags         scenario
// @Accept       json
// @Produce      json
// @Param        body  body      ScenarioRequest  true  "Scenario fields to change"
// @Success      200   {object}  models.ScenarioConfig
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/scenario [put]
// @Security     BearerAuth
func (h *Handler) saveScenario(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var patch models.ScenarioPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	sc, err := h.services.Scenario.Save(c.Request.Context(), uid, patch)
	if err != nil {
		h.respondServiceError(c, "scenario_save_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, sc)
}
