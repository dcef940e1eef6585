package thermostat

import (
	"context"
	"fmt"
	"strconv"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"

	"github.com/go-resty/resty/v2"
)

// HTTPAdapter talks to a Netatmo-style energy REST API. setroomthermpoint
// sets absolute room state, so repeating a call is harmless.
type HTTPAdapter struct {
	client *resty.Client
	log    *logger.Logger
}

type vendorResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type homesDataResponse struct {
	vendorResponse
	Body struct {
		Homes []struct {
			ID    string `json:"id"`
			Rooms []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"rooms"`
		} `json:"homes"`
	} `json:"body"`
}

func NewHTTPAdapter(cfg config.HTTPDriver, log *logger.Logger) *HTTPAdapter {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPAdapter{client: client, log: log}
}

func (a *HTTPAdapter) Apply(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	form := map[string]string{
		"home_id": cmd.SiteID,
		"room_id": cmd.RoomID,
		"mode":    cmd.Mode,
	}
	if cmd.Temp != nil {
		form["temp"] = strconv.FormatFloat(*cmd.Temp, 'f', -1, 64)
	}
	if cmd.ExpiresAt != nil {
		form["endtime"] = strconv.FormatInt(cmd.ExpiresAt.Unix(), 10)
	}

	var out vendorResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&out).
		Post("/setroomthermpoint")
	if err != nil {
		return fmt.Errorf("setroomthermpoint %s/%s: %w", cmd.SiteID, cmd.RoomID, err)
	}
	if resp.IsError() || out.Status != "ok" {
		return fmt.Errorf("setroomthermpoint %s/%s: %s", cmd.SiteID, cmd.RoomID, describe(resp, out))
	}

	a.log.Debugw("thermostat_command_sent", "home_id", cmd.SiteID, "room_id", cmd.RoomID, "mode", cmd.Mode)
	return nil
}

func (a *HTTPAdapter) Rooms(ctx context.Context, homeID string) ([]models.SiteRoom, error) {
	var out homesDataResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("home_id", homeID).
		SetResult(&out).
		SetError(&out).
		Get("/homesdata")
	if err != nil {
		return nil, fmt.Errorf("homesdata %s: %w", homeID, err)
	}
	if resp.IsError() || out.Status != "ok" {
		return nil, fmt.Errorf("homesdata %s: %s", homeID, describe(resp, out.vendorResponse))
	}

	rooms := make([]models.SiteRoom, 0)
	for _, h := range out.Body.Homes {
		if h.ID != homeID {
			continue
		}
		for _, r := range h.Rooms {
			rooms = append(rooms, models.SiteRoom{HomeID: h.ID, ID: r.ID, Name: r.Name})
		}
	}
	return rooms, nil
}

func describe(resp *resty.Response, out vendorResponse) string {
	if out.Error != nil && out.Error.Message != "" {
		return fmt.Sprintf("vendor error %d: %s", out.Error.Code, out.Error.Message)
	}
	return fmt.Sprintf("unexpected response %s (status %q)", resp.Status(), out.Status)
}
