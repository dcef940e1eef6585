// Package feed reads upcoming reservations from channel-manager iCal exports.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
)

// ErrUnknownRoom is returned when no source is configured for a logical room.
var ErrUnknownRoom = errors.New("no reservation feed for room")

// Feed serves reservations per logical room. Calendar bodies are cached per
// URL so that repeated generation requests do not hammer the channel manager.
type Feed struct {
	client  *resty.Client
	cache   *cache.Cache
	sources map[string]config.FeedSource
	window  time.Duration
	log     *logger.Logger
}

func New(cfg config.FeedConfig, log *logger.Logger) *Feed {
	sources := make(map[string]config.FeedSource, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources[s.UserRoomID] = s
	}
	return &Feed{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(2).
			SetHeader("Accept", "text/calendar"),
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		sources: sources,
		window:  time.Duration(cfg.WindowDays) * 24 * time.Hour,
		log:     log.With("component", "feed"),
	}
}

// Window returns the forward-looking range starting at now.
func (f *Feed) Window(now time.Time) (time.Time, time.Time) {
	return now, now.Add(f.window)
}

// Upcoming returns the room's reservations overlapping [from, to], ordered by check-in.
func (f *Feed) Upcoming(ctx context.Context, userRoomID string, from, to time.Time) ([]models.Reservation, error) {
	src, ok := f.sources[userRoomID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRoom, userRoomID)
	}
	body, err := f.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	all, err := Parse(body, src.PropertyName)
	if err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", userRoomID, err)
	}
	return Between(all, from, to), nil
}

func (f *Feed) fetch(ctx context.Context, src config.FeedSource) ([]byte, error) {
	if cached, found := f.cache.Get(src.URL); found {
		return cached.([]byte), nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %s: %w", src.UserRoomID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch feed for %s: %s", src.UserRoomID, resp.Status())
	}

	body := resp.Body()
	f.cache.Set(src.URL, body, cache.DefaultExpiration)
	f.log.Infow("feed_fetched", "user_room_id", src.UserRoomID, "bytes", len(body))
	return body, nil
}

// Between keeps reservations that overlap [from, to] on the calendar.
func Between(rs []models.Reservation, from, to time.Time) []models.Reservation {
	out := make([]models.Reservation, 0, len(rs))
	for _, r := range rs {
		if r.CheckOut.Before(dateOf(from)) {
			continue
		}
		if !to.IsZero() && r.CheckIn.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
