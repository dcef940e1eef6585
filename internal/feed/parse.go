package feed

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"preheat_scheduler/internal/models"

	ical "github.com/arran4/golang-ical"
)

const icsDateLayout = "20060102"

// Summaries channel managers use for nights that are not a stay.
var blockedSummaries = []string{"blocked", "not available", "unavailable"}

// Parse turns an iCal body into reservations. DTSTART and DTEND give the
// check-in and check-out dates; their time of day and zone are dropped.
// Events without a usable UID or dates are skipped.
func Parse(body []byte, propertyName string) ([]models.Reservation, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]models.Reservation, 0)
	for _, ev := range cal.Events() {
		r, ok := reservationFrom(ev, propertyName)
		if !ok {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func reservationFrom(ev *ical.VEvent, propertyName string) (models.Reservation, bool) {
	uid := ev.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return models.Reservation{}, false
	}
	if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil && isBlocked(p.Value) {
		return models.Reservation{}, false
	}

	checkIn, err := propDate(ev, ical.ComponentPropertyDtStart)
	if err != nil {
		return models.Reservation{}, false
	}
	checkOut, err := propDate(ev, ical.ComponentPropertyDtEnd)
	if err != nil || checkOut.Before(checkIn) {
		return models.Reservation{}, false
	}

	return models.Reservation{
		ID:           uid.Value,
		PropertyName: propertyName,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
	}, true
}

// propDate reads the calendar date of a DATE or DATE-TIME property.
func propDate(ev *ical.VEvent, prop ical.ComponentProperty) (time.Time, error) {
	p := ev.GetProperty(prop)
	if p == nil {
		return time.Time{}, fmt.Errorf("missing %s", prop)
	}
	v := strings.TrimSpace(p.Value)
	if len(v) < len(icsDateLayout) {
		return time.Time{}, fmt.Errorf("bad %s value %q", prop, v)
	}
	return time.Parse(icsDateLayout, v[:len(icsDateLayout)])
}

func isBlocked(summary string) bool {
	s := strings.ToLower(summary)
	for _, b := range blockedSummaries {
		if strings.Contains(s, b) {
			return true
		}
	}
	return false
}
