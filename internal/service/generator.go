package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/metrics"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"

	"github.com/google/uuid"
)

// Reasons a reservation produces no entries.
const (
	SkipPreheatInPast  = "preheat_in_past"
	SkipRoomUnresolved = "room_unresolved"
	SkipEmptyStay      = "eco_not_after_preheat"
)

// RoomMapping tells the generator where a logical room lives on the device
// side. An explicitly selected room wins over name matching against Rooms.
type RoomMapping struct {
	UserRoomID     string            `json:"user_room_id"`
	HomeID         string            `json:"home_id"`
	SelectedRoomID string            `json:"selected_room_id,omitempty"`
	ModuleID       string            `json:"module_id,omitempty"`
	Rooms          []models.SiteRoom `json:"rooms,omitempty"`
}

// Resolve returns the device room for a property name. Names are compared
// trimmed and case-insensitively: exact match first, then containment in
// either direction. The first room in Rooms order wins a tie.
func (m RoomMapping) Resolve(propertyName string) (string, bool) {
	if m.SelectedRoomID != "" {
		return m.SelectedRoomID, true
	}
	want := normalizeName(propertyName)
	if want == "" {
		return "", false
	}
	for _, r := range m.Rooms {
		if normalizeName(r.Name) == want {
			return r.ID, true
		}
	}
	for _, r := range m.Rooms {
		name := normalizeName(r.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, want) || strings.Contains(want, name) {
			return r.ID, true
		}
	}
	return "", false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Pair is the heat/stop couple produced for one stay. Heat.EndTime equals
// Stop.StartTime.
type Pair struct {
	Heat models.ScheduleEntry
	Stop models.ScheduleEntry
}

func (p Pair) Entries() []models.ScheduleEntry {
	return []models.ScheduleEntry{p.Heat, p.Stop}
}

// GenerateForReservation builds the pair for r. It returns a skip reason
// instead when the preheat start is not strictly after now, the stay is
// empty, or no device room matches.
func GenerateForReservation(r models.Reservation, sc models.ScenarioConfig, m RoomMapping, now time.Time, loc *time.Location) (Pair, string) {
	arrival := sc.ArrivalTime.Combine(r.CheckIn, loc)
	preheatStart := ComputePreheatStart(arrival, sc, loc)
	if !preheatStart.After(now) {
		return Pair{}, SkipPreheatInPast
	}
	eco := sc.EcoTime.Combine(r.CheckOut, loc)
	if !eco.After(preheatStart) {
		return Pair{}, SkipEmptyStay
	}
	roomID, ok := m.Resolve(r.PropertyName)
	if !ok {
		return Pair{}, SkipRoomUnresolved
	}
	return buildPair(sc.UserID, m, roomID, sc.ArrivalTargetTemp, preheatStart, eco, now), ""
}

func buildPair(userID int, m RoomMapping, roomID string, temp float64, start, eco, now time.Time) Pair {
	now = now.UTC()
	base := models.ScheduleEntry{
		UserID:       userID,
		UserRoomID:   m.UserRoomID,
		HomeID:       m.HomeID,
		TargetRoomID: roomID,
		ModuleID:     m.ModuleID,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	heat := base
	heat.ID = uuid.NewString()
	heat.Type = models.EntryHeat
	heat.Mode = models.ModeManual
	t := temp
	heat.Temp = &t
	heat.StartTime = start.UTC()
	end := eco.UTC()
	heat.EndTime = &end

	stop := base
	stop.ID = uuid.NewString()
	stop.Type = models.EntryStop
	stop.Mode = models.ModeHome
	stop.StartTime = eco.UTC()

	return Pair{Heat: heat, Stop: stop}
}

// ReservationSource is the read-only reservation feed.
type ReservationSource interface {
	Window(now time.Time) (time.Time, time.Time)
	Upcoming(ctx context.Context, userRoomID string, from, to time.Time) ([]models.Reservation, error)
}

// RoomLister lists the rooms a device site knows about.
type RoomLister interface {
	Rooms(ctx context.Context, homeID string) ([]models.SiteRoom, error)
}

// ManualTest is an operator-built stay used to exercise the generator
// without a live booking.
type ManualTest struct {
	Arrival        time.Time   `json:"arrival"`
	Departure      time.Time   `json:"departure"`
	PreheatMinutes int         `json:"preheat_minutes"`
	ArrivalTemp    float64     `json:"arrival_temp"`
	PropertyName   string      `json:"property_name,omitempty"`
	Room           RoomMapping `json:"room"`
}

type GeneratorService struct {
	scenarios *ScenarioService
	schedules repository.ScheduleRepo
	events    repository.EventRepo
	rooms     RoomLister
	feed      ReservationSource
	loc       *time.Location
	now       func() time.Time
	log       *logger.Logger
}

func NewGeneratorService(scenarios *ScenarioService, schedules repository.ScheduleRepo, events repository.EventRepo,
	rooms RoomLister, feed ReservationSource, loc *time.Location, log *logger.Logger) *GeneratorService {
	return &GeneratorService{
		scenarios: scenarios,
		schedules: schedules,
		events:    events,
		rooms:     rooms,
		feed:      feed,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

// Rooms lists the device rooms of a site.
func (s *GeneratorService) Rooms(ctx context.Context, homeID string) ([]models.SiteRoom, error) {
	if strings.TrimSpace(homeID) == "" {
		return nil, fmt.Errorf("%w: home_id is required", ErrValidation)
	}
	return s.rooms.Rooms(ctx, homeID)
}

// GenerateBulk turns reservations into entries with the user's scenario and
// persists them in one batch. Skipped reservations only lower the count.
func (s *GeneratorService) GenerateBulk(ctx context.Context, userID int, reservations []models.Reservation, m RoomMapping) (int, error) {
	if len(reservations) == 0 {
		return 0, nil
	}
	sc, err := s.scenarios.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	m, err = s.withSiteRooms(ctx, m)
	if err != nil {
		return 0, err
	}

	now := s.now()
	entries := make([]models.ScheduleEntry, 0, 2*len(reservations))
	for _, r := range reservations {
		pair, skip := GenerateForReservation(r, sc, m, now, s.loc)
		if skip != "" {
			metrics.SkippedReservationsTotal.WithLabelValues(skip).Inc()
			s.log.Debugw("reservation_skipped", "user_id", userID, "reservation_id", r.ID, "reason", skip)
			continue
		}
		entries = append(entries, pair.Entries()...)
	}

	if err := s.persist(ctx, userID, entries); err != nil {
		return 0, err
	}
	s.log.Infow("schedules_generated", "user_id", userID, "reservations", len(reservations), "entries", len(entries))
	return len(entries), nil
}

// GenerateFromFeed pulls the room's reservations for the forward window and
// runs GenerateBulk over them.
func (s *GeneratorService) GenerateFromFeed(ctx context.Context, userID int, m RoomMapping) (int, error) {
	if m.UserRoomID == "" {
		return 0, fmt.Errorf("%w: user_room_id is required", ErrValidation)
	}
	from, to := s.feed.Window(s.now())
	reservations, err := s.feed.Upcoming(ctx, m.UserRoomID, from, to)
	if err != nil {
		return 0, err
	}
	return s.GenerateBulk(ctx, userID, reservations, m)
}

// GenerateManualTest builds and persists one pair from operator instants.
// The preheat start must still be in the future.
func (s *GeneratorService) GenerateManualTest(ctx context.Context, userID int, in ManualTest) ([]models.ScheduleEntry, error) {
	if err := validateTemp("arrival_temp", in.ArrivalTemp); err != nil {
		return nil, err
	}
	m, err := s.withSiteRooms(ctx, in.Room)
	if err != nil {
		return nil, err
	}

	sc := models.ScenarioConfig{
		UserID:            userID,
		PreheatMode:       models.PreheatRelative,
		PreheatMinutes:    in.PreheatMinutes,
		ArrivalTargetTemp: in.ArrivalTemp,
	}
	now := s.now()
	start := ComputePreheatStart(in.Arrival, sc, s.loc)
	if !start.After(now) {
		return nil, fmt.Errorf("%w: %s", ErrValidation, SkipPreheatInPast)
	}
	if !in.Departure.After(start) {
		return nil, fmt.Errorf("%w: %s", ErrValidation, SkipEmptyStay)
	}
	roomID, ok := m.Resolve(in.PropertyName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidation, SkipRoomUnresolved)
	}

	entries := buildPair(userID, m, roomID, in.ArrivalTemp, start, in.Departure, now).Entries()
	if err := s.persist(ctx, userID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// withSiteRooms loads the site's rooms when name matching will be needed.
func (s *GeneratorService) withSiteRooms(ctx context.Context, m RoomMapping) (RoomMapping, error) {
	if m.SelectedRoomID != "" || len(m.Rooms) > 0 || m.HomeID == "" {
		return m, nil
	}
	rooms, err := s.rooms.Rooms(ctx, m.HomeID)
	if err != nil {
		return m, fmt.Errorf("list rooms of %s: %w", m.HomeID, err)
	}
	m.Rooms = rooms
	return m, nil
}

func (s *GeneratorService) persist(ctx context.Context, userID int, entries []models.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.schedules.InsertBatch(ctx, entries); err != nil {
		return err
	}
	metrics.GeneratedEntriesTotal.Add(float64(len(entries)))

	for _, e := range entries {
		appendEvent(ctx, s.events, s.log, models.ScheduleEvent{
			Type:        models.EventGenerated,
			UserID:      userID,
			EntryID:     e.ID,
			Description: fmt.Sprintf("%s entry for room %s at %s", e.Type, e.TargetRoomID, e.StartTime.Format(time.RFC3339)),
			Metadata:    entryMeta(e),
		})
	}
	return nil
}
