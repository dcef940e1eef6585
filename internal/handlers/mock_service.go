package handlers

import (
	"context"
	"net/http"
	"time"

	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockScenario struct {
	cfg       models.ScenarioConfig
	err       error
	lastUser  int
	lastPatch models.ScenarioPatch
	saveCalls int
}

func (m *mockScenario) Get(_ context.Context, userID int) (models.ScenarioConfig, error) {
	m.lastUser = userID
	return m.cfg, m.err
}
func (m *mockScenario) Save(_ context.Context, userID int, patch models.ScenarioPatch) (models.ScenarioConfig, error) {
	m.lastUser = userID
	m.lastPatch = patch
	m.saveCalls++
	return m.cfg, m.err
}

type mockGenerator struct {
	created int
	entries []models.ScheduleEntry
	rooms   []models.SiteRoom
	err     error

	bulkCalls        int
	feedCalls        int
	lastReservations []models.Reservation
	lastMapping      service.RoomMapping
	lastTest         service.ManualTest
	lastHome         string
}

func (m *mockGenerator) GenerateBulk(_ context.Context, _ int, rs []models.Reservation, rm service.RoomMapping) (int, error) {
	m.bulkCalls++
	m.lastReservations = rs
	m.lastMapping = rm
	return m.created, m.err
}
func (m *mockGenerator) GenerateFromFeed(_ context.Context, _ int, rm service.RoomMapping) (int, error) {
	m.feedCalls++
	m.lastMapping = rm
	return m.created, m.err
}
func (m *mockGenerator) GenerateManualTest(_ context.Context, _ int, in service.ManualTest) ([]models.ScheduleEntry, error) {
	m.lastTest = in
	return m.entries, m.err
}
func (m *mockGenerator) Rooms(_ context.Context, homeID string) ([]models.SiteRoom, error) {
	m.lastHome = homeID
	return m.rooms, m.err
}

type mockSchedules struct {
	entries []models.ScheduleEntry
	entry   models.ScheduleEntry
	err     error

	lastUser  int
	lastFrom  time.Time
	lastID    string
	lastPatch models.SchedulePatch
	deleted   []string
}

func (m *mockSchedules) List(_ context.Context, userID int, from time.Time) ([]models.ScheduleEntry, error) {
	m.lastUser = userID
	m.lastFrom = from
	return m.entries, m.err
}
func (m *mockSchedules) Update(_ context.Context, userID int, id string, p models.SchedulePatch) (models.ScheduleEntry, error) {
	m.lastUser = userID
	m.lastID = id
	m.lastPatch = p
	return m.entry, m.err
}
func (m *mockSchedules) Delete(_ context.Context, userID int, id string) error {
	m.lastUser = userID
	m.lastID = id
	if m.err == nil {
		m.deleted = append(m.deleted, id)
	}
	return m.err
}

type mockExecutor struct {
	result    service.RunResult
	entry     models.ScheduleEntry
	err       error
	lastScope service.RunScope
	lastID    string
	runCalls  int
}

func (m *mockExecutor) RunOnce(_ context.Context, scope service.RunScope) (service.RunResult, error) {
	m.runCalls++
	m.lastScope = scope
	return m.result, m.err
}
func (m *mockExecutor) ApplyNow(_ context.Context, _ int, id string) (models.ScheduleEntry, error) {
	m.lastID = id
	return m.entry, m.err
}
func (m *mockExecutor) Run(ctx context.Context, _ time.Duration) { <-ctx.Done() }

type mockStatus struct {
	status   service.ScheduleStatus
	err      error
	lastUser int
}

func (m *mockStatus) GetStatus(_ context.Context, userID int) (service.ScheduleStatus, error) {
	m.lastUser = userID
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.ScheduleEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastUser int
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ScheduleEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastUser = f.UserID
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, "")
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
