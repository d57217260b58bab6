package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/flux/pkg/onboarding"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/skill"
	"github.com/odvcencio/flux/pkg/telemetry"
)

// fakeOS is a mutable table of statuses that records grant requests.
type fakeOS struct {
	mu        sync.Mutex
	statuses  map[string]permission.Status
	requested []string
}

func (f *fakeOS) set(p permission.Permission, status permission.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[p.Key()] = status
}

func (f *fakeOS) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func (f *fakeOS) caps() permission.Capabilities {
	c := permission.CapabilityFuncs{
		Query: func(_ context.Context, p permission.Permission) (permission.Status, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if s, ok := f.statuses[p.Key()]; ok {
				return s, nil
			}
			return permission.StatusDenied, nil
		},
		Request: func(_ context.Context, p permission.Permission) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.requested = append(f.requested, p.Key())
			return nil
		},
	}
	caps := permission.Capabilities{}
	for _, kind := range permission.Kinds {
		caps[kind] = c
	}
	return caps
}

type fixture struct {
	os     *fakeOS
	hub    *telemetry.Hub
	flow   *onboarding.Flow
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := telemetry.NewHub()
	t.Cleanup(hub.Close)

	osState := &fakeOS{statuses: map[string]permission.Status{}}
	tracker := permission.New(onboarding.DefaultPermissions, osState.caps(),
		permission.WithHub(hub), permission.WithScope(onboarding.Scope))
	flow := onboarding.New(tracker, nil, onboarding.WithHub(hub), onboarding.WithInterval(10*time.Millisecond))

	registry := skill.NewRegistry(skill.WithDirs(t.TempDir(), ""), skill.WithHub(hub))
	require.NoError(t, registry.LoadAll())

	srv := NewServer(ServerConfig{
		Onboarding:   flow,
		Skills:       registry,
		Capabilities: osState.caps(),
		PollInterval: 10 * time.Millisecond,
		Hub:          hub,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(flow.End)
	t.Cleanup(srv.closeSheets)

	return &fixture{os: osState, hub: hub, flow: flow, server: ts}
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGetPermissionsBeforePoll(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/v1/permissions")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decode[permission.Snapshot](t, body)
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, permission.Accessibility, snap.Entries[0].Permission)
	for _, entry := range snap.Entries {
		assert.Equal(t, permission.StatusUnknown, entry.Status)
	}
	assert.False(t, snap.AllGranted)
	assert.Zero(t, snap.Polls)
}

func TestPollPermissions(t *testing.T) {
	f := newFixture(t)
	f.os.set(permission.Accessibility, permission.StatusGranted)

	resp, body := f.do(t, http.MethodPost, "/v1/permissions/poll")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[PollResponse](t, body)
	assert.True(t, out.Applied)
	assert.Equal(t, 1, out.Snapshot.Polls)
	assert.Equal(t, permission.StatusGranted, out.Snapshot.Entries[0].Status)
	assert.Equal(t, permission.StatusDenied, out.Snapshot.Entries[1].Status)
}

func TestRequestPermissionLeavesStatusAlone(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/permissions/microphone/request")
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	assert.Equal(t, []string{"microphone"}, f.os.requests())

	_, body = f.do(t, http.MethodGet, "/v1/permissions")
	snap := decode[permission.Snapshot](t, body)
	assert.Equal(t, permission.StatusUnknown, snap.Entries[2].Status)
}

func TestRequestPermissionErrors(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/permissions/bluetooth/request")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "PERMISSION_UNKNOWN", decode[errorResponse](t, body).Code)

	resp, body = f.do(t, http.MethodPost, "/v1/permissions/automation:com.apple.Music/request")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode[errorResponse](t, body).Message, "automation:com.apple.Music")

	assert.Empty(t, f.os.requests())
}

func TestCompleteOnboardingConflictThenForce(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/onboarding/complete")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decode[errorResponse](t, body)
	assert.Equal(t, "ONBOARDING_INCOMPLETE", errBody.Code)
	assert.NotEmpty(t, errBody.Context["missing"])

	resp, _ = f.do(t, http.MethodPost, "/v1/onboarding/complete?force=nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/v1/onboarding/complete?force=true")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	state := decode[onboarding.State](t, body)
	assert.False(t, state.Ready)
	assert.False(t, state.Polling)
}

func TestCompleteOnboardingWhenReady(t *testing.T) {
	f := newFixture(t)
	for _, p := range onboarding.DefaultPermissions {
		f.os.set(p, permission.StatusGranted)
	}

	resp, body := f.do(t, http.MethodPost, "/v1/onboarding/complete")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	state := decode[onboarding.State](t, body)
	assert.True(t, state.Ready)
	require.Len(t, state.Steps, 3)
	assert.Equal(t, "Accessibility", state.Steps[0].Title)
}

func TestBeginEndOnboarding(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/onboarding/begin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.flow.Tracker().Polling())
	require.Eventually(t, func() bool { return f.flow.Tracker().Snapshot().Polls > 0 }, time.Second, 5*time.Millisecond)

	resp, body := f.do(t, http.MethodPost, "/v1/onboarding/end")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[permission.Snapshot](t, body).Polling)
}

func TestResetOnboarding(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/v1/onboarding/reset")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[onboarding.State](t, body).Completed)
}

func TestSkills(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/v1/skills")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]SkillResponse](t, body)
	require.NotEmpty(t, list)
	assert.Equal(t, "dictation", list[0].Name)
	assert.Equal(t, []string{"microphone", "accessibility"}, list[0].Permissions)

	resp, body = f.do(t, http.MethodGet, "/v1/skills/music-dj")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[map[string]any](t, body)["content"], "Music")

	resp, body = f.do(t, http.MethodGet, "/v1/skills/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SKILL_NOT_FOUND", decode[errorResponse](t, body).Code)
}

func TestSkillPermissionSheetPollsOnce(t *testing.T) {
	f := newFixture(t)
	f.os.set(permission.Microphone, permission.StatusGranted)
	f.os.set(permission.Automation("com.apple.Music"), permission.StatusGranted)

	resp, body := f.do(t, http.MethodGet, "/v1/skills/music-dj/permissions")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	snap := decode[permission.Snapshot](t, body)
	assert.Equal(t, "skill:music-dj", snap.Scope)
	assert.Equal(t, 1, snap.Polls)
	assert.True(t, snap.AllGranted)
	assert.False(t, snap.Polling)

	resp, _ = f.do(t, http.MethodGet, "/v1/skills/nope/permissions")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestSkillPermission(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/automation:com.apple.Music/request")
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	out := decode[map[string]any](t, body)
	assert.Equal(t, "music-dj", out["skill"])
	assert.Equal(t, "automation:com.apple.Music", out["permission"])
	assert.Equal(t, []string{"automation:com.apple.Music"}, f.os.requests())

	resp, body = f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/screenRecording/request")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "PERMISSION_UNKNOWN", decode[errorResponse](t, body).Code)

	resp, body = f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/bluetooth/request")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/v1/skills/nope/permissions/microphone/request")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SKILL_NOT_FOUND", decode[errorResponse](t, body).Code)

	assert.Len(t, f.os.requests(), 1)
}

func TestSkillSheetBeginEnd(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/begin")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decode[permission.Snapshot](t, body).Polling)

	f.os.set(permission.Microphone, permission.StatusGranted)
	f.os.set(permission.Automation("com.apple.Music"), permission.StatusGranted)
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/v1/skills/music-dj/permissions")
		return decode[permission.Snapshot](t, body).AllGranted
	}, 2*time.Second, 20*time.Millisecond)

	resp, body = f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/end")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[permission.Snapshot](t, body)
	assert.False(t, snap.Polling)
	assert.True(t, snap.AllGranted)

	resp, _ = f.do(t, http.MethodPost, "/v1/skills/music-dj/permissions/end")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/skills/nope/permissions/begin")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/permissions/poll")

	resp, body := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "flux_permission_polls_total")
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/events?type=permission."
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello telemetry.Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, telemetry.EventType("connected"), hello.Type)

	f.hub.Publish(telemetry.Event{Type: telemetry.EventSkillsReloaded})
	f.os.set(permission.Accessibility, permission.StatusGranted)
	f.do(t, http.MethodPost, "/v1/permissions/poll")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := map[telemetry.EventType]int{}
	for seen[telemetry.EventPermissionPolled] == 0 {
		var event telemetry.Event
		require.NoError(t, conn.ReadJSON(&event))
		seen[event.Type]++
	}
	assert.Equal(t, 3, seen[telemetry.EventPermissionChanged])
	assert.Zero(t, seen[telemetry.EventSkillsReloaded])
}

func TestEventStreamRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMatches(t *testing.T) {
	assert.True(t, matches(nil, "anything"))
	assert.True(t, matches([]string{"skill.", "permission."}, "permission.changed"))
	assert.False(t, matches([]string{"onboarding."}, "permission.changed"))
	assert.Equal(t, []string{"a", "b"}, splitPrefixes(" a, ,b "))
}
