package notify

import (
	"context"
	"path/filepath"
	"testing"

	"go_edge_gateway/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeRegistry struct {
	broadcasts  []Command
	focusCalls  []string
	openCalls   []string
	focusResult bool
}

func (f *fakeRegistry) Broadcast(cmd Command) { f.broadcasts = append(f.broadcasts, cmd) }

func (f *fakeRegistry) Focus(targetURL string) bool {
	f.focusCalls = append(f.focusCalls, targetURL)
	return f.focusResult
}

func (f *fakeRegistry) Open(targetURL string) error {
	f.openCalls = append(f.openCalls, targetURL)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeRegistry) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateNotificationModels(db))
	registry := &fakeRegistry{}
	return NewDispatcher(db, registry, nil), registry
}

func TestBuildMergesDefaults(t *testing.T) {
	d, _ := newTestDispatcher(t)

	payload := d.Build([]byte(`{"title":"Price alert: ABC","tag":"alert-ABC","data":{"url":"/stock/ABC"}}`))

	assert.Equal(t, "Price alert: ABC", payload.Title)
	assert.Equal(t, "alert-ABC", payload.Tag)
	assert.Equal(t, "/stock/ABC", payload.URL)
	// Unset fields fall back to defaults.
	assert.Equal(t, DefaultBody, payload.Body)
	assert.Equal(t, DefaultIcon, payload.Icon)
	assert.Equal(t, DefaultBadge, payload.Badge)
}

func TestBuildDegradesMalformedPayloadToText(t *testing.T) {
	d, _ := newTestDispatcher(t)

	payload := d.Build([]byte("markets closed early today"))

	// Never dropped: the raw text becomes the body, the rest defaults.
	assert.Equal(t, "markets closed early today", payload.Body)
	assert.Equal(t, DefaultTitle, payload.Title)
	assert.Equal(t, DefaultTag, payload.Tag)
	assert.Equal(t, DefaultURL, payload.URL)
}

func TestDispatchPersistsAndBroadcasts(t *testing.T) {
	d, registry := newTestDispatcher(t)

	payload := Payload{Title: "Price alert: ABC", Body: "crossed", Tag: "alert-ABC", URL: "/stock/ABC"}
	require.NoError(t, d.Dispatch(context.Background(), payload))

	require.Len(t, registry.broadcasts, 1)
	assert.Equal(t, CommandNotification, registry.broadcasts[0].Type)

	records, err := d.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alert-ABC", records[0].Tag)
	assert.Equal(t, "/stock/ABC", records[0].TargetURL)
}

func TestDispatchSameTagReplacesRecord(t *testing.T) {
	d, _ := newTestDispatcher(t)

	require.NoError(t, d.Dispatch(context.Background(), Payload{Title: "first", Tag: "alert-ABC"}))
	require.NoError(t, d.Dispatch(context.Background(), Payload{Title: "second", Tag: "alert-ABC"}))

	records, err := d.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Title)
}

func TestClickDismissTouchesNoWindow(t *testing.T) {
	d, registry := newTestDispatcher(t)

	require.NoError(t, d.OnClick(context.Background(), ClickEvent{Tag: "alert-ABC", Action: ActionDismiss}))

	assert.Empty(t, registry.focusCalls)
	assert.Empty(t, registry.openCalls)
	// The notification itself is still closed.
	require.Len(t, registry.broadcasts, 1)
	assert.Equal(t, CommandNotificationClose, registry.broadcasts[0].Type)
}

func TestClickFocusesExistingWindow(t *testing.T) {
	d, registry := newTestDispatcher(t)
	registry.focusResult = true

	require.NoError(t, d.OnClick(context.Background(), ClickEvent{Tag: "alert-ABC", Action: "view", URL: "/stock/ABC"}))

	assert.Equal(t, []string{"/stock/ABC"}, registry.focusCalls)
	assert.Empty(t, registry.openCalls)
}

func TestClickOpensWhenNoWindowFocuses(t *testing.T) {
	d, registry := newTestDispatcher(t)
	registry.focusResult = false

	require.NoError(t, d.OnClick(context.Background(), ClickEvent{Tag: "alert-ABC", URL: "/stock/ABC"}))

	// Exactly one focus-or-open: focus was attempted, open completed it.
	assert.Equal(t, []string{"/stock/ABC"}, registry.focusCalls)
	assert.Equal(t, []string{"/stock/ABC"}, registry.openCalls)
}

func TestClickWithoutURLResolvesFromRecord(t *testing.T) {
	d, registry := newTestDispatcher(t)
	registry.focusResult = true

	require.NoError(t, d.Dispatch(context.Background(), Payload{Tag: "alert-XYZ", URL: "/stock/XYZ"}))
	registry.broadcasts = nil

	require.NoError(t, d.OnClick(context.Background(), ClickEvent{Tag: "alert-XYZ", Action: "view"}))
	assert.Equal(t, []string{"/stock/XYZ"}, registry.focusCalls)
}

func TestClickWithUnknownTagFallsBackToDefaultURL(t *testing.T) {
	d, registry := newTestDispatcher(t)
	registry.focusResult = true

	require.NoError(t, d.OnClick(context.Background(), ClickEvent{Tag: "alert-GONE"}))
	assert.Equal(t, []string{DefaultURL}, registry.focusCalls)
}
