package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()

	m.SeekCompleted("seek", "ok")
	m.SeekCompleted("seek", "ok")
	m.SeekCompleted("chapter-change", "conflict")
	m.PreloadEvent("evicted")
	m.SetPreloadEntries(2)
	m.RemoteCommand("play", "ok")

	body := scrape(t, m)
	for _, want := range []string{
		`quire_seeks_total{operation="seek",result="ok"} 2`,
		`quire_seeks_total{operation="chapter-change",result="conflict"} 1`,
		`quire_preload_events_total{event="evicted"} 1`,
		`quire_preload_entries 2`,
		`quire_remote_commands_total{command="play",outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestRegistryIsPrivate(t *testing.T) {
	a, b := New(), New()
	a.RemoteCommand("pause", "ok")

	if strings.Contains(scrape(t, b), `command="pause"`) {
		t.Error("metrics leaked between registries")
	}
	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no families")
	}
}
