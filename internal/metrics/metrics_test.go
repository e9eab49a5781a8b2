// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/modkit/modkit/internal/registry"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.InstallFinished("")
	m.InstallFinished("")
	m.InstallFinished("security")
	m.UpdateChecked("update-available")

	if got := testutil.ToFloat64(m.Installs.WithLabelValues(InstallSucceeded)); got != 2 {
		t.Errorf("ok installs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Installs.WithLabelValues("security")); got != 1 {
		t.Errorf("security installs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpdateChecks.WithLabelValues("update-available")); got != 1 {
		t.Errorf("update checks = %v, want 1", got)
	}

	m.OperationStarted()
	m.OperationStarted()
	m.OperationFinished()
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestMetrics_ObserveSnapshot(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveSnapshot(registry.Snapshot{
		Generation: 7,
		Conflicts: []registry.Conflict{
			{Kind: registry.ConflictDuplicate, ID: "a"},
			{Kind: registry.ConflictDuplicate, ID: "b"},
			{Kind: registry.ConflictCycle, ID: "c"},
		},
	})
	if got := testutil.ToFloat64(m.Conflicts.WithLabelValues(string(registry.ConflictDuplicate))); got != 2 {
		t.Errorf("duplicates = %v, want 2", got)
	}

	m.ObserveSnapshot(registry.Snapshot{Generation: 8})
	if got := testutil.ToFloat64(m.Conflicts.WithLabelValues(string(registry.ConflictDuplicate))); got != 0 {
		t.Errorf("duplicates after resolve = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.RegistryGeneration); got != 8 {
		t.Errorf("generation = %v, want 8", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.InstallFinished("")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `modkit_installs_total{kind="ok"} 1`) {
		t.Errorf("exposition missing install counter:\n%s", body)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "modkit_operations_in_flight"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}
