package instance

import "testing"

func TestGetIDPrefersExplicitInstanceID(t *testing.T) {
	t.Setenv("HERA_INSTANCE_ID", "publisher-3")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := GetID("worker-0"); got != "publisher-3" {
		t.Fatalf("expected publisher-3, got %q", got)
	}
}

func TestGetIDFallsBackToHostname(t *testing.T) {
	t.Setenv("HERA_INSTANCE_ID", "  ")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := GetID("worker-0"); got != "pod-abc" {
		t.Fatalf("expected pod-abc, got %q", got)
	}
}

func TestGetIDDefault(t *testing.T) {
	t.Setenv("HERA_INSTANCE_ID", "")
	t.Setenv("HOSTNAME", "")
	if got := GetID("worker-0"); got != "worker-0" {
		t.Fatalf("expected worker-0, got %q", got)
	}
}
