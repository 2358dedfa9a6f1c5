package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"fleetscope/internal/config"
)

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	rate, burst := 1000.0, 100
	cfg.Fetch = &config.FetchOverride{RatePerSecond: &rate, Burst: &burst}
	return cfg
}

func TestSessionFromFixture(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sess, err := newSession(fastConfig(), "", sessionOptions{Fixture: "testdata/org.yaml"}, logger)
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	defer sess.Close()

	if diff := cmp.Diff([]string{"549236"}, sess.Organizations()); diff != "" {
		t.Errorf("organizations mismatch (-want +got):\n%s", diff)
	}

	report, err := sess.Run(context.Background(), "549236")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Graph.EdgeCount() == 0 {
		t.Error("expected a non-empty topology")
	}

	if _, err := sess.Run(context.Background(), "999"); err == nil {
		t.Error("expected error for an organization outside the session")
	}
}

func TestSessionOrgFlagOverridesFixture(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sess, err := newSession(fastConfig(), "", sessionOptions{
		Fixture: "testdata/org.yaml",
		Orgs:    []string{"1", "2"},
	}, logger)
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	defer sess.Close()

	if diff := cmp.Diff([]string{"1", "2"}, sess.Organizations()); diff != "" {
		t.Errorf("organizations mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionFromAPIKey(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := fastConfig()
	cfg.Dashboard.APIKey = "secret"
	cfg.Organizations = []string{"10", "20", "10"}

	sess, err := newSession(cfg, "", sessionOptions{}, logger)
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	defer sess.Close()

	if diff := cmp.Diff([]string{"10", "20"}, sess.Organizations()); diff != "" {
		t.Errorf("duplicate organizations should collapse (-want +got):\n%s", diff)
	}
}

func TestSessionWithoutCredentials(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	logger, _ := test.NewNullLogger()
	if _, err := newSession(fastConfig(), "", sessionOptions{}, logger); err == nil {
		t.Error("expected error without api key or credentials file")
	}
}

func TestReloaderRebuildsWhenStale(t *testing.T) {
	logger, _ := test.NewNullLogger()
	builds := 0
	failNext := false
	r, err := newReloader(func() (*session, error) {
		builds++
		if failNext {
			return nil, errors.New("broken fixture")
		}
		return newSession(fastConfig(), "", sessionOptions{Fixture: "testdata/org.yaml"}, logger)
	})
	if err != nil {
		t.Fatalf("newReloader failed: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	first := r.current
	if _, err := r.Run(ctx, "549236"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if builds != 1 {
		t.Errorf("builds = %d, want 1 before Invalidate", builds)
	}

	r.Invalidate()
	if _, err := r.Run(ctx, "549236"); err != nil {
		t.Fatalf("Run after Invalidate failed: %v", err)
	}
	if builds != 2 || r.current == first {
		t.Errorf("expected a fresh session after Invalidate (builds = %d)", builds)
	}

	failNext = true
	kept := r.current
	r.Invalidate()
	if _, err := r.Run(ctx, "549236"); err != nil {
		t.Fatalf("Run should fall back to the previous session: %v", err)
	}
	if r.current != kept {
		t.Error("failed rebuild must keep the previous session")
	}
}

func TestPerOrgPath(t *testing.T) {
	tests := []struct {
		path, org, want string
	}{
		{"report.json", "42", "report-42.json"},
		{"out/report.yaml", "7", "out/report-7.yaml"},
		{"report", "1", "report-1"},
	}
	for _, tt := range tests {
		if got := perOrgPath(tt.path, tt.org); got != tt.want {
			t.Errorf("perOrgPath(%q, %q) = %q, want %q", tt.path, tt.org, got, tt.want)
		}
	}
}

// chdir changes the working directory for the duration of the test (t.Chdir needs go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}
