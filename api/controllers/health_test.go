package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-SkillBridge-Env") != "dev" {
		t.Fatalf("missing env header")
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, logger.Nop(),
		ReadinessCheck{Name: "postgres", Pinger: stubPinger{}},
		ReadinessCheck{Name: "redis", Pinger: stubPinger{err: errors.New("down")}},
	)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthReadyOK(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), ReadinessCheck{Name: "postgres", Pinger: stubPinger{}}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
