package services

import (
	"log"
	"sync"
	"time"
)

const (
	// alertThreshold failures from one IP inside alertWindow raise an alert
	alertThreshold = 5
	alertWindow    = 10 * time.Minute
	// alertCooldown is the minimum gap between two alerts for the same IP and kind
	alertCooldown = time.Hour
	maxAlerts     = 100
)

// SecurityEventKind names what failed
type SecurityEventKind string

const (
	EventLoginFailed     SecurityEventKind = "LOGIN_FAILED"
	EventTurnstileFailed SecurityEventKind = "TURNSTILE_FAILED"
)

// SecurityAlert is raised when an IP keeps failing
type SecurityAlert struct {
	Timestamp time.Time         `json:"timestamp"`
	IP        string            `json:"ip"`
	Kind      SecurityEventKind `json:"kind"`
	Failures  int               `json:"failures"`
}

// SecurityMonitor counts failed logins and failed anti-bot checks per IP and
// keeps the recent alerts for the administration dashboard.
type SecurityMonitor struct {
	mu        sync.Mutex
	failures  map[string][]time.Time // kind|ip -> failure timestamps
	lastAlert map[string]time.Time   // kind|ip -> last alert time
	alerts    []SecurityAlert        // newest first
	now       func() time.Time
}

// NewSecurityMonitor creates a monitor and starts its cleanup goroutine
func NewSecurityMonitor() *SecurityMonitor {
	m := &SecurityMonitor{
		failures:  make(map[string][]time.Time),
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
	go m.cleanup()
	return m
}

// TrackFailure records one failure and raises an alert when the IP crosses
// the threshold.
func (m *SecurityMonitor) TrackFailure(kind SecurityEventKind, ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := string(kind) + "|" + ip
	windowStart := now.Add(-alertWindow)

	recent := m.failures[key][:0]
	for _, t := range m.failures[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	m.failures[key] = recent

	if len(recent) < alertThreshold {
		return
	}
	if last, ok := m.lastAlert[key]; ok && now.Sub(last) < alertCooldown {
		return
	}
	m.lastAlert[key] = now

	alert := SecurityAlert{Timestamp: now, IP: ip, Kind: kind, Failures: len(recent)}
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[:maxAlerts]
	}

	log.Printf("[SECURITY ALERT] %d x %s from IP: %s in the last %s", len(recent), kind, ip, alertWindow)
}

// RecentAlerts returns a copy of the alert history, newest first
func (m *SecurityMonitor) RecentAlerts() []SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := make([]SecurityAlert, len(m.alerts))
	copy(alerts, m.alerts)
	return alerts
}

// cleanup periodically removes stale data
func (m *SecurityMonitor) cleanup() {
	ticker := time.NewTicker(time.Hour)
	for range ticker.C {
		m.mu.Lock()
		now := m.now()
		for key, attempts := range m.failures {
			if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) > alertWindow {
				delete(m.failures, key)
			}
		}
		for key, last := range m.lastAlert {
			if now.Sub(last) > alertCooldown {
				delete(m.lastAlert, key)
			}
		}
		m.mu.Unlock()
	}
}
