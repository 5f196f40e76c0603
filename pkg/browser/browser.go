package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ventura3351/multiapps/pkg/bundle"
)

var (
	ErrTargetNotAllowed = errors.New("browser: target domain not allowed")
	ErrCookieDomain     = errors.New("browser: cookie domain not allowed")
)

// Driver opens target in a fresh browser, replaces its cookies with the given
// ones and reloads. The returned func releases the browser.
type Driver interface {
	Open(ctx context.Context, target string, cookies []bundle.Cookie) (func(), error)
}

// Session is a browser left open after a successful injection.
type Session struct {
	ID       string
	Service  string
	Target   string
	OpenedAt time.Time

	release func()
}

// Manager drives the browser and remembers every session it opened.
type Manager struct {
	driver  Driver
	allowed []string

	mu       sync.Mutex
	sessions []*Session
}

// NewManager builds a Manager that only injects into allowedDomains and
// their subdomains. An empty allowlist refuses every target.
func NewManager(driver Driver, allowedDomains []string) *Manager {
	return &Manager{driver: driver, allowed: allowedDomains}
}

func (m *Manager) allowedDomain(domain string) bool {
	for _, d := range m.allowed {
		if bundle.DomainMatches(domain, d) {
			return true
		}
	}
	return false
}

func (m *Manager) Open(ctx context.Context, service, target string, cookies []bundle.Cookie) (*Session, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("browser: unsupported target %q", target)
	}
	if !m.allowedDomain(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotAllowed, u.Hostname())
	}
	for _, c := range cookies {
		if !m.allowedDomain(c.Domain) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrCookieDomain, c.Domain, c.Name)
		}
	}

	release, err := m.driver.Open(ctx, target, cookies)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       uuid.NewString(),
		Service:  service,
		Target:   target,
		OpenedAt: time.Now(),
		release:  release,
	}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	n := len(m.sessions)
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"session": s.ID,
		"service": service,
		"cookies": len(cookies),
		"active":  n,
	}).Info("browser session opened")
	return s, nil
}

// Count returns how many sessions are open.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll releases every open browser. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()

	for _, s := range sessions {
		if s.release != nil {
			s.release()
		}
	}
	if len(sessions) > 0 {
		log.Infof("closed %d browser sessions", len(sessions))
	}
}
