package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ErrUnknownService is returned when a service name is not in the table.
var ErrUnknownService = errors.New("bundle: unknown service")

// Service maps a service name to where its cookie bundle lives and which
// page the bundle belongs to.
type Service struct {
	Name      string
	BundleURL string
	TargetURL string
}

// Fetcher resolves service names and downloads their cookie bundles.
type Fetcher struct {
	services map[string]Service
	http     *http.Client
}

func NewFetcher(services []Service, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	m := make(map[string]Service, len(services))
	for _, s := range services {
		m[s.Name] = s
	}
	return &Fetcher{services: m, http: client}
}

func (f *Fetcher) Lookup(name string) (Service, bool) {
	s, ok := f.services[name]
	return s, ok
}

// Names returns the configured service names in sorted order.
func (f *Fetcher) Names() []string {
	out := make([]string, 0, len(f.services))
	for name := range f.services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load fetches the bundle for service and returns its body with surrounding
// whitespace removed. The body is passed through as-is otherwise.
func (f *Fetcher) Load(ctx context.Context, service string) (string, error) {
	s, ok := f.Lookup(service)
	if !ok {
		return "", ErrUnknownService
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BundleURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bundle: %s returned %s", service, resp.Status)
	}
	return strings.TrimSpace(string(b)), nil
}
