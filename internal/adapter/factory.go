package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"jobmate/apply-service/internal/model"
)

// ErrUnsupportedPlatform is matched by every UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError names the target no adapter is registered for.
type UnsupportedPlatformError struct{ Target string }

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.Target)
}

func (e *UnsupportedPlatformError) Is(target error) bool { return target == ErrUnsupportedPlatform }

// Constructor builds an adapter from its dependencies.
type Constructor func(deps Deps) Adapter

type registration struct {
	platform  model.Platform
	hostMatch string
	build     Constructor
}

// Factory selects the adapter for a URL or host. Registrations are matched
// in order and the first host substring match wins.
type Factory struct {
	mu   sync.RWMutex
	deps Deps
	regs []registration
}

// NewFactory returns a factory with LinkedIn, Indeed and Naukri registered.
func NewFactory(deps Deps) *Factory {
	f := &Factory{deps: deps}
	f.Register(model.PlatformLinkedIn, "linkedin.com", func(d Deps) Adapter { return NewLinkedIn(d) })
	f.Register(model.PlatformIndeed, "indeed.com", func(d Deps) Adapter { return NewIndeed(d) })
	f.Register(model.PlatformNaukri, "naukri.com", func(d Deps) Adapter { return NewNaukri(d) })
	return f
}

// Register appends a board. Later registrations only win for hosts no
// earlier one matches.
func (f *Factory) Register(p model.Platform, hostMatch string, build Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = append(f.regs, registration{platform: p, hostMatch: strings.ToLower(hostMatch), build: build})
}

// Resolve returns the platform registered for target without building it.
func (f *Factory) Resolve(target string) (model.Platform, error) {
	reg, err := f.lookup(target)
	if err != nil {
		return "", err
	}
	return reg.platform, nil
}

// Create builds the adapter for target (a URL or bare host).
func (f *Factory) Create(target string) (Adapter, error) {
	reg, err := f.lookup(target)
	if err != nil {
		return nil, err
	}
	return reg.build(f.deps), nil
}

// IsSupported reports whether Create would succeed for target.
func (f *Factory) IsSupported(target string) bool {
	_, err := f.lookup(target)
	return err == nil
}

func (f *Factory) lookup(target string) (registration, error) {
	host := hostFrom(target)
	f.mu.RLock()
	defer f.mu.RUnlock()
	if host != "" {
		for _, r := range f.regs {
			if strings.Contains(host, r.hostMatch) {
				return r, nil
			}
		}
	}
	return registration{}, &UnsupportedPlatformError{Target: target}
}

// hostFrom accepts "https://www.linkedin.com/jobs", "www.linkedin.com/jobs"
// or "linkedin.com".
func hostFrom(target string) string {
	target = strings.TrimSpace(strings.ToLower(target))
	if target == "" {
		return ""
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
