// Package endpoints tracks which authorization and token endpoint paths
// have been published for each issuer. Deployments may host several issuers
// in one process; each issuer registers its endpoints exactly once.
package endpoints

import (
	"fmt"
	"sync"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

type entry struct {
	authzPath string
	tokenPath string
}

// Registry is a process-wide issuer to endpoint-path map. The zero value is
// not usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	issuers map[string]*entry
}

func New() *Registry {
	return &Registry{issuers: make(map[string]*entry)}
}

// RegisterAuthzEndpoint publishes the authorization endpoint path for an
// issuer. Registering the same issuer's authorization endpoint twice is a
// deployment mistake and fails with a ConfigurationError.
func (r *Registry) RegisterAuthzEndpoint(issuer, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(issuer)
	if e.authzPath != "" {
		return domain.Configf("the authorization endpoint for issuer %q is already registered at %q",
			issuer, e.authzPath)
	}
	e.authzPath = path
	return nil
}

// RegisterTokenEndpoint publishes the token endpoint path for an issuer.
func (r *Registry) RegisterTokenEndpoint(issuer, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(issuer)
	if e.tokenPath != "" {
		return domain.Configf("the token endpoint for issuer %q is already registered at %q",
			issuer, e.tokenPath)
	}
	e.tokenPath = path
	return nil
}

// LookupAuthzEndpoint returns the registered authorization endpoint path.
func (r *Registry) LookupAuthzEndpoint(issuer string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.issuers[issuer]; ok && e.authzPath != "" {
		return e.authzPath, nil
	}
	return "", fmt.Errorf("endpoints: no authorization endpoint registered for issuer %q", issuer)
}

// LookupTokenEndpoint returns the registered token endpoint path.
func (r *Registry) LookupTokenEndpoint(issuer string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.issuers[issuer]; ok && e.tokenPath != "" {
		return e.tokenPath, nil
	}
	return "", fmt.Errorf("endpoints: no token endpoint registered for issuer %q", issuer)
}

func (r *Registry) entryLocked(issuer string) *entry {
	e, ok := r.issuers[issuer]
	if !ok {
		e = &entry{}
		r.issuers[issuer] = e
	}
	return e
}
