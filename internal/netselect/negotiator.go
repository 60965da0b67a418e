// Package netselect decides which backend a client talks to: the
// local-network relay, the cloud relay, or none at all.
package netselect

import (
	"context"
	"log"
	"sync"

	"chatbox/internal/models"
)

// Prober issues a bounded liveness check against a candidate endpoint.
type Prober interface {
	Probe(ctx context.Context, baseURL string) bool
}

// OverrideStore persists the user's LAN candidate across runs.
type OverrideStore interface {
	LanBaseURL() (string, error)
	SetLanBaseURL(url string) error
}

// Negotiator owns the connection state machine. Probes run outside the
// lock, so overlapping negotiations may race; every outcome commits
// mode and base URL together, so the last call to finish wins with a
// self-consistent state.
type Negotiator struct {
	prober    Prober
	overrides OverrideStore // optional

	lanDefault string
	cloudURL   string

	mode         models.ConnectionMode
	baseURL      string
	initializing bool

	mu sync.RWMutex
}

func New(prober Prober, overrides OverrideStore, lanDefault, cloudURL string) *Negotiator {
	return &Negotiator{
		prober:     prober,
		overrides:  overrides,
		lanDefault: lanDefault,
		cloudURL:   cloudURL,
		mode:       models.ModeOffline,
	}
}

// State returns a snapshot of the current negotiation outcome.
func (n *Negotiator) State() models.ConnectionState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return models.ConnectionState{
		Mode:         n.mode,
		BaseURL:      n.baseURL,
		Initializing: n.initializing,
	}
}

// Init probes the LAN candidate first, then the cloud candidate, and
// commits the first mode that answers; with neither reachable it
// commits offline. Initializing is cleared on every branch.
func (n *Negotiator) Init(ctx context.Context) {
	n.mu.Lock()
	n.initializing = true
	n.mu.Unlock()

	lan := n.lanCandidate()
	if n.prober.Probe(ctx, lan) {
		n.commit(models.ModeLan, lan)
		return
	}

	if n.cloudURL != "" && n.prober.Probe(ctx, n.cloudURL) {
		n.commit(models.ModeCloud, n.cloudURL)
		return
	}

	n.commit(models.ModeOffline, "")
}

// Reinit re-runs the negotiation. Safe to call repeatedly and
// concurrently; not serialized by design.
func (n *Negotiator) Reinit(ctx context.Context) {
	n.Init(ctx)
}

// SetUserLanURL persists url as the LAN candidate used by subsequent
// negotiations. An empty url clears the override. It does not itself
// renegotiate.
func (n *Negotiator) SetUserLanURL(url string) {
	if n.overrides == nil {
		return
	}
	if err := n.overrides.SetLanBaseURL(url); err != nil {
		log.Printf("netselect: failed to persist lan override: %v", err)
	}
}

// SetLan attempts LAN mode with the given url, or the usual candidate
// when url is empty. On failure the negotiator goes offline.
func (n *Negotiator) SetLan(ctx context.Context, url string) {
	candidate := url
	if candidate == "" {
		candidate = n.lanCandidate()
	}
	if n.prober.Probe(ctx, candidate) {
		n.commit(models.ModeLan, candidate)
		return
	}
	n.commit(models.ModeOffline, "")
}

// SetInternet attempts cloud mode with the given url, or the configured
// cloud candidate when url is empty. On failure it retries LAN before
// going offline.
func (n *Negotiator) SetInternet(ctx context.Context, url string) {
	candidate := url
	if candidate == "" {
		candidate = n.cloudURL
	}
	if candidate != "" && n.prober.Probe(ctx, candidate) {
		n.commit(models.ModeCloud, candidate)
		return
	}

	lan := n.lanCandidate()
	if n.prober.Probe(ctx, lan) {
		n.commit(models.ModeLan, lan)
		return
	}
	n.commit(models.ModeOffline, "")
}

// ToggleInternet switches between LAN and cloud, probing the target
// first and keeping the current mode when the other side is down. When
// offline it prefers cloud, then LAN.
func (n *Negotiator) ToggleInternet(ctx context.Context) {
	mode := n.State().Mode

	switch mode {
	case models.ModeLan:
		if n.cloudURL != "" && n.prober.Probe(ctx, n.cloudURL) {
			n.commit(models.ModeCloud, n.cloudURL)
		}
	case models.ModeCloud:
		lan := n.lanCandidate()
		if n.prober.Probe(ctx, lan) {
			n.commit(models.ModeLan, lan)
		}
	default:
		if n.cloudURL != "" && n.prober.Probe(ctx, n.cloudURL) {
			n.commit(models.ModeCloud, n.cloudURL)
			return
		}
		lan := n.lanCandidate()
		if n.prober.Probe(ctx, lan) {
			n.commit(models.ModeLan, lan)
		}
	}
}

// lanCandidate resolves the LAN address to probe: persisted user
// override first, then the configured default.
func (n *Negotiator) lanCandidate() string {
	if n.overrides != nil {
		if url, err := n.overrides.LanBaseURL(); err == nil && url != "" {
			return url
		}
	}
	return n.lanDefault
}

func (n *Negotiator) commit(mode models.ConnectionMode, baseURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = mode
	n.baseURL = baseURL
	n.initializing = false
}
