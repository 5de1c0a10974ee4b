package delivery

import (
	"context"
	"errors"
)

// PermissionStore persists the user's permission decision.
type PermissionStore interface {
	Permission(ctx context.Context) (string, error)
	SavePermission(ctx context.Context, p string) error
}

// RecordedPermission is the production PermissionProvider for headless hosts:
// the decision is whatever the last explicit request produced, and a request
// is granted when the notification channel answers a probe.
type RecordedPermission struct {
	store  PermissionStore
	prober Prober
}

func NewRecordedPermission(store PermissionStore, prober Prober) *RecordedPermission {
	return &RecordedPermission{store: store, prober: prober}
}

func (p *RecordedPermission) Permission(ctx context.Context) (Permission, error) {
	v, err := p.store.Permission(ctx)
	if err != nil {
		return PermissionDefault, err
	}
	return ParsePermission(v), nil
}

// Request probes the channel and records the outcome. A failed probe records
// (and returns) denied together with the probe error.
func (p *RecordedPermission) Request(ctx context.Context) (Permission, error) {
	result := PermissionGranted
	var probeErr error
	if p.prober == nil {
		result, probeErr = PermissionDenied, errors.New("no notification channel configured")
	} else if probeErr = p.prober.Probe(ctx); probeErr != nil {
		result = PermissionDenied
	}
	if err := p.store.SavePermission(ctx, string(result)); err != nil {
		return result, errors.Join(probeErr, err)
	}
	return result, probeErr
}

// StaticPermission always reports the same value. Requests return it unchanged.
type StaticPermission Permission

func (s StaticPermission) Permission(context.Context) (Permission, error) { return Permission(s), nil }
func (s StaticPermission) Request(context.Context) (Permission, error)    { return Permission(s), nil }
