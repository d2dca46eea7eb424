package capability

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Handler executes one concrete effect-op type and returns its output.
type Handler func(ctx context.Context, cap Capability) (any, error)

// Provider dispatches Execute by the concrete type of the capability's
// Effect.Op(), generalizing the teacher's switch-on-string-op FSM dispatch
// (pkg/manager/fsm.go) into a registry keyed by reflect.Type so new effect
// kinds register themselves instead of growing a switch statement.
type Provider struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]Handler
}

// NewProvider constructs an empty Provider.
func NewProvider() *Provider {
	return &Provider{handlers: make(map[reflect.Type]Handler)}
}

// Register binds the handler invoked for any effect whose Op() has the
// same concrete type as sample. sample is used only for its type; its
// value is discarded.
func (p *Provider) Register(sample any, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[reflect.TypeOf(sample)] = h
}

// Execute dispatches cap to the handler registered for its Op()'s type.
func (p *Provider) Execute(ctx context.Context, cap Capability) (any, error) {
	p.mu.RLock()
	h, ok := p.handlers[reflect.TypeOf(cap.Op())]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialog: capability: no provider registered for %T", cap.Op())
	}
	return h(ctx, cap)
}

// Authorization marks a Proof kind: owned, delegated, or invoked.
type Authorization interface {
	isAuthorization()
}

// Owned is the proof a local subject presents for its own capability.
type Owned struct{}

func (Owned) isAuthorization() {}

// Delegated is the proof a chain of delegations presents on behalf of
// another subject.
type Delegated struct {
	Chain []byte // opaque UCAN-style delegation chain; encoding out of scope.
}

func (Delegated) isAuthorization() {}

// Invoked is the proof a signed invocation presents: the command path and
// arguments it attests to, plus the audience DID it was signed for.
type Invoked struct {
	CommandPath string
	Audience    []byte
	Signature   []byte
}

func (Invoked) isAuthorization() {}

// Proof pairs an Authorization with the data backing it.
type Proof[A Authorization] struct {
	Authorization A
}

// AuthorizedProvider wraps a Provider with a Proof requirement: Execute
// checks the proof's audience against the local authority DID before
// forwarding to the unauthorized Provider, never executing an effect
// whose invocation was not actually signed for this authority.
type AuthorizedProvider[A Authorization] struct {
	inner     *Provider
	authority []byte
	audience  func(A) ([]byte, bool)
}

// NewAuthorizedProvider wraps inner, checking invocations against
// authority. audience extracts the proof's audience DID, or false if the
// authorization kind carries none (e.g. Owned, which is trusted
// unconditionally).
func NewAuthorizedProvider[A Authorization](inner *Provider, authority []byte, audience func(A) ([]byte, bool)) *AuthorizedProvider[A] {
	return &AuthorizedProvider[A]{inner: inner, authority: authority, audience: audience}
}

// Execute checks proof.Authorization's audience against the configured
// local authority, then forwards cap to the wrapped Provider.
func (a *AuthorizedProvider[A]) Execute(ctx context.Context, cap Capability, proof Proof[A]) (any, error) {
	if aud, ok := a.audience(proof.Authorization); ok {
		if !bytesEqual(aud, a.authority) {
			return nil, fmt.Errorf("dialog: capability: invocation audience does not match local authority")
		}
	}
	return a.inner.Execute(ctx, cap)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
