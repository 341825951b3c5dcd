// Package sim provides an in-process link layer: adapter pairs joined
// by a shared medium that plays out the full LESC event sequence
// (parameter negotiation, ECDH public key exchange, passkey entry,
// auth status) without radio hardware.
package sim

import (
	"fmt"
	"sync"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/bond"
)

// Option configures a Medium.
type Option func(*Medium)

// WithBondStore persists the responder-side bond (initiator address,
// derived LTK) after every successful pairing.
func WithBondStore(s *bond.Store) Option {
	return func(m *Medium) {
		m.bonds = s
	}
}

// Medium is the shared radio. It matches scanners with advertisers,
// sets up links and sequences the security exchange between the two
// ends of each link.
type Medium struct {
	log   lesc.Logger
	bonds *bond.Store

	mu         sync.Mutex
	adapters   map[string]*Adapter
	links      map[lesc.Handle]*link
	nextHandle lesc.Handle
}

type link struct {
	handle     lesc.Handle
	central    *Adapter
	peripheral *Adapter
	sec        *exchange
}

func NewMedium(opts ...Option) *Medium {
	m := &Medium{
		log:        lesc.GetLogger().ChildLogger(map[string]interface{}{"pkg": "sim"}),
		adapters:   map[string]*Adapter{},
		links:      map[lesc.Handle]*link{},
		nextHandle: 1,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewAdapter attaches a new adapter with a fresh static random address
// to the medium and starts its dispatch goroutine.
func (m *Medium) NewAdapter() *Adapter {
	addr := lesc.RandomAddr()
	a := &Adapter{
		medium: m,
		addr:   addr,
		log:    m.log.ChildLogger(map[string]interface{}{"adapter": addr.String()}),
		evq:    make(chan lesc.Event, evtQueueSize),
		done:   make(chan struct{}),
	}
	go a.dispatch()

	m.mu.Lock()
	m.adapters[addr.String()] = a
	m.mu.Unlock()

	return a
}

// advertisers snapshots every adapter currently on air, except the
// scanner itself.
func (m *Medium) advertisers(scanner *Adapter) []*Adapter {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Adapter
	for _, a := range m.adapters {
		if a != scanner && a.isAdvertising() {
			out = append(out, a)
		}
	}
	return out
}

func (m *Medium) connect(initiator *Adapter, peer lesc.Addr) error {
	m.mu.Lock()
	target, ok := m.adapters[peer.String()]
	if !ok || !target.isAdvertising() {
		m.mu.Unlock()
		return fmt.Errorf("peer %s is not advertising", peer)
	}

	h := m.nextHandle
	m.nextHandle++
	m.links[h] = &link{handle: h, central: initiator, peripheral: target}
	m.mu.Unlock()

	initiator.stopScan()
	target.stopAdvertising()

	initiator.deliver(lesc.Connected{Handle: h, PeerAddr: target.addr, Role: lesc.RoleCentral})
	target.deliver(lesc.Connected{Handle: h, PeerAddr: initiator.addr, Role: lesc.RolePeripheral})

	return nil
}

func (m *Medium) disconnect(from *Adapter, h lesc.Handle) error {
	m.mu.Lock()
	lk, ok := m.links[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown handle %d", h)
	}
	if lk.central != from && lk.peripheral != from {
		m.mu.Unlock()
		return fmt.Errorf("handle %d does not belong to %s", h, from.addr)
	}
	delete(m.links, h)
	m.mu.Unlock()

	lk.central.deliver(lesc.Disconnected{Handle: h})
	lk.peripheral.deliver(lesc.Disconnected{Handle: h})

	return nil
}

// detach removes a closed adapter; its live links drop with a
// disconnect to the surviving end.
func (m *Medium) detach(a *Adapter) {
	m.mu.Lock()
	delete(m.adapters, a.addr.String())

	var orphaned []*link
	for h, lk := range m.links {
		if lk.central == a || lk.peripheral == a {
			delete(m.links, h)
			orphaned = append(orphaned, lk)
		}
	}
	m.mu.Unlock()

	for _, lk := range orphaned {
		other := lk.central
		if other == a {
			other = lk.peripheral
		}
		other.deliver(lesc.Disconnected{Handle: lk.handle, Reason: remoteUserTerminated})
	}
}

func (m *Medium) findLink(h lesc.Handle) (*link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lk, ok := m.links[h]
	if !ok {
		return nil, fmt.Errorf("unknown handle %d", h)
	}
	return lk, nil
}
