package pairing

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/mailbox"
)

// Peripheral drives the responder side: advertise the identity, answer
// the security negotiation as display-only and publish the passkey and
// the final auth outcome into the relay.
type Peripheral struct {
	adapter lesc.Adapter
	relay   *Relay
	log     lesc.Logger
	conn    *mailbox.Mailbox

	mu        sync.Mutex
	state     State
	handle    lesc.Handle
	hasConn   bool
	keyset    *lesc.Keyset
	published bool
}

// NewPeripheral wires a Peripheral to its adapter and registers it for
// the adapter's events.
func NewPeripheral(a lesc.Adapter, relay *Relay) *Peripheral {
	p := &Peripheral{
		adapter: a,
		relay:   relay,
		log:     lesc.GetLogger().ChildLogger(map[string]interface{}{"role": "peripheral"}),
		conn:    mailbox.New(),
	}
	a.RegisterObserver(p)
	p.log.Infof("peripheral adapter is %v", a.Address())
	return p
}

// State returns the current state of the role machine.
func (p *Peripheral) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start advertises the given identity.
func (p *Peripheral) Start(identity string) error {
	if err := p.adapter.SetAdvData(lesc.AdvRecords{CompleteLocalName: identity}); err != nil {
		return errors.Wrap(err, "set adv data")
	}
	if err := p.adapter.AdvertiseStart(); err != nil {
		return errors.Wrap(err, "advertise start")
	}

	p.mu.Lock()
	p.state = Advertising
	p.mu.Unlock()

	p.log.Infof("advertising as %s", identity)
	return nil
}

// Stop disconnects if a connection exists. Safe to call repeatedly.
func (p *Peripheral) Stop() {
	p.mu.Lock()
	h := p.handle
	hasConn := p.hasConn
	p.hasConn = false
	p.mu.Unlock()

	if hasConn {
		if err := p.adapter.Disconnect(h); err != nil {
			p.log.Warnf("disconnect: %v", err)
		}
	}
}

// HandleEvent dispatches one link-layer event on the adapter's
// dispatch goroutine. No branch blocks.
func (p *Peripheral) HandleEvent(e lesc.Event) {
	switch e := e.(type) {
	case lesc.Connected:
		p.onConnected(e)
	case lesc.Disconnected:
		p.onDisconnected(e)
	case lesc.SecParamsRequest:
		p.onSecParamsRequest(e)
	case lesc.DHKeyRequest:
		p.onDHKeyRequest(e)
	case lesc.PasskeyDisplay:
		p.onPasskeyDisplay(e)
	case lesc.ConnSecUpdate:
		p.log.Infof("conn sec update: %+v", e.Sec)
	case lesc.AuthStatusEvent:
		p.onAuthStatus(e)
	case lesc.AdvReport, lesc.AuthKeyRequest:
		// not a scanner, and the display side never enters a key
	}
}

func (p *Peripheral) onConnected(e lesc.Connected) {
	p.mu.Lock()
	p.handle = e.Handle
	p.hasConn = true
	p.state = Connected
	p.mu.Unlock()

	p.conn.Put(e.Handle)
}

func (p *Peripheral) onDisconnected(e lesc.Disconnected) {
	p.mu.Lock()
	if p.hasConn && p.handle == e.Handle {
		p.hasConn = false
	}
	p.mu.Unlock()
}

// onSecParamsRequest answers with the peer's proposal reshaped to this
// side's requirements: display-only, LESC forced on, 7 byte minimum
// key, encryption and identity keys distributed both ways.
func (p *Peripheral) onSecParamsRequest(e lesc.SecParamsRequest) {
	p.log.Info("sec params request")

	params := e.PeerParams
	params.IOCaps = lesc.IOCapsDisplayOnly
	params.LESC = true
	params.MinKeySize = 7

	kdist := lesc.SecKdist{Enc: true, ID: true}
	params.KdistOwn = kdist
	params.KdistPeer = kdist

	p.log.Debug("generating lesc ecdh keyset")
	ks, err := p.adapter.GenerateKeyset()
	if err != nil {
		p.log.Errorf("generate keyset: %v", err)
		return
	}

	p.mu.Lock()
	p.keyset = ks
	p.state = PairingResponded
	p.mu.Unlock()

	if err := p.adapter.SecParamsReply(e.Handle, lesc.SecStatusSuccess, &params, ks); err != nil {
		p.log.Errorf("sec params reply: %v", err)
	}
}

func (p *Peripheral) onDHKeyRequest(e lesc.DHKeyRequest) {
	p.log.Info("dhkey request")

	p.mu.Lock()
	ks := p.keyset
	p.mu.Unlock()

	dh, err := p.adapter.DHKey(e.PeerPublicKey, ks)
	if err != nil {
		p.log.Errorf("dhkey derivation: %v", err)
		return
	}

	if err := p.adapter.DHKeyReply(e.Handle, dh); err != nil {
		p.log.Errorf("dhkey reply: %v", err)
	}
}

// onPasskeyDisplay relays the passkey the user would read off this
// side's display to whoever is waiting to type it in.
func (p *Peripheral) onPasskeyDisplay(e lesc.PasskeyDisplay) {
	p.log.Infof("passkey display: %s", e.Passkey)
	p.relay.Passkey.Put(e.Passkey)
}

func (p *Peripheral) onAuthStatus(e lesc.AuthStatusEvent) {
	p.log.Infof("auth status: %s", e.Status.Status)

	p.mu.Lock()
	already := p.published
	p.published = true
	if e.Status.Status == lesc.SecStatusSuccess {
		p.state = Authenticated
	} else {
		p.state = Failed
	}
	p.mu.Unlock()

	if !already {
		p.relay.AuthResult.Put(e.Status)
	}
}
