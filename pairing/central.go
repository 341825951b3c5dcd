package pairing

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/mailbox"
)

const (
	// DefaultConnectTimeout bounds the wait for a connection after
	// scanning starts.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPasskeyTimeout bounds the wait for the passkey relayed
	// from the peer's display.
	DefaultPasskeyTimeout = 10 * time.Second
)

// Central drives the initiator side: scan for the target identity,
// connect, and start LESC pairing as keyboard-only. Events arrive on
// the adapter's dispatch goroutine; Start runs on the caller's.
type Central struct {
	adapter lesc.Adapter
	relay   *Relay
	log     lesc.Logger
	conn    *mailbox.Mailbox

	// ConnectTimeout and PasskeyTimeout may be set before Start;
	// zero means the defaults above.
	ConnectTimeout time.Duration
	PasskeyTimeout time.Duration

	mu         sync.Mutex
	state      State
	target     string
	connecting bool
	handle     lesc.Handle
	hasConn    bool
	lesc       bool
	keyset     *lesc.Keyset
}

// NewCentral wires a Central to its adapter and registers it for the
// adapter's events.
func NewCentral(a lesc.Adapter, relay *Relay) *Central {
	c := &Central{
		adapter: a,
		relay:   relay,
		log:     lesc.GetLogger().ChildLogger(map[string]interface{}{"role": "central"}),
		conn:    mailbox.New(),
		lesc:    true,
	}
	a.RegisterObserver(c)
	c.log.Infof("central adapter is %v", a.Address())
	return c
}

// State returns the current state of the role machine.
func (c *Central) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start scans for a peripheral advertising the given identity, waits
// for the connection and kicks off authentication. It returns once
// pairing is underway; the outcome arrives through the relay.
func (c *Central) Start(target string) error {
	c.mu.Lock()
	c.target = target
	c.connecting = false
	c.state = Scanning
	c.mu.Unlock()

	c.log.Infof("scan start, trying to find %s", target)
	if err := c.adapter.ScanStart(); err != nil {
		return errors.Wrap(err, "scan start")
	}

	v, err := c.conn.Get(c.connectTimeout())
	if err != nil {
		c.mu.Lock()
		c.state = Failed
		c.mu.Unlock()
		return errors.Wrap(err, "waiting for connection")
	}
	h := v.(lesc.Handle)

	c.mu.Lock()
	c.handle = h
	c.hasConn = true
	c.state = PairingInitiated
	c.mu.Unlock()

	// authenticate on its own goroutine: the command does not resolve
	// until the security procedure progresses, and the caller of Start
	// should not block on that
	go func() {
		params := lesc.SecParams{
			Bond:       true,
			MITM:       true,
			LESC:       c.lesc,
			IOCaps:     lesc.IOCapsKeyboardOnly,
			MinKeySize: 7,
			MaxKeySize: 16,
		}
		if err := c.adapter.Authenticate(h, params); err != nil {
			c.log.Errorf("authenticate: %v", err)
		}
	}()

	return nil
}

// Stop disconnects if a connection exists. Safe to call repeatedly;
// only the first call after a connection issues a disconnect.
func (c *Central) Stop() {
	c.mu.Lock()
	c.connecting = false
	h := c.handle
	hasConn := c.hasConn
	c.hasConn = false
	c.mu.Unlock()

	if hasConn {
		if err := c.adapter.Disconnect(h); err != nil {
			c.log.Warnf("disconnect: %v", err)
		}
	}
}

// HandleEvent dispatches one link-layer event. Runs on the adapter's
// dispatch goroutine; only the auth-key branch may block and is moved
// to its own goroutine for that reason.
func (c *Central) HandleEvent(e lesc.Event) {
	switch e := e.(type) {
	case lesc.AdvReport:
		c.onAdvReport(e)
	case lesc.Connected:
		c.conn.Put(e.Handle)
	case lesc.Disconnected:
		c.onDisconnected(e)
	case lesc.SecParamsRequest:
		c.onSecParamsRequest(e)
	case lesc.DHKeyRequest:
		c.onDHKeyRequest(e)
	case lesc.AuthKeyRequest:
		go c.onAuthKeyRequest(e)
	case lesc.ConnSecUpdate:
		c.log.Debugf("conn sec update: %+v", e.Sec)
	case lesc.AuthStatusEvent:
		c.onAuthStatus(e)
	case lesc.PasskeyDisplay:
		// keyboard-only side has nothing to display
	}
}

func (c *Central) onAdvReport(e lesc.AdvReport) {
	name, ok := e.Records.LocalName()
	if !ok {
		return
	}

	c.mu.Lock()
	if name != c.target || c.connecting {
		// not ours, or a duplicate report while a connection attempt
		// is already outstanding
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.state = Connecting
	c.mu.Unlock()

	c.log.Infof("trying to connect to peripheral advertising as %s, address: %s", name, e.PeerAddr)

	if err := c.adapter.Connect(e.PeerAddr); err != nil {
		c.log.Errorf("connect: %v", err)
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}
}

func (c *Central) onDisconnected(e lesc.Disconnected) {
	c.mu.Lock()
	if c.hasConn && c.handle == e.Handle {
		c.hasConn = false
		c.connecting = false
	}
	c.mu.Unlock()
}

func (c *Central) onSecParamsRequest(e lesc.SecParamsRequest) {
	c.log.Infof("sec params request, peer lesc=%v", e.PeerParams.LESC)

	if !e.PeerParams.LESC || !c.lesc {
		c.log.Warn("peer does not support lesc, ignoring")
		return
	}

	c.log.Debug("generating lesc ecdh keyset")
	ks, err := c.adapter.GenerateKeyset()
	if err != nil {
		c.log.Errorf("generate keyset: %v", err)
		return
	}

	c.mu.Lock()
	c.keyset = ks
	c.mu.Unlock()

	// nil params: ours went out with the authenticate command
	if err := c.adapter.SecParamsReply(e.Handle, lesc.SecStatusSuccess, nil, ks); err != nil {
		c.log.Errorf("sec params reply: %v", err)
	}
}

func (c *Central) onDHKeyRequest(e lesc.DHKeyRequest) {
	c.log.Info("dhkey request")

	c.mu.Lock()
	ks := c.keyset
	c.mu.Unlock()

	dh, err := c.adapter.DHKey(e.PeerPublicKey, ks)
	if err != nil {
		c.log.Errorf("dhkey derivation: %v", err)
		return
	}

	if err := c.adapter.DHKeyReply(e.Handle, dh); err != nil {
		c.log.Errorf("dhkey reply: %v", err)
	}
}

// onAuthKeyRequest waits for the passkey the peripheral published and
// enters it. Runs on its own goroutine, never on the dispatch one.
func (c *Central) onAuthKeyRequest(e lesc.AuthKeyRequest) {
	c.log.Info("auth key request")

	v, err := c.relay.Passkey.Get(c.passkeyTimeout())
	if err != nil {
		c.log.Errorf("no passkey relayed: %v", err)
		return
	}
	passkey := v.(string)

	if err := c.adapter.AuthKeyReply(e.Handle, e.KeyType, []byte(passkey)); err != nil {
		c.log.Errorf("auth key reply: %v", err)
	}
}

func (c *Central) onAuthStatus(e lesc.AuthStatusEvent) {
	c.log.Infof("auth status: %s", e.Status.Status)

	c.mu.Lock()
	if e.Status.Status == lesc.SecStatusSuccess {
		c.state = Authenticated
	} else {
		c.state = Failed
	}
	c.mu.Unlock()
}

func (c *Central) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (c *Central) passkeyTimeout() time.Duration {
	if c.PasskeyTimeout > 0 {
		return c.PasskeyTimeout
	}
	return DefaultPasskeyTimeout
}
