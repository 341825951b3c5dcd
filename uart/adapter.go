package uart

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/mailbox"
)

const (
	frameQueueSize = 64
	evtQueueSize   = 32

	addressTimeout = 2 * time.Second
)

// Adapter speaks the framed protocol to a serial-attached device. One
// reader goroutine assembles frames off the wire, one decodes them and
// one delivers the events, so a slow observer never backs up the port.
// Keyset generation and the shared-secret derivation are host-side.
type Adapter struct {
	rw   io.ReadWriteCloser
	log  lesc.Logger
	addr lesc.Addr

	wmu sync.Mutex

	frames    chan []byte
	evq       chan lesc.Event
	done      chan struct{}
	closeOnce sync.Once

	omu       sync.Mutex
	observers []lesc.Observer

	addrBox *mailbox.Mailbox
}

// NewAdapter wraps an open port and queries the device address, which
// is the only command that waits for its reply.
func NewAdapter(rw io.ReadWriteCloser) (*Adapter, error) {
	a := &Adapter{
		rw:      rw,
		log:     lesc.GetLogger().ChildLogger(map[string]interface{}{"adapter": "uart"}),
		frames:  make(chan []byte, frameQueueSize),
		evq:     make(chan lesc.Event, evtQueueSize),
		done:    make(chan struct{}),
		addrBox: mailbox.New(),
	}

	go a.readLoop()
	go a.decodeLoop()
	go a.dispatch()

	if err := a.write(encodeAddressGet()); err != nil {
		a.Close()
		return nil, err
	}
	v, err := a.addrBox.Get(addressTimeout)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "querying device address")
	}
	a.addr = v.(lesc.Addr)

	a.log.Infof("device address is %v", a.addr)
	return a, nil
}

func (a *Adapter) RegisterObserver(o lesc.Observer) {
	a.omu.Lock()
	defer a.omu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *Adapter) Address() lesc.Addr { return a.addr }

func (a *Adapter) ScanStart() error {
	return a.write(encodeScanStart())
}

func (a *Adapter) SetAdvData(rec lesc.AdvRecords) error {
	return a.write(encodeSetAdvData(rec))
}

func (a *Adapter) AdvertiseStart() error {
	return a.write(encodeAdvertiseStart())
}

func (a *Adapter) Connect(peer lesc.Addr) error {
	return a.write(encodeConnect(peer))
}

func (a *Adapter) Disconnect(h lesc.Handle) error {
	return a.write(encodeDisconnect(h))
}

func (a *Adapter) Authenticate(h lesc.Handle, params lesc.SecParams) error {
	return a.write(encodeAuthenticate(h, params))
}

func (a *Adapter) SecParamsReply(h lesc.Handle, status lesc.SecStatus, params *lesc.SecParams, ks *lesc.Keyset) error {
	f, err := encodeSecParamsReply(h, status, params, ks)
	if err != nil {
		return err
	}
	return a.write(f)
}

func (a *Adapter) DHKeyReply(h lesc.Handle, dhkey []byte) error {
	return a.write(encodeDHKeyReply(h, dhkey))
}

func (a *Adapter) AuthKeyReply(h lesc.Handle, kt lesc.AuthKeyType, key []byte) error {
	return a.write(encodeAuthKeyReply(h, kt, key))
}

func (a *Adapter) GenerateKeyset() (*lesc.Keyset, error) {
	return lesc.GenerateKeyset()
}

func (a *Adapter) DHKey(peerPublicKey []byte, ks *lesc.Keyset) ([]byte, error) {
	return lesc.DHKey(peerPublicKey, ks)
}

func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		err = errors.Wrap(a.rw.Close(), "closing port")
	})
	return err
}

func (a *Adapter) write(f []byte) error {
	if !a.isOpen() {
		return io.EOF
	}

	a.wmu.Lock()
	defer a.wmu.Unlock()
	_, err := a.rw.Write(f)
	return errors.Wrap(err, "port write")
}

func (a *Adapter) isOpen() bool {
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

func (a *Adapter) readLoop() {
	asm := newAssembler(a.frames)
	tmp := make([]byte, 512)
	for a.isOpen() {
		n, err := a.rw.Read(tmp)
		if err != nil || n == 0 {
			if err == io.EOF {
				return
			}
			continue
		}
		asm.assemble(tmp[:n])
	}
}

func (a *Adapter) decodeLoop() {
	for {
		var f []byte
		select {
		case f = <-a.frames:
		case <-a.done:
			return
		}

		if f[offsetOpcode] == opAddress {
			addr, err := parseAddr(f[headerLength:])
			if err != nil {
				a.log.Errorf("bad address frame: %v", err)
				continue
			}
			a.addrBox.Put(addr)
			continue
		}

		e, err := decodeEvent(f)
		if err != nil {
			a.log.Errorf("dropping frame: %v", err)
			continue
		}

		select {
		case a.evq <- e:
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) dispatch() {
	for {
		var e lesc.Event
		select {
		case e = <-a.evq:
		case <-a.done:
			return
		}

		a.omu.Lock()
		obs := make([]lesc.Observer, len(a.observers))
		copy(obs, a.observers)
		a.omu.Unlock()

		for _, o := range obs {
			o.HandleEvent(e)
		}
	}
}
