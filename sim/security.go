package sim

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/sliceops"
)

// exchange tracks one in-flight pairing attempt on a link. All fields
// are guarded by the medium mutex; events computed under the lock are
// delivered after it is released so a handler issuing a command back
// into the medium cannot deadlock.
type exchange struct {
	initParams lesc.SecParams
	respParams lesc.SecParams

	initPub []byte
	respPub []byte

	initDH []byte
	respDH []byte

	na, nb  []byte
	passkey string
}

type delivery struct {
	to *Adapter
	e  lesc.Event
}

func (m *Medium) post(dd []delivery) {
	for _, d := range dd {
		d.to.deliver(d.e)
	}
}

func (m *Medium) authenticate(from *Adapter, h lesc.Handle, params lesc.SecParams) error {
	m.mu.Lock()
	lk, ok := m.links[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown handle %d", h)
	}
	if lk.central != from {
		m.mu.Unlock()
		return fmt.Errorf("only the central initiates pairing")
	}
	if lk.sec != nil {
		m.mu.Unlock()
		return fmt.Errorf("pairing already in progress on handle %d", h)
	}

	lk.sec = &exchange{initParams: params}
	m.mu.Unlock()

	m.log.Debugf("authenticate on handle %d", h)
	lk.peripheral.deliver(lesc.SecParamsRequest{Handle: h, PeerParams: params})
	return nil
}

func (m *Medium) secParamsReply(from *Adapter, h lesc.Handle, status lesc.SecStatus, params *lesc.SecParams, ks *lesc.Keyset) error {
	m.mu.Lock()
	lk, sec, err := m.exchangeFor(from, h)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	var dd []delivery
	switch {
	case status != lesc.SecStatusSuccess:
		dd = m.failLocked(lk, status)

	case ks == nil:
		dd = m.failLocked(lk, lesc.SecStatusInvalidParams)

	case from == lk.peripheral:
		if params == nil {
			dd = m.failLocked(lk, lesc.SecStatusInvalidParams)
			break
		}
		if !params.LESC || !sec.initParams.LESC {
			dd = m.failLocked(lk, lesc.SecStatusPairingNotSupported)
			break
		}
		sec.respParams = *params
		sec.respPub = lesc.MarshalPublicKeyXY(ks.Public)
		dd = append(dd, delivery{lk.central, lesc.SecParamsRequest{Handle: h, PeerParams: *params}})

	default: // central; its params rode in on the authenticate command
		sec.initPub = lesc.MarshalPublicKeyXY(ks.Public)
		dd = append(dd,
			delivery{lk.central, lesc.DHKeyRequest{Handle: h, PeerPublicKey: sec.respPub}},
			delivery{lk.peripheral, lesc.DHKeyRequest{Handle: h, PeerPublicKey: sec.initPub}},
		)
	}
	m.mu.Unlock()

	m.post(dd)
	return nil
}

func (m *Medium) dhkeyReply(from *Adapter, h lesc.Handle, dhkey []byte) error {
	m.mu.Lock()
	lk, sec, err := m.exchangeFor(from, h)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if from == lk.central {
		sec.initDH = dhkey
	} else {
		sec.respDH = dhkey
	}

	var dd []delivery
	if sec.initDH != nil && sec.respDH != nil {
		switch {
		case !bytes.Equal(sec.initDH, sec.respDH):
			dd = m.failLocked(lk, lesc.SecStatusConfirmValueFailed)
		case needsPasskey(sec.initParams, sec.respParams):
			dd, err = m.startPasskeyLocked(lk, sec)
		default:
			dd, err = m.finishLocked(lk, sec)
		}
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.post(dd)
	return nil
}

func (m *Medium) authKeyReply(from *Adapter, h lesc.Handle, kt lesc.AuthKeyType, key []byte) error {
	m.mu.Lock()
	lk, sec, err := m.exchangeFor(from, h)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	var dd []delivery
	if kt != lesc.AuthKeyPasskey || from != lk.central {
		dd = m.failLocked(lk, lesc.SecStatusInvalidParams)
	} else if string(key) != sec.passkey {
		m.log.Warnf("passkey mismatch on handle %d", h)
		dd = m.failLocked(lk, lesc.SecStatusPasskeyEntryFailed)
	} else {
		dd, err = m.finishLocked(lk, sec)
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.post(dd)
	return nil
}

func (m *Medium) exchangeFor(from *Adapter, h lesc.Handle) (*link, *exchange, error) {
	lk, ok := m.links[h]
	if !ok {
		return nil, nil, fmt.Errorf("unknown handle %d", h)
	}
	if lk.central != from && lk.peripheral != from {
		return nil, nil, fmt.Errorf("handle %d does not belong to %s", h, from.addr)
	}
	if lk.sec == nil {
		return nil, nil, fmt.Errorf("no pairing in progress on handle %d", h)
	}
	return lk, lk.sec, nil
}

// needsPasskey decides the pairing method from the io capabilities
// table [Vol 3, Part H, 2.3.5.1]. Only the direction this harness
// exercises is mapped: a keyboard initiator reading a passkey off a
// display responder. Everything else falls back to just works.
func needsPasskey(init, resp lesc.SecParams) bool {
	if !init.MITM && !resp.MITM {
		return false
	}

	keyboard := init.IOCaps == lesc.IOCapsKeyboardOnly || init.IOCaps == lesc.IOCapsKeyboardDisplay
	display := resp.IOCaps == lesc.IOCapsDisplayOnly ||
		resp.IOCaps == lesc.IOCapsDisplayYesNo ||
		resp.IOCaps == lesc.IOCapsKeyboardDisplay

	return keyboard && display
}

func (m *Medium) startPasskeyLocked(lk *link, sec *exchange) ([]delivery, error) {
	sec.na = nonce()
	sec.nb = nonce()

	val, err := smpG2(sec.initPub[:32], sec.respPub[:32], sec.na, sec.nb)
	if err != nil {
		return nil, err
	}
	sec.passkey = fmt.Sprintf("%06d", val)

	return []delivery{
		{lk.peripheral, lesc.PasskeyDisplay{Handle: lk.handle, Passkey: sec.passkey}},
		{lk.central, lesc.AuthKeyRequest{Handle: lk.handle, KeyType: lesc.AuthKeyPasskey}},
	}, nil
}

func (m *Medium) finishLocked(lk *link, sec *exchange) ([]delivery, error) {
	if sec.na == nil {
		// just works, nonces were never drawn
		sec.na = nonce()
		sec.nb = nonce()
	}

	a1 := addr7(lk.central.addr)
	a2 := addr7(lk.peripheral.addr)

	_, ltk, err := smpF5(sec.initDH, sec.na, sec.nb, a1, a2)
	if err != nil {
		return nil, err
	}

	status := lesc.AuthStatus{
		Status:    lesc.SecStatusSuccess,
		Bonded:    sec.initParams.Bond && sec.respParams.Bond,
		SM1Levels: lesc.SecLevels{Level1: true, Level2: true, Level3: true, Level4: true},
		KdistOwn:  sec.respParams.KdistOwn,
		KdistPeer: sec.respParams.KdistPeer,
	}

	connSec := lesc.ConnSec{Mode: 1, Level: 4, KeySize: 16}

	if m.bonds != nil && status.Bonded {
		peer := strings.Replace(lk.central.addr.String(), ":", "", -1)
		if err := m.bonds.Save(peer, ltk, false); err != nil {
			m.log.Errorf("saving bond: %v", err)
		}
	}

	lk.sec = nil

	return []delivery{
		{lk.central, lesc.ConnSecUpdate{Handle: lk.handle, Sec: connSec}},
		{lk.peripheral, lesc.ConnSecUpdate{Handle: lk.handle, Sec: connSec}},
		{lk.central, lesc.AuthStatusEvent{Handle: lk.handle, Status: status}},
		{lk.peripheral, lesc.AuthStatusEvent{Handle: lk.handle, Status: status}},
	}, nil
}

func (m *Medium) failLocked(lk *link, status lesc.SecStatus) []delivery {
	lk.sec = nil

	st := lesc.AuthStatus{Status: status}
	return []delivery{
		{lk.central, lesc.AuthStatusEvent{Handle: lk.handle, Status: st}},
		{lk.peripheral, lesc.AuthStatusEvent{Handle: lk.handle, Status: st}},
	}
}

func nonce() []byte {
	b := make([]byte, 16)
	rand.Read(b)
	return b
}

// addr7 is the 7 byte address form f5 wants: the little-endian
// address plus its type byte, static random here.
func addr7(a lesc.Addr) []byte {
	return append(sliceops.SwapBuf(a.Bytes()), 0x01)
}
