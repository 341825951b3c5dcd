package uart

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/sliceops"
)

// Commands travel host to device, events come back. Opcodes with the
// high bit set are events.
const (
	opScanStart      = 0x01
	opSetAdvData     = 0x02
	opAdvertiseStart = 0x03
	opConnect        = 0x04
	opDisconnect     = 0x05
	opAuthenticate   = 0x06
	opSecParamsReply = 0x07
	opDHKeyReply     = 0x08
	opAuthKeyReply   = 0x09
	opAddressGet     = 0x0a

	opAddress          = 0x80
	opAdvReport        = 0x81
	opConnected        = 0x82
	opDisconnected     = 0x83
	opSecParamsRequest = 0x84
	opDHKeyRequest     = 0x85
	opAuthKeyRequest   = 0x86
	opPasskeyDisplay   = 0x87
	opConnSecUpdate    = 0x88
	opAuthStatus       = 0x89
)

// assigned-numbers AD types carried in adv payloads
const (
	adTypeNameShort = 0x08
	adTypeNameComp  = 0x09
)

const publicKeyLen = 64

var errShortPayload = errors.New("uart: short payload")

// flag bits of the sec params wire form
const (
	spBond     = 0x01
	spMITM     = 0x02
	spLESC     = 0x04
	spKeypress = 0x08
	spOOB      = 0x10
)

func appendSecParams(b []byte, p lesc.SecParams) []byte {
	var flags byte
	if p.Bond {
		flags |= spBond
	}
	if p.MITM {
		flags |= spMITM
	}
	if p.LESC {
		flags |= spLESC
	}
	if p.Keypress {
		flags |= spKeypress
	}
	if p.OOB {
		flags |= spOOB
	}
	return append(b, flags, byte(p.IOCaps), p.MinKeySize, p.MaxKeySize,
		kdistByte(p.KdistOwn), kdistByte(p.KdistPeer))
}

const secParamsLen = 6

func parseSecParams(b []byte) (lesc.SecParams, error) {
	if len(b) < secParamsLen {
		return lesc.SecParams{}, errShortPayload
	}
	flags := b[0]
	return lesc.SecParams{
		Bond:       flags&spBond != 0,
		MITM:       flags&spMITM != 0,
		LESC:       flags&spLESC != 0,
		Keypress:   flags&spKeypress != 0,
		OOB:        flags&spOOB != 0,
		IOCaps:     lesc.IOCaps(b[1]),
		MinKeySize: b[2],
		MaxKeySize: b[3],
		KdistOwn:   parseKdist(b[4]),
		KdistPeer:  parseKdist(b[5]),
	}, nil
}

func kdistByte(k lesc.SecKdist) byte {
	var b byte
	if k.Enc {
		b |= 0x01
	}
	if k.ID {
		b |= 0x02
	}
	if k.Sign {
		b |= 0x04
	}
	if k.Link {
		b |= 0x08
	}
	return b
}

func parseKdist(b byte) lesc.SecKdist {
	return lesc.SecKdist{
		Enc:  b&0x01 != 0,
		ID:   b&0x02 != 0,
		Sign: b&0x04 != 0,
		Link: b&0x08 != 0,
	}
}

func levelsByte(l lesc.SecLevels) byte {
	var b byte
	if l.Level1 {
		b |= 0x01
	}
	if l.Level2 {
		b |= 0x02
	}
	if l.Level3 {
		b |= 0x04
	}
	if l.Level4 {
		b |= 0x08
	}
	return b
}

func parseLevels(b byte) lesc.SecLevels {
	return lesc.SecLevels{
		Level1: b&0x01 != 0,
		Level2: b&0x02 != 0,
		Level3: b&0x04 != 0,
		Level4: b&0x08 != 0,
	}
}

// addresses go out little-endian, display order reversed
func appendAddr(b []byte, a lesc.Addr) []byte {
	return append(b, sliceops.SwapBuf(a.Bytes())...)
}

func parseAddr(b []byte) (lesc.Addr, error) {
	if len(b) < 6 {
		return nil, errShortPayload
	}
	be := sliceops.SwapBuf(b[:6])
	parts := make([]string, 0, len(be))
	for _, v := range be {
		parts = append(parts, fmt.Sprintf("%02x", v))
	}
	return lesc.NewAddr(strings.Join(parts, ":")), nil
}

func appendHandle(b []byte, h lesc.Handle) []byte {
	var hb [2]byte
	binary.LittleEndian.PutUint16(hb[:], uint16(h))
	return append(b, hb[:]...)
}

func parseHandle(b []byte) (lesc.Handle, error) {
	if len(b) < 2 {
		return 0, errShortPayload
	}
	return lesc.Handle(binary.LittleEndian.Uint16(b)), nil
}

// appendAdvData flattens adv records into assigned-numbers AD
// structures. Raw, when set, is already in that form.
func appendAdvData(b []byte, rec lesc.AdvRecords) []byte {
	if len(rec.Raw) != 0 {
		return append(b, rec.Raw...)
	}
	if rec.CompleteLocalName != "" {
		b = append(b, byte(len(rec.CompleteLocalName)+1), adTypeNameComp)
		b = append(b, rec.CompleteLocalName...)
	}
	if rec.ShortLocalName != "" {
		b = append(b, byte(len(rec.ShortLocalName)+1), adTypeNameShort)
		b = append(b, rec.ShortLocalName...)
	}
	return b
}

func parseAdvData(b []byte) lesc.AdvRecords {
	rec := lesc.AdvRecords{Raw: b}
	for len(b) >= 2 {
		sz := int(b[0])
		if sz == 0 || sz+1 > len(b) {
			break
		}
		typ, data := b[1], b[2:sz+1]
		switch typ {
		case adTypeNameComp:
			rec.CompleteLocalName = string(data)
		case adTypeNameShort:
			rec.ShortLocalName = string(data)
		}
		b = b[sz+1:]
	}
	return rec
}

// command frames

func encodeScanStart() []byte      { return appendFrame(opScanStart, nil) }
func encodeAdvertiseStart() []byte { return appendFrame(opAdvertiseStart, nil) }
func encodeAddressGet() []byte     { return appendFrame(opAddressGet, nil) }

func encodeSetAdvData(rec lesc.AdvRecords) []byte {
	return appendFrame(opSetAdvData, appendAdvData(nil, rec))
}

func encodeConnect(peer lesc.Addr) []byte {
	return appendFrame(opConnect, appendAddr(nil, peer))
}

func encodeDisconnect(h lesc.Handle) []byte {
	return appendFrame(opDisconnect, appendHandle(nil, h))
}

func encodeAuthenticate(h lesc.Handle, params lesc.SecParams) []byte {
	p := appendHandle(nil, h)
	return appendFrame(opAuthenticate, appendSecParams(p, params))
}

func encodeSecParamsReply(h lesc.Handle, status lesc.SecStatus, params *lesc.SecParams, ks *lesc.Keyset) ([]byte, error) {
	p := appendHandle(nil, h)
	p = append(p, byte(status))

	var flags byte
	if params != nil {
		flags |= 0x01
	}
	p = append(p, flags)
	if params != nil {
		p = appendSecParams(p, *params)
	}

	if status == lesc.SecStatusSuccess {
		if ks == nil {
			return nil, errors.New("uart: success reply without a keyset")
		}
		p = append(p, lesc.MarshalPublicKeyXY(ks.Public)...)
	}
	return appendFrame(opSecParamsReply, p), nil
}

func encodeDHKeyReply(h lesc.Handle, dhkey []byte) []byte {
	return appendFrame(opDHKeyReply, append(appendHandle(nil, h), dhkey...))
}

func encodeAuthKeyReply(h lesc.Handle, kt lesc.AuthKeyType, key []byte) []byte {
	p := append(appendHandle(nil, h), byte(kt))
	return appendFrame(opAuthKeyReply, append(p, key...))
}

// decodeEvent turns a whole frame into its event. opAddress is not an
// observer event and is handled before this in the read path.
func decodeEvent(f []byte) (lesc.Event, error) {
	if len(f) < headerLength || f[0] != frameStart {
		return nil, errors.New("uart: malformed frame")
	}
	op, p := f[offsetOpcode], f[headerLength:]

	switch op {
	case opAdvReport:
		if len(p) < 7 {
			return nil, errShortPayload
		}
		a, err := parseAddr(p)
		if err != nil {
			return nil, err
		}
		return lesc.AdvReport{
			PeerAddr: a,
			RSSI:     int(int8(p[6])),
			Records:  parseAdvData(p[7:]),
		}, nil

	case opConnected:
		if len(p) < 9 {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		a, err := parseAddr(p[3:])
		if err != nil {
			return nil, err
		}
		return lesc.Connected{Handle: h, Role: lesc.Role(p[2]), PeerAddr: a}, nil

	case opDisconnected:
		if len(p) < 3 {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		return lesc.Disconnected{Handle: h, Reason: p[2]}, nil

	case opSecParamsRequest:
		h, err := parseHandle(p)
		if err != nil {
			return nil, err
		}
		params, err := parseSecParams(p[2:])
		if err != nil {
			return nil, err
		}
		return lesc.SecParamsRequest{Handle: h, PeerParams: params}, nil

	case opDHKeyRequest:
		if len(p) < 3+publicKeyLen {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		pub := make([]byte, publicKeyLen)
		copy(pub, p[3:])
		return lesc.DHKeyRequest{Handle: h, OOBRequired: p[2] != 0, PeerPublicKey: pub}, nil

	case opAuthKeyRequest:
		if len(p) < 3 {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		return lesc.AuthKeyRequest{Handle: h, KeyType: lesc.AuthKeyType(p[2])}, nil

	case opPasskeyDisplay:
		h, err := parseHandle(p)
		if err != nil {
			return nil, err
		}
		return lesc.PasskeyDisplay{Handle: h, Passkey: string(p[2:])}, nil

	case opConnSecUpdate:
		if len(p) < 5 {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		return lesc.ConnSecUpdate{
			Handle: h,
			Sec:    lesc.ConnSec{Mode: p[2], Level: p[3], KeySize: p[4]},
		}, nil

	case opAuthStatus:
		if len(p) < 9 {
			return nil, errShortPayload
		}
		h, _ := parseHandle(p)
		return lesc.AuthStatusEvent{
			Handle: h,
			Status: lesc.AuthStatus{
				Status:    lesc.SecStatus(p[2]),
				ErrorSrc:  p[3],
				Bonded:    p[4] != 0,
				SM1Levels: parseLevels(p[5]),
				SM2Levels: parseLevels(p[6]),
				KdistOwn:  parseKdist(p[7]),
				KdistPeer: parseKdist(p[8]),
			},
		}, nil
	}

	return nil, errors.Errorf("uart: unknown event opcode 0x%02x", op)
}

// encodeEvent is the device side of decodeEvent. The adapter never
// sends events; it exists for loopback rigs and the codec tests.
func encodeEvent(e lesc.Event) ([]byte, error) {
	switch e := e.(type) {
	case lesc.AdvReport:
		p := appendAddr(nil, e.PeerAddr)
		p = append(p, byte(int8(e.RSSI)))
		return appendFrame(opAdvReport, appendAdvData(p, e.Records)), nil

	case lesc.Connected:
		p := appendHandle(nil, e.Handle)
		p = append(p, byte(e.Role))
		return appendFrame(opConnected, appendAddr(p, e.PeerAddr)), nil

	case lesc.Disconnected:
		p := appendHandle(nil, e.Handle)
		return appendFrame(opDisconnected, append(p, e.Reason)), nil

	case lesc.SecParamsRequest:
		p := appendHandle(nil, e.Handle)
		return appendFrame(opSecParamsRequest, appendSecParams(p, e.PeerParams)), nil

	case lesc.DHKeyRequest:
		if len(e.PeerPublicKey) != publicKeyLen {
			return nil, errors.New("uart: bad public key length")
		}
		p := appendHandle(nil, e.Handle)
		var oob byte
		if e.OOBRequired {
			oob = 1
		}
		p = append(p, oob)
		return appendFrame(opDHKeyRequest, append(p, e.PeerPublicKey...)), nil

	case lesc.AuthKeyRequest:
		p := appendHandle(nil, e.Handle)
		return appendFrame(opAuthKeyRequest, append(p, byte(e.KeyType))), nil

	case lesc.PasskeyDisplay:
		p := appendHandle(nil, e.Handle)
		return appendFrame(opPasskeyDisplay, append(p, e.Passkey...)), nil

	case lesc.ConnSecUpdate:
		p := appendHandle(nil, e.Handle)
		return appendFrame(opConnSecUpdate, append(p, e.Sec.Mode, e.Sec.Level, e.Sec.KeySize)), nil

	case lesc.AuthStatusEvent:
		p := appendHandle(nil, e.Handle)
		var bonded byte
		if e.Status.Bonded {
			bonded = 1
		}
		p = append(p, byte(e.Status.Status), e.Status.ErrorSrc, bonded,
			levelsByte(e.Status.SM1Levels), levelsByte(e.Status.SM2Levels),
			kdistByte(e.Status.KdistOwn), kdistByte(e.Status.KdistPeer))
		return appendFrame(opAuthStatus, p), nil
	}

	return nil, errors.Errorf("uart: unencodable event %T", e)
}

func encodeAddress(a lesc.Addr) []byte {
	return appendFrame(opAddress, appendAddr(nil, a))
}
