package uart

import (
	"bytes"
	"testing"

	"github.com/lorjala/lesc"
)

func roundtrip(t *testing.T, e lesc.Event) lesc.Event {
	f, err := encodeEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeEvent(f)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func Test_Codec_AdvReport(t *testing.T) {
	e := lesc.AdvReport{
		PeerAddr: lesc.NewAddr("c0:11:22:33:44:55"),
		RSSI:     -42,
		Records:  lesc.AdvRecords{CompleteLocalName: "AB12CD34EF56GH78IJ90"},
	}

	got := roundtrip(t, e).(lesc.AdvReport)
	if got.PeerAddr.String() != e.PeerAddr.String() {
		t.Fatalf("addr %v", got.PeerAddr)
	}
	if got.RSSI != -42 {
		t.Fatalf("rssi %v", got.RSSI)
	}
	name, ok := got.Records.LocalName()
	if !ok || name != "AB12CD34EF56GH78IJ90" {
		t.Fatalf("name %q %v", name, ok)
	}
}

func Test_Codec_ShortNameRecord(t *testing.T) {
	e := lesc.AdvReport{
		PeerAddr: lesc.NewAddr("c0:11:22:33:44:55"),
		Records:  lesc.AdvRecords{ShortLocalName: "AB12"},
	}

	got := roundtrip(t, e).(lesc.AdvReport)
	name, ok := got.Records.LocalName()
	if !ok || name != "AB12" {
		t.Fatalf("name %q %v", name, ok)
	}
}

func Test_Codec_Connected(t *testing.T) {
	e := lesc.Connected{Handle: 0x1234, PeerAddr: lesc.NewAddr("c0:11:22:33:44:55"), Role: lesc.RolePeripheral}

	got := roundtrip(t, e).(lesc.Connected)
	if got.Handle != 0x1234 || got.Role != lesc.RolePeripheral {
		t.Fatalf("%+v", got)
	}
	if got.PeerAddr.String() != e.PeerAddr.String() {
		t.Fatalf("addr %v", got.PeerAddr)
	}
}

func Test_Codec_SecParamsRequest(t *testing.T) {
	e := lesc.SecParamsRequest{
		Handle: 7,
		PeerParams: lesc.SecParams{
			Bond:       true,
			MITM:       true,
			LESC:       true,
			IOCaps:     lesc.IOCapsKeyboardOnly,
			MinKeySize: 7,
			MaxKeySize: 16,
			KdistOwn:   lesc.SecKdist{Enc: true, ID: true},
			KdistPeer:  lesc.SecKdist{Enc: true},
		},
	}

	got := roundtrip(t, e).(lesc.SecParamsRequest)
	if got.Handle != 7 || got.PeerParams != e.PeerParams {
		t.Fatalf("%+v", got)
	}
}

func Test_Codec_DHKeyRequest(t *testing.T) {
	ks, err := lesc.GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}
	pub := lesc.MarshalPublicKeyXY(ks.Public)

	e := lesc.DHKeyRequest{Handle: 7, PeerPublicKey: pub, OOBRequired: false}
	got := roundtrip(t, e).(lesc.DHKeyRequest)

	if !bytes.Equal(got.PeerPublicKey, pub) {
		t.Fatal("public key mangled")
	}
	if _, ok := lesc.UnmarshalPublicKey(got.PeerPublicKey); !ok {
		t.Fatal("decoded key does not parse")
	}
}

func Test_Codec_PasskeyDisplay(t *testing.T) {
	got := roundtrip(t, lesc.PasskeyDisplay{Handle: 7, Passkey: "031337"}).(lesc.PasskeyDisplay)
	if got.Passkey != "031337" {
		t.Fatalf("passkey %q", got.Passkey)
	}
}

func Test_Codec_AuthStatus(t *testing.T) {
	e := lesc.AuthStatusEvent{
		Handle: 7,
		Status: lesc.AuthStatus{
			Status:    lesc.SecStatusSuccess,
			Bonded:    true,
			SM1Levels: lesc.SecLevels{Level1: true, Level2: true, Level3: true, Level4: true},
			KdistOwn:  lesc.SecKdist{Enc: true, ID: true},
			KdistPeer: lesc.SecKdist{Enc: true, ID: true},
		},
	}

	got := roundtrip(t, e).(lesc.AuthStatusEvent)
	if got.Status != e.Status {
		t.Fatalf("%+v", got.Status)
	}
}

func Test_Codec_SecParamsReplyFrames(t *testing.T) {
	ks, err := lesc.GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}

	// initiator form carries no params
	f, err := encodeSecParamsReply(7, lesc.SecStatusSuccess, nil, ks)
	if err != nil {
		t.Fatal(err)
	}
	if f[offsetOpcode] != opSecParamsReply {
		t.Fatalf("opcode 0x%02x", f[offsetOpcode])
	}
	// handle + status + flags + pubkey
	if len(f) != headerLength+2+1+1+publicKeyLen {
		t.Fatalf("length %v", len(f))
	}

	// responder form carries params before the key
	params := lesc.SecParams{LESC: true, MinKeySize: 7}
	f, err = encodeSecParamsReply(7, lesc.SecStatusSuccess, &params, ks)
	if err != nil {
		t.Fatal(err)
	}
	if len(f) != headerLength+2+1+1+secParamsLen+publicKeyLen {
		t.Fatalf("length %v", len(f))
	}

	// a failure reply needs no keyset
	if _, err = encodeSecParamsReply(7, lesc.SecStatusPairingNotSupported, nil, nil); err != nil {
		t.Fatal(err)
	}

	// but success does
	if _, err = encodeSecParamsReply(7, lesc.SecStatusSuccess, nil, nil); err == nil {
		t.Fatal("success without keyset accepted")
	}
}

func Test_Codec_RejectsUnknownOpcode(t *testing.T) {
	if _, err := decodeEvent(appendFrame(0x7f, nil)); err == nil {
		t.Fatal("unknown opcode accepted")
	}
	if _, err := decodeEvent([]byte{0x00, 0x01}); err == nil {
		t.Fatal("malformed frame accepted")
	}
}
