package lesc

import (
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	ecdh "github.com/wsddn/go-ecdh"

	"github.com/lorjala/lesc/sliceops"
)

// Keyset is the ECDH key pair generated for a single pairing attempt.
// It is handed to SecParamsReply and thrown away when the attempt ends.
type Keyset struct {
	Public  crypto.PublicKey
	Private crypto.PrivateKey
}

// GenerateKeyset creates a fresh P-256 key pair.
func GenerateKeyset() (*Keyset, error) {
	var err error
	ks := Keyset{}
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ks.Private, ks.Public, err = e.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &ks, nil
}

// UnmarshalPublicKey decodes a public key from the 64 byte
// little-endian X||Y wire form.
func UnmarshalPublicKey(b []byte) (crypto.PublicKey, bool) {
	if len(b) != 64 {
		return nil, false
	}

	e := ecdh.NewEllipticECDH(elliptic.P256())
	xs := sliceops.SwapBuf(b[:32])
	ys := sliceops.SwapBuf(b[32:])

	// uncompressed point header
	r := append([]byte{0x04}, xs...)
	r = append(r, ys...)

	return e.Unmarshal(r)
}

// MarshalPublicKeyXY encodes a public key to the 64 byte little-endian
// X||Y wire form.
func MarshalPublicKeyXY(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:] // strip point header
	x := sliceops.SwapBuf(ba[:32])
	y := sliceops.SwapBuf(ba[32:])

	return append(x, y...)
}

// MarshalPublicKeyX encodes the X coordinate only, little-endian.
func MarshalPublicKeyX(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:]

	return sliceops.SwapBuf(ba[:32])
}

// DHKey derives the little-endian shared secret between a local keyset
// and the peer's wire-form public key.
func DHKey(peerPublicKey []byte, ks *Keyset) ([]byte, error) {
	if ks == nil {
		return nil, fmt.Errorf("nil keyset")
	}

	pub, ok := UnmarshalPublicKey(peerPublicKey)
	if !ok {
		return nil, fmt.Errorf("bad peer public key")
	}

	e := ecdh.NewEllipticECDH(elliptic.P256())
	b, err := e.GenerateSharedSecret(ks.Private, pub)
	if err != nil {
		return nil, err
	}

	return sliceops.SwapBuf(b), nil
}
