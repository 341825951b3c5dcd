package lesc

import (
	"bytes"
	"testing"
)

func Test_Keyset_SharedSecret(t *testing.T) {
	k1, err := GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}

	s1, err := DHKey(MarshalPublicKeyXY(k2.Public), k1)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := DHKey(MarshalPublicKeyXY(k1.Public), k2)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(s1, s2) {
		t.Fatal("shared secrets differ")
	}
	if len(s1) != 32 {
		t.Fatalf("secret length %v", len(s1))
	}
}

func Test_PublicKey_Roundtrip(t *testing.T) {
	k, err := GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}

	w := MarshalPublicKeyXY(k.Public)
	if len(w) != 64 {
		t.Fatalf("wire length %v", len(w))
	}

	pk, ok := UnmarshalPublicKey(w)
	if !ok {
		t.Fatal("unmarshal err")
	}

	if !bytes.Equal(MarshalPublicKeyXY(pk), w) {
		t.Fatal("roundtrip mismatch")
	}

	if !bytes.Equal(MarshalPublicKeyX(k.Public), w[:32]) {
		t.Fatal("x coordinate mismatch")
	}

	if _, ok := UnmarshalPublicKey(w[:63]); ok {
		t.Fatal("short key accepted")
	}
}
