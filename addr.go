package lesc

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

var addrRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// Addr represents the address of a peer device. It's a MAC address
// on Linux; the sim package hands out static random addresses.
type Addr interface {
	String() string
	Bytes() []byte
}

// NewAddr creates an Addr from string
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

// RandomAddr creates a 6 byte static random address.
func RandomAddr() Addr {
	b := make([]byte, 6)
	addrRand.Read(b)
	// static random addresses have the two msbs set
	b[0] |= 0xc0

	parts := make([]string, 0, len(b))
	for _, bb := range b {
		parts = append(parts, fmt.Sprintf("%02x", bb))
	}
	return addr(strings.Join(parts, ":"))
}

type addr string

func (a addr) String() string {
	return string(a)
}

func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		fmt.Println("error decoding address:", err, a.String())
	}

	return out
}
