package pairing

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/lorjala/lesc"
)

// DefaultAuthTimeout bounds the wait for the terminal auth outcome.
// Generous on purpose: discovery and the human-speed passkey relay are
// both part of the exchange being timed.
const DefaultAuthTimeout = 200 * time.Second

const identityAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var identityRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandIdentity returns a random advertising identity of n uppercase
// letters and digits, unique enough to not collide with other devices
// in radio range.
func RandIdentity(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = identityAlphabet[identityRand.Intn(len(identityAlphabet))]
	}
	return string(b)
}

// Config wires one pairing run.
type Config struct {
	Central    lesc.Adapter
	Peripheral lesc.Adapter

	// Identity to advertise and scan for; random when empty.
	Identity string

	// Zero values mean the package defaults.
	ConnectTimeout time.Duration
	PasskeyTimeout time.Duration
	AuthTimeout    time.Duration
}

// Run performs one full pairing attempt: peripheral advertises first,
// central scans, connects and initiates LESC pairing, and the call
// blocks until the peripheral reports the auth outcome or the deadline
// passes. Both adapters are closed on the way out no matter how the
// attempt ended.
func Run(cfg Config) (lesc.AuthStatus, error) {
	defer func() {
		if err := cfg.Central.Close(); err != nil {
			lesc.GetLogger().Warnf("closing central adapter: %v", err)
		}
		if err := cfg.Peripheral.Close(); err != nil {
			lesc.GetLogger().Warnf("closing peripheral adapter: %v", err)
		}
	}()

	relay := NewRelay()

	peripheral := NewPeripheral(cfg.Peripheral, relay)
	central := NewCentral(cfg.Central, relay)
	central.ConnectTimeout = cfg.ConnectTimeout
	central.PasskeyTimeout = cfg.PasskeyTimeout

	identity := cfg.Identity
	if identity == "" {
		identity = RandIdentity(20)
	}

	// responder must be on air before the initiator scans
	if err := peripheral.Start(identity); err != nil {
		return lesc.AuthStatus{}, errors.Wrap(err, "starting peripheral")
	}
	if err := central.Start(identity); err != nil {
		return lesc.AuthStatus{}, errors.Wrap(err, "starting central")
	}
	defer central.Stop()
	defer peripheral.Stop()

	authTimeout := cfg.AuthTimeout
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}

	v, err := relay.AuthResult.Get(authTimeout)
	if err != nil {
		return lesc.AuthStatus{}, errors.Wrap(err, "waiting for auth status")
	}

	status := v.(lesc.AuthStatus)
	if status.Status != lesc.SecStatusSuccess {
		return status, errors.Errorf("pairing ended with status %q", status.Status)
	}

	return status, nil
}
