package lesc

// Event is a link-layer event delivered to a registered Observer.
// The set of events is closed: a role handles them through a single
// type switch, so leaving one out is visible in one place instead of
// being an unimplemented optional callback.
type Event interface {
	event()
}

// Observer receives every event the adapter delivers for its radio.
// HandleEvent is called from the adapter's dispatch goroutine; an
// implementation must not block in it except by handing off to
// another goroutine.
type Observer interface {
	HandleEvent(Event)
}

// AdvReport carries one received advertisement.
type AdvReport struct {
	PeerAddr Addr
	RSSI     int
	Records  AdvRecords
}

// Connected signals connection setup, delivered to both peers.
type Connected struct {
	Handle   Handle
	PeerAddr Addr
	Role     Role
}

// Disconnected signals the end of a connection. Reason carries the
// link-layer reason code, zero for a local disconnect.
type Disconnected struct {
	Handle Handle
	Reason uint8
}

// SecParamsRequest asks the observer to reply with its own security
// parameters and a fresh keyset via SecParamsReply.
type SecParamsRequest struct {
	Handle     Handle
	PeerParams SecParams
}

// DHKeyRequest asks the observer to derive the shared secret from the
// peer public key and reply via DHKeyReply.
type DHKeyRequest struct {
	Handle        Handle
	PeerPublicKey []byte
	OOBRequired   bool
}

// AuthKeyRequest asks the observer for an authentication key, e.g. a
// passkey typed in by the user.
type AuthKeyRequest struct {
	Handle  Handle
	KeyType AuthKeyType
}

// PasskeyDisplay tells the observer to show a passkey to the user.
type PasskeyDisplay struct {
	Handle  Handle
	Passkey string
}

// ConnSecUpdate reports a change of connection security. Informational.
type ConnSecUpdate struct {
	Handle Handle
	Sec    ConnSec
}

// AuthStatusEvent is the terminal event of a pairing attempt.
type AuthStatusEvent struct {
	Handle Handle
	Status AuthStatus
}

func (AdvReport) event()        {}
func (Connected) event()        {}
func (Disconnected) event()     {}
func (SecParamsRequest) event() {}
func (DHKeyRequest) event()     {}
func (AuthKeyRequest) event()   {}
func (PasskeyDisplay) event()   {}
func (ConnSecUpdate) event()    {}
func (AuthStatusEvent) event()  {}
