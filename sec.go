package lesc

// Handle identifies one established connection on an adapter. It is
// assigned by the link layer on connection setup and is dead after
// the disconnect for it comes in.
type Handle uint16

// Role of the local device on a connection.
type Role uint8

const (
	RoleCentral    Role = 0x00
	RolePeripheral Role = 0x01
)

func (r Role) String() string {
	if r == RoleCentral {
		return "central"
	}
	return "peripheral"
}

// IOCaps are the io capabilities exchanged during pairing
// [Vol 3, Part H, 3.5.1].
type IOCaps uint8

const (
	IOCapsDisplayOnly IOCaps = iota
	IOCapsDisplayYesNo
	IOCapsKeyboardOnly
	IOCapsNone
	IOCapsKeyboardDisplay
)

// SecStatus is the status of a security procedure. Success is the only
// value the orchestrator accepts; everything else fails the attempt.
type SecStatus uint8

const (
	SecStatusSuccess SecStatus = iota
	SecStatusTimeout
	SecStatusPasskeyEntryFailed
	SecStatusOOBNotAvailable
	SecStatusAuthReqNotMet
	SecStatusConfirmValueFailed
	SecStatusPairingNotSupported
	SecStatusInvalidParams
	SecStatusUnspecified
)

var secStatusStrings = map[SecStatus]string{
	SecStatusSuccess:             "success",
	SecStatusTimeout:             "timeout",
	SecStatusPasskeyEntryFailed:  "passkey entry failed",
	SecStatusOOBNotAvailable:     "oob not available",
	SecStatusAuthReqNotMet:       "auth requirements not met",
	SecStatusConfirmValueFailed:  "confirm value failed",
	SecStatusPairingNotSupported: "pairing not supported",
	SecStatusInvalidParams:       "invalid parameters",
	SecStatusUnspecified:         "unspecified",
}

func (s SecStatus) String() string {
	if str, ok := secStatusStrings[s]; ok {
		return str
	}
	return "unknown"
}

// SecKdist selects which keys a side distributes.
type SecKdist struct {
	Enc  bool // encryption key (LTK)
	ID   bool // identity key (IRK)
	Sign bool // signing key (CSRK)
	Link bool // derived link key
}

// SecParams are one side's view of the negotiated security parameters.
type SecParams struct {
	Bond       bool
	MITM       bool
	LESC       bool
	Keypress   bool
	IOCaps     IOCaps
	OOB        bool
	MinKeySize uint8
	MaxKeySize uint8
	KdistOwn   SecKdist
	KdistPeer  SecKdist
}

// AuthKeyType tags an authentication key request/reply.
type AuthKeyType uint8

const (
	AuthKeyNone AuthKeyType = iota
	AuthKeyPasskey
	AuthKeyOOB
)

// SecLevels reports which security mode levels a connection reached.
type SecLevels struct {
	Level1 bool
	Level2 bool
	Level3 bool
	Level4 bool
}

// ConnSec describes the current security of a connection, delivered
// with a connection-security-update event.
type ConnSec struct {
	Mode    uint8
	Level   uint8
	KeySize uint8
}

// AuthStatus is the terminal outcome of one pairing attempt.
type AuthStatus struct {
	Status    SecStatus
	ErrorSrc  uint8
	Bonded    bool
	SM1Levels SecLevels
	SM2Levels SecLevels
	KdistOwn  SecKdist
	KdistPeer SecKdist
}
