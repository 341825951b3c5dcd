package lesc

// Adapter is the command side of one link-layer radio. Commands are
// asynchronous: an error return means the command could not be issued,
// progress and results come back as Events on the registered observers.
//
// Keyset generation and shared-secret derivation sit on the adapter
// because that is where they live in the serialized driver model, even
// though both in-tree implementations do the math host side.
type Adapter interface {
	// RegisterObserver adds an observer for this adapter's events.
	RegisterObserver(Observer)

	// Address returns the local device address.
	Address() Addr

	ScanStart() error
	SetAdvData(AdvRecords) error
	AdvertiseStart() error
	Connect(peer Addr) error
	Disconnect(Handle) error

	// Authenticate initiates pairing on a connection with the given
	// local parameters.
	Authenticate(Handle, SecParams) error

	// SecParamsReply answers a SecParamsRequest. params is nil on the
	// initiator side: its parameters were already given to Authenticate.
	SecParamsReply(h Handle, status SecStatus, params *SecParams, ks *Keyset) error

	// DHKeyReply answers a DHKeyRequest with the derived shared secret.
	DHKeyReply(h Handle, dhkey []byte) error

	// AuthKeyReply answers an AuthKeyRequest.
	AuthKeyReply(h Handle, kt AuthKeyType, key []byte) error

	// GenerateKeyset produces a fresh ECDH key pair for one pairing
	// attempt.
	GenerateKeyset() (*Keyset, error)

	// DHKey derives the shared secret from the peer's public key and a
	// locally generated keyset.
	DHKey(peerPublicKey []byte, ks *Keyset) ([]byte, error)

	// Close releases the underlying transport. Safe to call more than
	// once.
	Close() error
}
