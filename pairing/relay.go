package pairing

import (
	"github.com/lorjala/lesc/mailbox"
)

// Relay bundles the mailboxes shared between the two roles of one
// pairing attempt: the passkey displayed by one side and entered by
// the other, and the terminal auth outcome the orchestrator waits on.
//
// A Relay serves a single attempt at a time. Running concurrent
// attempts would need a relay keyed by connection handle, otherwise
// values cross-deliver between attempts.
type Relay struct {
	Passkey    *mailbox.Mailbox
	AuthResult *mailbox.Mailbox
}

func NewRelay() *Relay {
	return &Relay{
		Passkey:    mailbox.New(),
		AuthResult: mailbox.New(),
	}
}
