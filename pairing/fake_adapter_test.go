package pairing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lorjala/lesc"
)

// fakeAdapter records every command and lets a test play link-layer
// events into the registered observers.
type fakeAdapter struct {
	mu        sync.Mutex
	addr      lesc.Addr
	observers []lesc.Observer
	cmds      []fakeCmd
	closed    int
}

type fakeCmd struct {
	name   string
	handle lesc.Handle
	addr   lesc.Addr
	status lesc.SecStatus
	params *lesc.SecParams
	keyset *lesc.Keyset
	key    []byte
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{addr: lesc.RandomAddr()}
}

func (f *fakeAdapter) record(c fakeCmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, c)
}

// emit plays one event into every observer, standing in for the
// adapter's dispatch goroutine.
func (f *fakeAdapter) emit(e lesc.Event) {
	f.mu.Lock()
	obs := make([]lesc.Observer, len(f.observers))
	copy(obs, f.observers)
	f.mu.Unlock()

	for _, o := range obs {
		o.HandleEvent(e)
	}
}

func (f *fakeAdapter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.cmds {
		if c.name == name {
			n++
		}
	}
	return n
}

func (f *fakeAdapter) last(name string) (fakeCmd, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.cmds) - 1; i >= 0; i-- {
		if f.cmds[i].name == name {
			return f.cmds[i], true
		}
	}
	return fakeCmd{}, false
}

// waitCmd polls until the named command was recorded.
func (f *fakeAdapter) waitCmd(t *testing.T, name string) fakeCmd {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := f.last(name); ok {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("command %q never issued", name)
	return fakeCmd{}
}

func (f *fakeAdapter) RegisterObserver(o lesc.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *fakeAdapter) Address() lesc.Addr { return f.addr }

func (f *fakeAdapter) ScanStart() error {
	f.record(fakeCmd{name: "scan"})
	return nil
}

func (f *fakeAdapter) SetAdvData(rec lesc.AdvRecords) error {
	f.record(fakeCmd{name: "advdata"})
	return nil
}

func (f *fakeAdapter) AdvertiseStart() error {
	f.record(fakeCmd{name: "advertise"})
	return nil
}

func (f *fakeAdapter) Connect(peer lesc.Addr) error {
	f.record(fakeCmd{name: "connect", addr: peer})
	return nil
}

func (f *fakeAdapter) Disconnect(h lesc.Handle) error {
	f.record(fakeCmd{name: "disconnect", handle: h})
	return nil
}

func (f *fakeAdapter) Authenticate(h lesc.Handle, params lesc.SecParams) error {
	f.record(fakeCmd{name: "authenticate", handle: h, params: &params})
	return nil
}

func (f *fakeAdapter) SecParamsReply(h lesc.Handle, status lesc.SecStatus, params *lesc.SecParams, ks *lesc.Keyset) error {
	f.record(fakeCmd{name: "secreply", handle: h, status: status, params: params, keyset: ks})
	return nil
}

func (f *fakeAdapter) DHKeyReply(h lesc.Handle, dhkey []byte) error {
	f.record(fakeCmd{name: "dhkeyreply", handle: h, key: dhkey})
	return nil
}

func (f *fakeAdapter) AuthKeyReply(h lesc.Handle, kt lesc.AuthKeyType, key []byte) error {
	f.record(fakeCmd{name: "authkeyreply", handle: h, key: key})
	return nil
}

func (f *fakeAdapter) GenerateKeyset() (*lesc.Keyset, error) {
	return lesc.GenerateKeyset()
}

func (f *fakeAdapter) DHKey(peerPublicKey []byte, ks *lesc.Keyset) ([]byte, error) {
	if ks == nil {
		return nil, fmt.Errorf("no keyset")
	}
	return lesc.DHKey(peerPublicKey, ks)
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}
