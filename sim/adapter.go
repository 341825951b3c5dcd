package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/lorjala/lesc"
)

const (
	evtQueueSize = 32

	// how often a scanner hears each advertiser
	advInterval = 20 * time.Millisecond

	simRSSI = -40

	remoteUserTerminated = 0x13
)

// Adapter is one simulated radio. It implements lesc.Adapter; all
// events are delivered from a single dispatch goroutine, mirroring the
// per-adapter event thread of the serialized driver.
type Adapter struct {
	medium *Medium
	addr   lesc.Addr
	log    lesc.Logger

	evq       chan lesc.Event
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	observers   []lesc.Observer
	advData     lesc.AdvRecords
	advertising bool
	scanStop    chan struct{}
}

func (a *Adapter) RegisterObserver(o lesc.Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *Adapter) Address() lesc.Addr { return a.addr }

func (a *Adapter) ScanStart() error {
	a.mu.Lock()
	if a.scanStop != nil {
		a.mu.Unlock()
		return fmt.Errorf("already scanning")
	}
	stop := make(chan struct{})
	a.scanStop = stop
	a.mu.Unlock()

	go a.scanLoop(stop)
	return nil
}

// scanLoop feeds the scanner a report for every advertiser on each
// interval. Reports repeat until the scan stops, so a slow connector
// sees plenty of duplicates, the same as on a real radio.
func (a *Adapter) scanLoop(stop chan struct{}) {
	ticker := time.NewTicker(advInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-a.done:
			return
		case <-ticker.C:
			for _, adv := range a.medium.advertisers(a) {
				a.deliver(lesc.AdvReport{
					PeerAddr: adv.addr,
					RSSI:     simRSSI,
					Records:  adv.advRecords(),
				})
			}
		}
	}
}

func (a *Adapter) stopScan() {
	a.mu.Lock()
	if a.scanStop != nil {
		close(a.scanStop)
		a.scanStop = nil
	}
	a.mu.Unlock()
}

func (a *Adapter) SetAdvData(rec lesc.AdvRecords) error {
	a.mu.Lock()
	a.advData = rec
	a.mu.Unlock()
	return nil
}

func (a *Adapter) AdvertiseStart() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.advData.LocalName(); !ok {
		return fmt.Errorf("no adv data set")
	}
	a.advertising = true
	return nil
}

func (a *Adapter) isAdvertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.advertising
}

func (a *Adapter) stopAdvertising() {
	a.mu.Lock()
	a.advertising = false
	a.mu.Unlock()
}

func (a *Adapter) advRecords() lesc.AdvRecords {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.advData
}

func (a *Adapter) Connect(peer lesc.Addr) error {
	return a.medium.connect(a, peer)
}

func (a *Adapter) Disconnect(h lesc.Handle) error {
	return a.medium.disconnect(a, h)
}

func (a *Adapter) Authenticate(h lesc.Handle, params lesc.SecParams) error {
	return a.medium.authenticate(a, h, params)
}

func (a *Adapter) SecParamsReply(h lesc.Handle, status lesc.SecStatus, params *lesc.SecParams, ks *lesc.Keyset) error {
	return a.medium.secParamsReply(a, h, status, params, ks)
}

func (a *Adapter) DHKeyReply(h lesc.Handle, dhkey []byte) error {
	return a.medium.dhkeyReply(a, h, dhkey)
}

func (a *Adapter) AuthKeyReply(h lesc.Handle, kt lesc.AuthKeyType, key []byte) error {
	return a.medium.authKeyReply(a, h, kt, key)
}

func (a *Adapter) GenerateKeyset() (*lesc.Keyset, error) {
	return lesc.GenerateKeyset()
}

func (a *Adapter) DHKey(peerPublicKey []byte, ks *lesc.Keyset) ([]byte, error) {
	return lesc.DHKey(peerPublicKey, ks)
}

// Close detaches the adapter from the medium and stops event
// dispatch. Safe to call more than once.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.stopScan()
		a.stopAdvertising()
		a.medium.detach(a)
		close(a.done)
	})
	return nil
}

// deliver queues one event for the dispatch goroutine. Events for a
// closed adapter are dropped.
func (a *Adapter) deliver(e lesc.Event) {
	select {
	case a.evq <- e:
	case <-a.done:
	}
}

func (a *Adapter) dispatch() {
	for {
		select {
		case <-a.done:
			return
		case e := <-a.evq:
			a.mu.Lock()
			obs := make([]lesc.Observer, len(a.observers))
			copy(obs, a.observers)
			a.mu.Unlock()

			for _, o := range obs {
				o.HandleEvent(e)
			}
		}
	}
}
