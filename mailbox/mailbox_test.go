package mailbox

import (
	"sync"
	"testing"
	"time"
)

func Test_Mailbox_FIFO(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Put(i)
	}

	for i := 0; i < 5; i++ {
		v, err := m.Get(time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if v.(int) != i {
			t.Fatalf("expected %v, got %v", i, v)
		}
	}

	if m.Len() != 0 {
		t.Fatalf("leftover values: %v", m.Len())
	}
}

func Test_Mailbox_Timeout(t *testing.T) {
	m := New()

	start := time.Now()
	_, err := m.Get(50 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("returned before the deadline")
	}
}

func Test_Mailbox_WakesBlockedGet(t *testing.T) {
	m := New()

	done := make(chan interface{}, 1)
	go func() {
		v, err := m.Get(5 * time.Second)
		if err != nil {
			done <- err
			return
		}
		done <- v
	}()

	// let the getter block first
	time.Sleep(20 * time.Millisecond)
	m.Put("passkey")

	select {
	case v := <-done:
		if v != "passkey" {
			t.Fatalf("got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("getter never woke up")
	}
}

func Test_Mailbox_ExactlyOnce(t *testing.T) {
	m := New()

	const n = 50
	var wg sync.WaitGroup
	got := make(chan interface{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(5 * time.Second)
			if err != nil {
				return
			}
			got <- v
		}()
	}

	for i := 0; i < n; i++ {
		m.Put(i)
	}
	wg.Wait()
	close(got)

	seen := map[interface{}]bool{}
	for v := range got {
		if seen[v] {
			t.Fatalf("value %v delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("delivered %v of %v values", len(seen), n)
	}
}
