// Package bond persists the keys a successful pairing distributed so
// a later connection can re-encrypt without pairing again.
package bond

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// Record is one stored bond.
type Record struct {
	Address     string `json:"address"`
	LongTermKey string `json:"longTermKey"`
	Legacy      bool   `json:"legacy"`
}

type bondFile struct {
	Bonds []Record `json:"bonds"`
}

// Store keeps bond records in a JSON file, keyed by the peer address
// in plain hex (no separators). Safe for concurrent use.
type Store struct {
	filename string
	lock     sync.RWMutex
}

func NewStore(filename string) *Store {
	return &Store{filename: filename}
}

// Save stores or replaces the record for addr.
func (s *Store) Save(addr string, ltk []byte, legacy bool) error {
	if len(addr) != 12 {
		return fmt.Errorf("invalid address %q", addr)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	bonds, err := s.load()
	if err != nil {
		return err
	}

	rec := Record{
		Address:     addr,
		LongTermKey: hex.EncodeToString(ltk),
		Legacy:      legacy,
	}

	replaced := false
	for i, b := range bonds.Bonds {
		if b.Address == addr {
			bonds.Bonds[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		bonds.Bonds = append(bonds.Bonds, rec)
	}

	return s.store(bonds)
}

// Find returns the long term key stored for addr.
func (s *Store) Find(addr string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	bonds, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, b := range bonds.Bonds {
		if b.Address == addr {
			ltk, err := hex.DecodeString(b.LongTermKey)
			if err != nil {
				return nil, fmt.Errorf("corrupt bond for %s: %v", addr, err)
			}
			return ltk, nil
		}
	}

	return nil, fmt.Errorf("no bond for %s", addr)
}

func (s *Store) Exists(addr string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	bonds, err := s.load()
	if err != nil {
		return false
	}

	for _, b := range bonds.Bonds {
		if b.Address == addr {
			return true
		}
	}

	return false
}

// Delete removes the record for addr, if any.
func (s *Store) Delete(addr string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	bonds, err := s.load()
	if err != nil {
		return err
	}

	out := bonds.Bonds[:0]
	for _, b := range bonds.Bonds {
		if b.Address != addr {
			out = append(out, b)
		}
	}
	bonds.Bonds = out

	return s.store(bonds)
}

func (s *Store) load() (*bondFile, error) {
	bonds := &bondFile{}

	raw, err := ioutil.ReadFile(s.filename)
	if os.IsNotExist(err) {
		return bonds, nil
	}
	if err != nil {
		return nil, err
	}

	if err := jsoniter.Unmarshal(raw, bonds); err != nil {
		return nil, err
	}

	return bonds, nil
}

func (s *Store) store(bonds *bondFile) error {
	raw, err := jsoniter.Marshal(bonds)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(s.filename, raw, 0600)
}
