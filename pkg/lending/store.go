package lending

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store is the authoritative ledger: the account → position mapping plus the
// two global counters. Positions are cached in memory and, when a database is
// configured, persisted to Pebble as JSON. The store holds pure data; all
// precondition logic lives in the engine.
type Store struct {
	mu sync.RWMutex

	db *pebble.DB // nil for a memory-only store

	positions       map[common.Address]*Position
	totalCollateral *big.Int
	totalLoans      *big.Int

	nextEventSeq uint64
}

// NewMemoryStore creates a store with no persistence. Used by tests and any
// caller that wants the ledger isolated in memory.
func NewMemoryStore() *Store {
	return &Store{
		positions:       make(map[common.Address]*Position),
		totalCollateral: big.NewInt(0),
		totalLoans:      big.NewInt(0),
	}
}

// NewStore opens (or creates) a Pebble-backed store at dbPath and loads the
// global counters and event sequence from it.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	s := &Store{
		db:              db,
		positions:       make(map[common.Address]*Position),
		totalCollateral: big.NewInt(0),
		totalLoans:      big.NewInt(0),
	}
	if err := s.loadTotals(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadEventSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns a clone of the account's position, a zero-valued one if the
// account has never been seen. Never fails: a missing position and a zero
// position are the same thing.
func (s *Store) Get(addr common.Address) *Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(addr).Clone()
}

func (s *Store) getLocked(addr common.Address) *Position {
	if pos, ok := s.positions[addr]; ok {
		return pos
	}
	pos := s.loadPosition(addr)
	if pos == nil {
		pos = NewPosition(addr)
	}
	s.positions[addr] = pos
	return pos
}

// Put replaces the account's position.
func (s *Store) Put(addr common.Address, pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := pos.Clone()
	stored.Account = addr
	s.positions[addr] = stored
	return s.savePosition(stored)
}

// Positions returns a snapshot of every cached position. Pebble-resident
// positions that were never touched this run are included too.
func (s *Store) Positions() []*Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[common.Address]bool, len(s.positions))
	out := make([]*Position, 0, len(s.positions))
	for addr, pos := range s.positions {
		seen[addr] = true
		out = append(out, pos.Clone())
	}

	if s.db != nil {
		prefix := []byte(prefixPosition)
		iter, err := s.db.NewIter(&pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: keyUpperBound(prefix),
		})
		if err == nil {
			defer iter.Close()
			for iter.First(); iter.Valid(); iter.Next() {
				var pos Position
				if err := json.Unmarshal(iter.Value(), &pos); err != nil {
					continue
				}
				if !seen[pos.Account] {
					out = append(out, pos.normalize())
				}
			}
		}
	}
	return out
}

// TotalCollateral returns a copy of the global collateral counter.
func (s *Store) TotalCollateral() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.totalCollateral)
}

// TotalLoans returns a copy of the global outstanding-principal counter.
// Accrued interest is tracked per account only and never included here.
func (s *Store) TotalLoans() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.totalLoans)
}

// AddCollateral increases the global collateral counter.
func (s *Store) AddCollateral(delta *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCollateral = new(big.Int).Add(s.totalCollateral, delta)
	return s.saveTotals()
}

// SubCollateral decreases the global collateral counter. ErrUnderflow here
// means engine bookkeeping diverged from per-account state.
func (s *Store) SubCollateral(delta *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalCollateral.Cmp(delta) < 0 {
		return fmt.Errorf("%w: total collateral %s, sub %s", ErrUnderflow, s.totalCollateral, delta)
	}
	s.totalCollateral = new(big.Int).Sub(s.totalCollateral, delta)
	return s.saveTotals()
}

// AddLoans increases the global outstanding-principal counter.
func (s *Store) AddLoans(delta *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalLoans = new(big.Int).Add(s.totalLoans, delta)
	return s.saveTotals()
}

// SubLoans decreases the global outstanding-principal counter.
func (s *Store) SubLoans(delta *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalLoans.Cmp(delta) < 0 {
		return fmt.Errorf("%w: total loans %s, sub %s", ErrUnderflow, s.totalLoans, delta)
	}
	s.totalLoans = new(big.Int).Sub(s.totalLoans, delta)
	return s.saveTotals()
}

// AppendEvent assigns the next sequence number, persists the event, and
// returns it.
func (s *Store) AppendEvent(evt Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt.Seq = s.nextEventSeq
	s.nextEventSeq++

	if s.db == nil {
		return evt, nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return evt, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.db.Set(eventKey(evt.Seq), data, pebble.NoSync); err != nil {
		return evt, fmt.Errorf("failed to save event: %w", err)
	}
	return evt, nil
}

// RecentEvents returns up to limit persisted events, newest first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil || limit <= 0 {
		return nil, nil
	}
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var events []Event
	for iter.Last(); iter.Valid() && len(events) < limit; iter.Prev() {
		var evt Event
		if err := json.Unmarshal(iter.Value(), &evt); err != nil {
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

// ===== persistence helpers (no-ops on a memory store) =====

func (s *Store) savePosition(pos *Position) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	if err := s.db.Set(positionKey(pos.Account), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

func (s *Store) loadPosition(addr common.Address) *Position {
	if s.db == nil {
		return nil
	}
	data, closer, err := s.db.Get(positionKey(addr))
	if err != nil {
		return nil
	}
	defer closer.Close()

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil
	}
	return pos.normalize()
}

type storedTotals struct {
	Collateral *big.Int `json:"collateral"`
	Loans      *big.Int `json:"loans"`
}

func (s *Store) saveTotals() error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(storedTotals{Collateral: s.totalCollateral, Loans: s.totalLoans})
	if err != nil {
		return err
	}
	if err := s.db.Set([]byte(keyTotals), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save totals: %w", err)
	}
	return nil
}

func (s *Store) loadTotals() error {
	data, closer, err := s.db.Get([]byte(keyTotals))
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load totals: %w", err)
	}
	defer closer.Close()

	var totals storedTotals
	if err := json.Unmarshal(data, &totals); err != nil {
		return fmt.Errorf("failed to decode totals: %w", err)
	}
	if totals.Collateral != nil {
		s.totalCollateral = totals.Collateral
	}
	if totals.Loans != nil {
		s.totalLoans = totals.Loans
	}
	return nil
}

func (s *Store) loadEventSeq() error {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() && iter.Valid() {
		var evt Event
		if err := json.Unmarshal(iter.Value(), &evt); err == nil {
			s.nextEventSeq = evt.Seq + 1
		}
	}
	return nil
}
