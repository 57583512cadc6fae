package state

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/model"
)

type allowanceKey struct {
	Owner   common.Address
	Spender common.Address
}

type revision struct {
	id           int
	journalIndex int
}

// StateDB is the journaled world state shared by every contract in the
// process: native currency, token balances and allowances, contract storage
// slots and emitted logs. Changes made inside Atomic are undone as a unit
// when the callback fails.
type StateDB struct {
	native     map[common.Address]*uint256.Int
	tokens     map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[allowanceKey]*uint256.Int
	slots      map[common.Address]map[string]*uint256.Int
	logs       []*types.Log

	journal        []journalEntry
	validRevisions []revision
	nextRevisionID int
	depth          int
}

func New() *StateDB {
	return &StateDB{
		native:     make(map[common.Address]*uint256.Int),
		tokens:     make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[allowanceKey]*uint256.Int),
		slots:      make(map[common.Address]map[string]*uint256.Int),
	}
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id, len(s.journal)})
	return id
}

// RevertToSnapshot undoes every change made since the given snapshot.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	for i := len(s.journal) - 1; i >= snapshot; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:snapshot]
	s.validRevisions = s.validRevisions[:idx]
}

// Atomic runs fn as one all-or-nothing unit. Calls nest; the journal is
// discarded once the outermost call succeeds.
func (s *StateDB) Atomic(fn func() error) error {
	id := s.Snapshot()
	s.depth++
	err := fn()
	s.depth--
	if err != nil {
		s.RevertToSnapshot(id)
		return err
	}
	if s.depth == 0 {
		s.journal = s.journal[:0]
		s.validRevisions = s.validRevisions[:0]
	}
	return nil
}

// InCall reports whether an Atomic call is in progress.
func (s *StateDB) InCall() bool {
	return s.depth > 0
}

// Native currency.

func (s *StateDB) GetBalance(account common.Address) *uint256.Int {
	if bal, ok := s.native[account]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (s *StateDB) setNative(account common.Address, amount *uint256.Int) {
	prev, ok := s.native[account]
	s.journal = append(s.journal, nativeChange{account: account, prev: prev, existed: ok})
	s.native[account] = amount.Clone()
}

func (s *StateDB) AddBalance(account common.Address, amount *uint256.Int) error {
	bal, err := model.SafeAdd(s.GetBalance(account), amount)
	if err != nil {
		return err
	}
	s.setNative(account, bal)
	return nil
}

func (s *StateDB) SubBalance(account common.Address, amount *uint256.Int) error {
	current := s.GetBalance(account)
	if current.Lt(amount) {
		return &model.InsufficientBalanceError{Account: account, Balance: current, Needed: amount.Clone()}
	}
	s.setNative(account, current.Sub(current, amount))
	return nil
}

func (s *StateDB) TransferNative(from, to common.Address, amount *uint256.Int) error {
	if err := s.SubBalance(from, amount); err != nil {
		return err
	}
	return s.AddBalance(to, amount)
}

// Token balances.

func (s *StateDB) TokenBalance(token, holder common.Address) *uint256.Int {
	if bal, ok := s.tokens[token][holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (s *StateDB) SetTokenBalance(token, holder common.Address, amount *uint256.Int) {
	holders, ok := s.tokens[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		s.tokens[token] = holders
	}
	prev, existed := holders[holder]
	s.journal = append(s.journal, tokenChange{token: token, holder: holder, prev: prev, existed: existed})
	holders[holder] = amount.Clone()
}

func (s *StateDB) AddTokenBalance(token, holder common.Address, amount *uint256.Int) error {
	bal, err := model.SafeAdd(s.TokenBalance(token, holder), amount)
	if err != nil {
		return err
	}
	s.SetTokenBalance(token, holder, bal)
	return nil
}

func (s *StateDB) SubTokenBalance(token, holder common.Address, amount *uint256.Int) error {
	current := s.TokenBalance(token, holder)
	if current.Lt(amount) {
		return &model.InsufficientBalanceError{Asset: token, Account: holder, Balance: current, Needed: amount.Clone()}
	}
	s.SetTokenBalance(token, holder, current.Sub(current, amount))
	return nil
}

// TokenSupply sums every holder balance of token.
func (s *StateDB) TokenSupply(token common.Address) (*uint256.Int, error) {
	sum := new(uint256.Int)
	for _, bal := range s.tokens[token] {
		var err error
		if sum, err = model.SafeAdd(sum, bal); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// Allowances.

// infiniteAllowance is never decremented when spent.
var infiniteAllowance = new(uint256.Int).SetAllOne()

func MaxAllowance() *uint256.Int {
	return infiniteAllowance.Clone()
}

func (s *StateDB) Allowance(token, owner, spender common.Address) *uint256.Int {
	if v, ok := s.allowances[token][allowanceKey{owner, spender}]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (s *StateDB) SetAllowance(token, owner, spender common.Address, amount *uint256.Int) {
	entries, ok := s.allowances[token]
	if !ok {
		entries = make(map[allowanceKey]*uint256.Int)
		s.allowances[token] = entries
	}
	key := allowanceKey{owner, spender}
	prev, existed := entries[key]
	s.journal = append(s.journal, allowanceChange{token: token, key: key, prev: prev, existed: existed})
	entries[key] = amount.Clone()
}

// SpendAllowance decrements the allowance owner granted spender on token.
func (s *StateDB) SpendAllowance(token, owner, spender common.Address, amount *uint256.Int) error {
	current := s.Allowance(token, owner, spender)
	if current.Eq(infiniteAllowance) {
		return nil
	}
	if current.Lt(amount) {
		return &model.InsufficientAllowanceError{
			Token: token, Owner: owner, Spender: spender,
			Allowance: current, Needed: amount.Clone(),
		}
	}
	s.SetAllowance(token, owner, spender, current.Sub(current, amount))
	return nil
}

// Contract storage.

func (s *StateDB) GetState(contract common.Address, key string) *uint256.Int {
	if v, ok := s.slots[contract][key]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (s *StateDB) SetState(contract common.Address, key string, value *uint256.Int) {
	entries, ok := s.slots[contract]
	if !ok {
		entries = make(map[string]*uint256.Int)
		s.slots[contract] = entries
	}
	prev, existed := entries[key]
	s.journal = append(s.journal, slotChange{contract: contract, key: key, prev: prev, existed: existed})
	entries[key] = value.Clone()
}

// Logs.

func (s *StateDB) AddLog(log *types.Log) {
	log.Index = uint(len(s.logs))
	s.journal = append(s.journal, addLogChange{})
	s.logs = append(s.logs, log)
}

func (s *StateDB) Logs() []*types.Log {
	out := make([]*types.Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// FilterLogs returns the logs emitted by contract whose first topic is topic.
func (s *StateDB) FilterLogs(contract common.Address, topic common.Hash) []*types.Log {
	var out []*types.Log
	for _, l := range s.logs {
		if l.Address == contract && len(l.Topics) > 0 && l.Topics[0] == topic {
			out = append(out, l)
		}
	}
	return out
}
