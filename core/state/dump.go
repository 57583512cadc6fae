package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type NativeEntry struct {
	Account common.Address
	Amount  *uint256.Int
}

type TokenEntry struct {
	Token  common.Address
	Holder common.Address
	Amount *uint256.Int
}

type AllowanceEntry struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

type SlotEntry struct {
	Contract common.Address
	Key      string
	Value    *uint256.Int
}

// Dump is a flat copy of the committed state, used for persistence.
// Logs are not part of it.
type Dump struct {
	Native     []NativeEntry
	Tokens     []TokenEntry
	Allowances []AllowanceEntry
	Slots      []SlotEntry
}

func (s *StateDB) Dump() *Dump {
	d := &Dump{}
	for account, amount := range s.native {
		d.Native = append(d.Native, NativeEntry{account, amount.Clone()})
	}
	for token, holders := range s.tokens {
		for holder, amount := range holders {
			d.Tokens = append(d.Tokens, TokenEntry{token, holder, amount.Clone()})
		}
	}
	for token, entries := range s.allowances {
		for key, amount := range entries {
			d.Allowances = append(d.Allowances, AllowanceEntry{token, key.Owner, key.Spender, amount.Clone()})
		}
	}
	for contract, entries := range s.slots {
		for key, value := range entries {
			d.Slots = append(d.Slots, SlotEntry{contract, key, value.Clone()})
		}
	}
	return d
}

// FromDump builds a fresh StateDB holding the dumped values.
func FromDump(d *Dump) *StateDB {
	s := New()
	for _, e := range d.Native {
		s.native[e.Account] = e.Amount.Clone()
	}
	for _, e := range d.Tokens {
		if s.tokens[e.Token] == nil {
			s.tokens[e.Token] = make(map[common.Address]*uint256.Int)
		}
		s.tokens[e.Token][e.Holder] = e.Amount.Clone()
	}
	for _, e := range d.Allowances {
		if s.allowances[e.Token] == nil {
			s.allowances[e.Token] = make(map[allowanceKey]*uint256.Int)
		}
		s.allowances[e.Token][allowanceKey{e.Owner, e.Spender}] = e.Amount.Clone()
	}
	for _, e := range d.Slots {
		if s.slots[e.Contract] == nil {
			s.slots[e.Contract] = make(map[string]*uint256.Int)
		}
		s.slots[e.Contract][e.Key] = e.Value.Clone()
	}
	return s
}
