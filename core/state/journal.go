package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type journalEntry interface {
	revert(*StateDB)
}

type (
	nativeChange struct {
		account common.Address
		prev    *uint256.Int
		existed bool
	}
	tokenChange struct {
		token, holder common.Address
		prev          *uint256.Int
		existed       bool
	}
	allowanceChange struct {
		token   common.Address
		key     allowanceKey
		prev    *uint256.Int
		existed bool
	}
	slotChange struct {
		contract common.Address
		key      string
		prev     *uint256.Int
		existed  bool
	}
	addLogChange struct{}
)

func (ch nativeChange) revert(s *StateDB) {
	if !ch.existed {
		delete(s.native, ch.account)
		return
	}
	s.native[ch.account] = ch.prev
}

func (ch tokenChange) revert(s *StateDB) {
	if !ch.existed {
		delete(s.tokens[ch.token], ch.holder)
		return
	}
	s.tokens[ch.token][ch.holder] = ch.prev
}

func (ch allowanceChange) revert(s *StateDB) {
	if !ch.existed {
		delete(s.allowances[ch.token], ch.key)
		return
	}
	s.allowances[ch.token][ch.key] = ch.prev
}

func (ch slotChange) revert(s *StateDB) {
	if !ch.existed {
		delete(s.slots[ch.contract], ch.key)
		return
	}
	s.slots[ch.contract][ch.key] = ch.prev
}

func (ch addLogChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}
