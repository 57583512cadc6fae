package model

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

func Keccak256(data []byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()

	hasher.Write(data)

	return common.BytesToHash(hasher.Sum(nil))
}

// EventTopic returns topic[0] for an event signature such as
// "Transfer(address,address,uint256)".
func EventTopic(signature string) common.Hash {
	return Keccak256([]byte(signature))
}

// DeriveAddress builds a deterministic contract address from a deployer and a salt,
// the way CREATE2-style factories do for pairs.
func DeriveAddress(deployer common.Address, salt ...common.Address) common.Address {
	data := make([]byte, 0, common.AddressLength*(len(salt)+1))
	data = append(data, deployer.Bytes()...)
	for _, s := range salt {
		data = append(data, s.Bytes()...)
	}
	return common.BytesToAddress(Keccak256(data).Bytes()[12:])
}
