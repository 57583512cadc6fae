package model

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

const (
	TransferEventName = "Transfer"
	ApprovalEventName = "Approval"
	LiquifyEventName  = "Liquify"
)

const TokenEventABIJson = `[
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"owner","type":"address"},{"indexed":true,"internalType":"address","name":"spender","type":"address"},{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"}],"name":"Approval","type":"event"},
{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"tokensSwapped","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"currencyReceived","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"tokensIntoLiquidity","type":"uint256"}],"name":"Liquify","type":"event"}
]`

var (
	ErrEventMismatch = errors.New("log does not match event")

	TokenEventABI = mustParseABI(TokenEventABIJson)

	TopicTransfer = EventTopic("Transfer(address,address,uint256)")
	TopicApproval = EventTopic("Approval(address,address,uint256)")
	TopicLiquify  = EventTopic("Liquify(uint256,uint256,uint256)")
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

type ApprovalEvent struct {
	Owner   common.Address
	Spender common.Address
	Value   *uint256.Int
}

type LiquifyEvent struct {
	TokensSwapped       *uint256.Int
	CurrencyReceived    *uint256.Int
	TokensIntoLiquidity *uint256.Int
}

func packEventData(eventName string, values ...*uint256.Int) []byte {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v.ToBig()
	}
	data, err := TokenEventABI.Events[eventName].Inputs.NonIndexed().Pack(args...)
	if err != nil {
		// the ABI is static and every value is a uint256
		panic(err)
	}
	return data
}

func NewTransferLog(token, from, to common.Address, value *uint256.Int) *types.Log {
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{TopicTransfer, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    packEventData(TransferEventName, value),
	}
}

func NewApprovalLog(token, owner, spender common.Address, value *uint256.Int) *types.Log {
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{TopicApproval, common.BytesToHash(owner.Bytes()), common.BytesToHash(spender.Bytes())},
		Data:    packEventData(ApprovalEventName, value),
	}
}

func NewLiquifyLog(token common.Address, ev *LiquifyEvent) *types.Log {
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{TopicLiquify},
		Data:    packEventData(LiquifyEventName, ev.TokensSwapped, ev.CurrencyReceived, ev.TokensIntoLiquidity),
	}
}

func ParseEventLog(parsedAbi abi.ABI, eventName string, logData *types.Log) (map[string]interface{}, error) {
	event, exists := parsedAbi.Events[eventName]
	if !exists {
		return nil, fmt.Errorf("event '%s' not found", eventName)
	}
	if len(logData.Topics) == 0 || logData.Topics[0] != event.ID {
		return nil, fmt.Errorf("%w: %s", ErrEventMismatch, eventName)
	}

	var err error
	eventData := make(map[string]interface{})
	err = parsedAbi.UnpackIntoMap(eventData, eventName, logData.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack event data: %w", err)
	}

	indexed := 0
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		indexed++
		if indexed >= len(logData.Topics) {
			return nil, fmt.Errorf("%w: missing topic for %s", ErrEventMismatch, input.Name)
		}
		eventData[input.Name] = logData.Topics[indexed]
	}

	return eventData, nil
}

func ParseTransferEvent(logData *types.Log) (*TransferEvent, error) {
	eventData, err := ParseEventLog(TokenEventABI, TransferEventName, logData)
	if err != nil {
		return nil, err
	}

	var ev TransferEvent
	if from, ok := eventData["from"].(common.Hash); ok {
		ev.From = common.BytesToAddress(from[:])
	}
	if to, ok := eventData["to"].(common.Hash); ok {
		ev.To = common.BytesToAddress(to[:])
	}
	ev.Value = bigToUint256(eventData["value"])

	return &ev, nil
}

func ParseLiquifyEvent(logData *types.Log) (*LiquifyEvent, error) {
	eventData, err := ParseEventLog(TokenEventABI, LiquifyEventName, logData)
	if err != nil {
		return nil, err
	}

	return &LiquifyEvent{
		TokensSwapped:       bigToUint256(eventData["tokensSwapped"]),
		CurrencyReceived:    bigToUint256(eventData["currencyReceived"]),
		TokensIntoLiquidity: bigToUint256(eventData["tokensIntoLiquidity"]),
	}, nil
}

func bigToUint256(v interface{}) *uint256.Int {
	b, ok := v.(*big.Int)
	if !ok {
		return new(uint256.Int)
	}
	z, _ := uint256.FromBig(b)
	return z
}
