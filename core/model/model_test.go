package model

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(10), got)

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	maxInt := new(uint256.Int).SetAllOne()
	_, err = MulDiv(maxInt, uint256.NewInt(2), uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSafeArithmetic(t *testing.T) {
	maxInt := new(uint256.Int).SetAllOne()

	_, err := SafeAdd(maxInt, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = SafeSub(uint256.NewInt(1), uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrOverflow)

	v, err := SafeSub(uint256.NewInt(5), uint256.NewInt(5))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestApplyBpFloors(t *testing.T) {
	fee, err := ApplyBp(uint256.NewInt(999), 1000)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(99), fee)

	fee, err = ApplyBp(uint256.NewInt(9), 1000)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestFeeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		fees    FeeConfig
		wantErr bool
	}{
		{"defaults", FeeConfig{500, 500, 500, 500}, false},
		{"exactly 30% each way", FeeConfig{1500, 1500, 2999, 1}, false},
		{"zero", FeeConfig{}, false},
		{"buy over cap", FeeConfig{1337, 2000, 600, 2401}, true},
		{"sell over cap", FeeConfig{0, 0, 1500, 1501}, true},
		{"single fee above 100%", FeeConfig{10001, 0, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fees.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSellTiersValidate(t *testing.T) {
	assert.NoError(t, SellTiers{2500, 2000, 1500}.Validate())
	assert.NoError(t, SellTiers{3000, 3000, 3000}.Validate())
	assert.ErrorIs(t, SellTiers{3001, 2000, 1500}.Validate(), ErrConfigValidation)
	assert.ErrorIs(t, SellTiers{1500, 2000, 1000}.Validate(), ErrConfigValidation)
}

func TestLiquiditySettingsValidate(t *testing.T) {
	supply := uint256.NewInt(1_000_000)

	assert.NoError(t, LiquiditySettings{ThresholdTokens: supply, TeamLiquidationBp: 10000}.Validate(supply))
	assert.NoError(t, LiquiditySettings{ThresholdTokens: new(uint256.Int)}.Validate(supply))
	assert.ErrorIs(t, LiquiditySettings{ThresholdTokens: uint256.NewInt(1_000_001)}.Validate(supply), ErrConfigValidation)
	assert.ErrorIs(t, LiquiditySettings{ThresholdTokens: supply, TeamLiquidationBp: 10001}.Validate(supply), ErrConfigValidation)
	assert.ErrorIs(t, LiquiditySettings{}.Validate(supply), ErrConfigValidation)
}

func TestFeeWeights(t *testing.T) {
	f := FeeConfig{BuyTeamBp: 300, BuyLiquidityBp: 200, SellTeamBp: 300, SellLiquidityBp: 200}
	assert.Equal(t, uint64(500), f.BuyTotal())
	assert.Equal(t, uint64(500), f.SellTotal())
	assert.Equal(t, uint64(600), f.TeamWeight())
	assert.Equal(t, uint64(400), f.LiquidityWeight())
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "PLAIN", ClassPlain.String())
	assert.Equal(t, "BUY", ClassBuy.String())
	assert.Equal(t, "SELL", ClassSell.String())
	assert.Equal(t, "Classification(9)", Classification(9).String())
}

func TestTransferLogRoundTrip(t *testing.T) {
	token := common.HexToAddress("0x01")
	from := common.HexToAddress("0x02")
	to := common.HexToAddress("0x03")

	log := NewTransferLog(token, from, to, uint256.NewInt(12345))
	assert.Equal(t, TopicTransfer, log.Topics[0])
	assert.Equal(t, TokenEventABI.Events[TransferEventName].ID, log.Topics[0])

	ev, err := ParseTransferEvent(log)
	require.NoError(t, err)
	assert.Equal(t, from, ev.From)
	assert.Equal(t, to, ev.To)
	assert.Equal(t, uint256.NewInt(12345), ev.Value)
}

func TestParseLiquifyEvent(t *testing.T) {
	log := NewLiquifyLog(common.HexToAddress("0x01"), &LiquifyEvent{
		TokensSwapped:       uint256.NewInt(740),
		CurrencyReceived:    uint256.NewInt(55),
		TokensIntoLiquidity: uint256.NewInt(730),
	})

	ev, err := ParseLiquifyEvent(log)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(740), ev.TokensSwapped)
	assert.Equal(t, uint256.NewInt(55), ev.CurrencyReceived)
	assert.Equal(t, uint256.NewInt(730), ev.TokensIntoLiquidity)

	_, err = ParseTransferEvent(log)
	assert.True(t, errors.Is(err, ErrEventMismatch))
}

func TestDeriveAddressDeterministic(t *testing.T) {
	owner := common.HexToAddress("0x01")
	a := DeriveAddress(owner)
	b := DeriveAddress(owner)
	c := DeriveAddress(owner, common.HexToAddress("0x02"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, common.Address{}, a)
}

func TestErrorMessages(t *testing.T) {
	err := &InsufficientBalanceError{
		Account: common.HexToAddress("0x01"),
		Balance: uint256.NewInt(1),
		Needed:  uint256.NewInt(2),
	}
	assert.Contains(t, err.Error(), "insufficient currency balance")

	poolErr := &PoolOperationError{Op: "addLiquidity", Err: ErrOverflow}
	assert.ErrorIs(t, poolErr, ErrOverflow)
	assert.Contains(t, poolErr.Error(), "addLiquidity")
}
