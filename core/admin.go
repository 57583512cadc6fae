package core

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/tax"
)

var (
	DefaultFees = model.FeeConfig{
		BuyTeamBp:       500,
		BuyLiquidityBp:  500,
		SellTeamBp:      500,
		SellLiquidityBp: 500,
	}
	DefaultSellTiers = model.SellTiers{
		LaunchBp: 2500,
		EarlyBp:  2000,
		LateBp:   1500,
	}
)

const (
	// default liquidation threshold, in bp of total supply
	defaultThresholdBp       uint64 = 5
	defaultTeamLiquidationBp uint64 = 5000
)

// AdminConfig is the owner-managed configuration of one ledger. Fields are
// only written through the validated setters on Ledger.
type AdminConfig struct {
	owner           common.Address
	fees            model.FeeConfig
	tiers           model.SellTiers
	liquidation     model.LiquiditySettings
	wallets         model.Wallets
	ignoreFees      map[common.Address]bool
	feeCollectors   map[common.Address]bool
	whitelist       map[common.Address]bool
	launchTimestamp uint64
}

func defaultAdminConfig(owner, self common.Address, totalSupply *uint256.Int) *AdminConfig {
	threshold := new(uint256.Int).Div(totalSupply, uint256.NewInt(model.BpDenominator))
	threshold.Mul(threshold, uint256.NewInt(defaultThresholdBp))
	return &AdminConfig{
		owner: owner,
		fees:  DefaultFees,
		tiers: DefaultSellTiers,
		liquidation: model.LiquiditySettings{
			ThresholdTokens:   threshold,
			TeamLiquidationBp: defaultTeamLiquidationBp,
		},
		wallets:       model.Wallets{Team: owner, Liquidity: owner},
		ignoreFees:    map[common.Address]bool{owner: true, self: true},
		feeCollectors: make(map[common.Address]bool),
		whitelist:     make(map[common.Address]bool),
	}
}

func adminConfigFromSettings(s model.Settings, totalSupply *uint256.Int) (*AdminConfig, error) {
	threshold, err := uint256.FromDecimal(s.LiquidationThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: liquidation threshold %q: %v", model.ErrConfigValidation, s.LiquidationThreshold, err)
	}
	cfg := &AdminConfig{
		owner: s.Owner,
		fees:  s.Fees,
		tiers: s.SellTiers,
		liquidation: model.LiquiditySettings{
			ThresholdTokens:   threshold,
			TeamLiquidationBp: s.TeamLiquidationBp,
			Enabled:           s.LiquidationEnabled,
		},
		wallets:         s.Wallets,
		ignoreFees:      toSet(s.IgnoreFees),
		feeCollectors:   toSet(s.FeeCollectors),
		whitelist:       toSet(s.TradingWhitelist),
		launchTimestamp: s.LaunchTimestamp,
	}
	if err := cfg.fees.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.tiers.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.liquidation.Validate(totalSupply); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AdminConfig) IsFeeCollector(account common.Address) bool {
	return c.feeCollectors[account]
}

func (c *AdminConfig) IsIgnored(account common.Address) bool {
	return c.ignoreFees[account]
}

func (c *AdminConfig) IsWhitelisted(account common.Address) bool {
	return c.whitelist[account]
}

func (c *AdminConfig) tradingEnabled() bool {
	return c.launchTimestamp != 0
}

func (c *AdminConfig) policy() tax.Policy {
	return tax.Policy{Fees: c.fees, Tiers: c.tiers}
}

func toSet(addrs []common.Address) map[common.Address]bool {
	set := make(map[common.Address]bool, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}

func fromSet(set map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(set))
	for a, ok := range set {
		if ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func setFlag(set map[common.Address]bool, account common.Address, value bool) {
	if value {
		set[account] = true
		return
	}
	delete(set, account)
}

// Settings returns the persisted form of the configuration.
func (l *Ledger) Settings() model.Settings {
	c := l.cfg
	return model.Settings{
		Owner:                c.owner,
		Fees:                 c.fees,
		SellTiers:            c.tiers,
		LiquidationThreshold: c.liquidation.ThresholdTokens.Dec(),
		TeamLiquidationBp:    c.liquidation.TeamLiquidationBp,
		LiquidationEnabled:   c.liquidation.Enabled,
		Wallets:              c.wallets,
		IgnoreFees:           fromSet(c.ignoreFees),
		FeeCollectors:        fromSet(c.feeCollectors),
		TradingWhitelist:     fromSet(c.whitelist),
		LaunchTimestamp:      c.launchTimestamp,
	}
}

// Views.

func (l *Ledger) Owner() common.Address { return l.cfg.owner }

func (l *Ledger) Fees() model.FeeConfig { return l.cfg.fees }

func (l *Ledger) SellTiers() model.SellTiers { return l.cfg.tiers }

func (l *Ledger) LiquidationSettings() model.LiquiditySettings {
	s := l.cfg.liquidation
	s.ThresholdTokens = s.ThresholdTokens.Clone()
	return s
}

func (l *Ledger) TeamWallet() common.Address { return l.cfg.wallets.Team }

func (l *Ledger) LiquidityWallet() common.Address { return l.cfg.wallets.Liquidity }

func (l *Ledger) IgnoreFees(account common.Address) bool { return l.cfg.IsIgnored(account) }

func (l *Ledger) TakeFeesFor(account common.Address) bool { return l.cfg.IsFeeCollector(account) }

func (l *Ledger) TradingWhiteList(account common.Address) bool { return l.cfg.IsWhitelisted(account) }

func (l *Ledger) TradingEnabled() bool { return l.cfg.tradingEnabled() }

func (l *Ledger) LaunchTimestamp() uint64 { return l.cfg.launchTimestamp }

// Owner-gated setters.

func (l *Ledger) onlyOwner(caller common.Address) error {
	if caller != l.cfg.owner || caller == (common.Address{}) {
		return fmt.Errorf("%w: %s", model.ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner", model.ErrZeroAddress)
	}
	logrus.WithFields(logrus.Fields{"from": caller.Hex(), "to": newOwner.Hex()}).Info("ownership transferred")
	l.cfg.owner = newOwner
	return nil
}

// RenounceOwnership leaves the ledger without an owner; every setter is
// rejected afterwards.
func (l *Ledger) RenounceOwnership(caller common.Address) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	logrus.WithField("owner", caller.Hex()).Warn("ownership renounced")
	l.cfg.owner = common.Address{}
	return nil
}

func (l *Ledger) SetFees(caller common.Address, buyTeamBp, buyLiquidityBp, sellTeamBp, sellLiquidityBp uint64) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	fees := model.FeeConfig{
		BuyTeamBp:       buyTeamBp,
		BuyLiquidityBp:  buyLiquidityBp,
		SellTeamBp:      sellTeamBp,
		SellLiquidityBp: sellLiquidityBp,
	}
	if err := fees.Validate(); err != nil {
		return err
	}
	l.cfg.fees = fees
	logrus.WithFields(logrus.Fields{
		"buy_team": buyTeamBp, "buy_liquidity": buyLiquidityBp,
		"sell_team": sellTeamBp, "sell_liquidity": sellLiquidityBp,
	}).Info("fees updated")
	return nil
}

func (l *Ledger) SetSellTiers(caller common.Address, launchBp, earlyBp, lateBp uint64) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	tiers := model.SellTiers{LaunchBp: launchBp, EarlyBp: earlyBp, LateBp: lateBp}
	if err := tiers.Validate(); err != nil {
		return err
	}
	l.cfg.tiers = tiers
	logrus.WithFields(logrus.Fields{"launch": launchBp, "early": earlyBp, "late": lateBp}).Info("sell tiers updated")
	return nil
}

func (l *Ledger) SetLiquidationSettings(caller common.Address, thresholdTokens *uint256.Int, teamLiquidationBp uint64, enabled bool) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	settings := model.LiquiditySettings{
		ThresholdTokens:   thresholdTokens,
		TeamLiquidationBp: teamLiquidationBp,
		Enabled:           enabled,
	}
	if err := settings.Validate(l.totalSupply); err != nil {
		return err
	}
	settings.ThresholdTokens = thresholdTokens.Clone()
	l.cfg.liquidation = settings
	logrus.WithFields(logrus.Fields{
		"threshold": thresholdTokens.Dec(), "team_liquidation_bp": teamLiquidationBp, "enabled": enabled,
	}).Info("liquidation settings updated")
	return nil
}

func (l *Ledger) SetTeamWallet(caller, wallet common.Address) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	if wallet == (common.Address{}) {
		return fmt.Errorf("%w: team wallet", model.ErrZeroAddress)
	}
	l.cfg.wallets.Team = wallet
	logrus.WithField("wallet", wallet.Hex()).Info("team wallet updated")
	return nil
}

func (l *Ledger) SetLiquidityWallet(caller, wallet common.Address) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	if wallet == (common.Address{}) {
		return fmt.Errorf("%w: liquidity wallet", model.ErrZeroAddress)
	}
	l.cfg.wallets.Liquidity = wallet
	logrus.WithField("wallet", wallet.Hex()).Info("liquidity wallet updated")
	return nil
}

func (l *Ledger) SetIgnoreFees(caller, account common.Address, ignore bool) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	setFlag(l.cfg.ignoreFees, account, ignore)
	logrus.WithFields(logrus.Fields{"account": account.Hex(), "ignore": ignore}).Info("fee exemption updated")
	return nil
}

// SetTakeFeeFor toggles whether account is treated as a pool counterparty.
func (l *Ledger) SetTakeFeeFor(caller, account common.Address, take bool) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	setFlag(l.cfg.feeCollectors, account, take)
	logrus.WithFields(logrus.Fields{"account": account.Hex(), "take": take}).Info("fee collector updated")
	return nil
}

func (l *Ledger) WhiteListTrade(caller, account common.Address, allowed bool) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	setFlag(l.cfg.whitelist, account, allowed)
	logrus.WithFields(logrus.Fields{"account": account.Hex(), "allowed": allowed}).Info("trading whitelist updated")
	return nil
}

// StartTrading records the launch time. It can only happen once.
func (l *Ledger) StartTrading(caller common.Address) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	if l.cfg.tradingEnabled() {
		return model.ErrTradingAlreadyStarted
	}
	now := l.now()
	if now == 0 {
		return fmt.Errorf("%w: clock returned zero", model.ErrConfigValidation)
	}
	l.cfg.launchTimestamp = now
	logrus.WithField("launch", now).Info("trading started")
	return nil
}
