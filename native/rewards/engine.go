package rewards

import (
	"errors"
	"fmt"
	"math/big"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
)

var (
	errNilState = errors.New("rewards engine: state not configured")

	ErrNotAdmin            = fmt.Errorf("%w: caller is not the rewards admin", coreerrors.ErrUnauthorized)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", coreerrors.ErrInvalidInput)
	ErrInsufficientBalance = fmt.Errorf("%w: BRIQ-R balance too low", coreerrors.ErrInsufficientFunds)
)

type engineState interface {
	RewardsBalance(addr [20]byte) (*big.Int, error)
	RewardsPutBalance(addr [20]byte, amount *big.Int) error
	RewardsSupply() (*big.Int, error)
	RewardsPutSupply(amount *big.Int) error
	RewardsConfig() (*Config, bool, error)
	RewardsPutConfig(cfg *Config) error
	RewardsClaimed(agreementID [32]byte, addr [20]byte, kind ClaimKind) (bool, error)
	RewardsMarkClaimed(agreementID [32]byte, addr [20]byte, kind ClaimKind) error
	IsPaused(module string) bool
}

// Engine maintains the BRIQ-R balances and pays out lifecycle rewards.
type Engine struct {
	state   engineState
	emitter events.Emitter
	admin   [20]byte
	enabled bool
}

// NewEngine returns an engine with rewards enabled.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, enabled: true}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdmin configures the account allowed to mint, burn and reconfigure.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetEnabled toggles the lifecycle hooks. Token operations are unaffected.
func (e *Engine) SetEnabled(enabled bool) { e.enabled = enabled }

// SetEmitter configures the event emitter. Nil resets it to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// BalanceOf returns the BRIQ-R balance of addr.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	bal, err := e.state.RewardsBalance(addr)
	if err != nil {
		return nil, err
	}
	return nativecommon.CloneAmount(bal), nil
}

// TotalSupply returns the amount of BRIQ-R in circulation.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	supply, err := e.state.RewardsSupply()
	if err != nil {
		return nil, err
	}
	return nativecommon.CloneAmount(supply), nil
}

// Config returns the stored reward configuration, falling back to defaults.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.RewardsConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultConfig(), nil
	}
	return cfg.Clone(), nil
}

// SetConfig replaces the reward configuration.
func (e *Engine) SetConfig(caller [20]byte, cfg *Config) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.RewardsPutConfig(cfg.Clone()); err != nil {
		return err
	}
	e.emit(NewConfigUpdatedEvent(cfg))
	return nil
}

// Mint creates amount BRIQ-R for to.
func (e *Engine) Mint(caller, to [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.mint(to, amount); err != nil {
		return err
	}
	e.emit(NewMintedEvent(to, amount))
	return nil
}

// Burn destroys amount BRIQ-R held by from.
func (e *Engine) Burn(caller, from [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := positive(amount); err != nil {
		return err
	}
	bal, err := e.debit(from, amount)
	if err != nil {
		return err
	}
	supply, err := e.state.RewardsSupply()
	if err != nil {
		return err
	}
	remaining, err := nativecommon.SubNonNegative(supply, amount)
	if err != nil {
		return err
	}
	if err := e.state.RewardsPutBalance(from, bal); err != nil {
		return err
	}
	if err := e.state.RewardsPutSupply(remaining); err != nil {
		return err
	}
	e.emit(NewBurnedEvent(from, amount))
	return nil
}

// Transfer moves amount BRIQ-R from the caller to another account.
func (e *Engine) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := positive(amount); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: transfer to self", coreerrors.ErrInvalidInput)
	}
	fromBal, err := e.debit(from, amount)
	if err != nil {
		return err
	}
	toBal, err := e.state.RewardsBalance(to)
	if err != nil {
		return err
	}
	toBal, err = nativecommon.CheckedAdd(toBal, amount)
	if err != nil {
		return err
	}
	if err := e.state.RewardsPutBalance(from, fromBal); err != nil {
		return err
	}
	if err := e.state.RewardsPutBalance(to, toBal); err != nil {
		return err
	}
	e.emit(NewTransferEvent(from, to, amount))
	return nil
}

// RewardFirstPayment pays the first payment reward to the tenant once per
// agreement. It returns the amount paid, zero when nothing was due.
func (e *Engine) RewardFirstPayment(agreementID [32]byte, tenant [20]byte) (*big.Int, error) {
	return e.claim(agreementID, tenant, ClaimFirstPayment, func(c *Config) *big.Int { return c.FirstPaymentReward })
}

// RewardReview pays the review reward once per agreement and reviewer.
func (e *Engine) RewardReview(agreementID [32]byte, reviewer [20]byte) (*big.Int, error) {
	return e.claim(agreementID, reviewer, ClaimReview, func(c *Config) *big.Int { return c.ReviewReward })
}

// RewardMutualReview pays the mutual review bonus to both parties once per
// agreement.
func (e *Engine) RewardMutualReview(agreementID [32]byte, tenant, landlord [20]byte) (*big.Int, error) {
	if !e.hooksActive() {
		return big.NewInt(0), nil
	}
	// The claim is keyed by agreement alone.
	claimed, err := e.state.RewardsClaimed(agreementID, [20]byte{}, ClaimMutualReview)
	if err != nil || claimed {
		return big.NewInt(0), err
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	bonus := nativecommon.CloneAmount(cfg.MutualReviewBonus)
	if bonus.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	for _, party := range [][20]byte{tenant, landlord} {
		if err := e.mint(party, bonus); err != nil {
			return nil, err
		}
		e.emit(NewRewardIssuedEvent(ClaimMutualReview, agreementID, party, bonus))
	}
	if err := e.state.RewardsMarkClaimed(agreementID, [20]byte{}, ClaimMutualReview); err != nil {
		return nil, err
	}
	return new(big.Int).Mul(bonus, big.NewInt(2)), nil
}

func (e *Engine) claim(agreementID [32]byte, addr [20]byte, kind ClaimKind, pick func(*Config) *big.Int) (*big.Int, error) {
	if !e.hooksActive() {
		return big.NewInt(0), nil
	}
	claimed, err := e.state.RewardsClaimed(agreementID, addr, kind)
	if err != nil || claimed {
		return big.NewInt(0), err
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	amount := nativecommon.CloneAmount(pick(cfg))
	if amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := e.mint(addr, amount); err != nil {
		return nil, err
	}
	if err := e.state.RewardsMarkClaimed(agreementID, addr, kind); err != nil {
		return nil, err
	}
	e.emit(NewRewardIssuedEvent(kind, agreementID, addr, amount))
	return amount, nil
}

// hooksActive reports whether lifecycle rewards should be paid. A paused or
// disabled module skips rewards without failing the triggering call.
func (e *Engine) hooksActive() bool {
	return e != nil && e.state != nil && e.enabled && !e.state.IsPaused(nativecommon.ModuleRewards)
}

func (e *Engine) mint(to [20]byte, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	bal, err := e.state.RewardsBalance(to)
	if err != nil {
		return err
	}
	bal, err = nativecommon.CheckedAdd(bal, amount)
	if err != nil {
		return err
	}
	supply, err := e.state.RewardsSupply()
	if err != nil {
		return err
	}
	supply, err = nativecommon.CheckedAdd(supply, amount)
	if err != nil {
		return err
	}
	if err := e.state.RewardsPutBalance(to, bal); err != nil {
		return err
	}
	return e.state.RewardsPutSupply(supply)
}

func (e *Engine) debit(addr [20]byte, amount *big.Int) (*big.Int, error) {
	bal, err := e.state.RewardsBalance(addr)
	if err != nil {
		return nil, err
	}
	if nativecommon.CloneAmount(bal).Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, nativecommon.CloneAmount(bal), amount)
	}
	return nativecommon.CheckedSub(bal, amount)
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.admin == ([20]byte{}) || caller != e.admin {
		return ErrNotAdmin
	}
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !nativecommon.InRange(amount) {
		return fmt.Errorf("%w: amount exceeds i128", coreerrors.ErrOverflow)
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.Guard(e.state, nativecommon.ModuleRewards)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}
