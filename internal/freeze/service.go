// Package freeze implements the frozen-balance operation facade: the
// four irreversible operations (set, increase, decrease, transfer) that
// register an idempotency record on the routed shard before touching the
// external balance ledger.
package freeze

import (
	"errors"
	"math/big"

	"github.com/dreamware/glacier/internal/access"
	"github.com/dreamware/glacier/internal/balance"
	"github.com/dreamware/glacier/internal/coordinator"
	"github.com/dreamware/glacier/internal/event"
	"github.com/dreamware/glacier/internal/ledger"
)

// DefaultAmountBits is the amount bound when none is configured.
const DefaultAmountBits = 64

// Service is the freeze-operation facade. Collaborators are injected:
// the coordinator (for routing and the root identity), the capability
// store (freezer capability and the pause flag), the external balance
// ledger, and the notification bus.
type Service struct {
	root     *coordinator.Root
	acl      *access.Store
	balances balance.Ledger
	bus      *event.Bus
	bits     uint
}

// NewService wires the facade. amountBits bounds operation amounts and
// is clamped to (0, 64]; zero selects DefaultAmountBits.
func NewService(root *coordinator.Root, acl *access.Store, balances balance.Ledger, bus *event.Bus, amountBits uint) *Service {
	if amountBits == 0 || amountBits > 64 {
		amountBits = DefaultAmountBits
	}
	return &Service{
		root:     root,
		acl:      acl,
		balances: balances,
		bus:      bus,
		bits:     amountBits,
	}
}

// ContractID answers the upgrade coordinator's probe.
func (s *Service) ContractID() string { return coordinator.ContractID }

// SetFrozen replaces account's frozen balance with amount, at most once
// per key.
func (s *Service) SetFrozen(caller, account string, amount *big.Int, key ledger.Key) error {
	amt, err := s.admit(caller, key, amount)
	if err != nil {
		return err
	}
	if err := s.register(key, ledger.StatusUpdateReplacementExecuted, account, amt); err != nil {
		return err
	}
	newBal, oldBal, err := s.balances.SetFrozen(account, amt)
	if err != nil {
		return err
	}
	s.notifyUpdated(account, key, newBal, oldBal)
	return nil
}

// IncreaseFrozen adds amount to account's frozen balance, at most once
// per key.
func (s *Service) IncreaseFrozen(caller, account string, amount *big.Int, key ledger.Key) error {
	amt, err := s.admit(caller, key, amount)
	if err != nil {
		return err
	}
	if err := s.register(key, ledger.StatusUpdateIncreaseExecuted, account, amt); err != nil {
		return err
	}
	newBal, oldBal, err := s.balances.IncreaseFrozen(account, amt)
	if err != nil {
		return err
	}
	s.notifyUpdated(account, key, newBal, oldBal)
	return nil
}

// DecreaseFrozen subtracts amount from account's frozen balance, at most
// once per key.
func (s *Service) DecreaseFrozen(caller, account string, amount *big.Int, key ledger.Key) error {
	amt, err := s.admit(caller, key, amount)
	if err != nil {
		return err
	}
	if err := s.register(key, ledger.StatusUpdateDecreaseExecuted, account, amt); err != nil {
		return err
	}
	newBal, oldBal, err := s.balances.DecreaseFrozen(account, amt)
	if err != nil {
		return err
	}
	s.notifyUpdated(account, key, newBal, oldBal)
	return nil
}

// TransferFrozen moves amount of frozen balance from one account to
// another, at most once per key. The registry record names the sender;
// the transfer notification precedes the recipient's balance update.
func (s *Service) TransferFrozen(caller, from, to string, amount *big.Int, key ledger.Key) error {
	amt, err := s.admit(caller, key, amount)
	if err != nil {
		return err
	}
	if err := s.register(key, ledger.StatusTransferExecuted, from, amt); err != nil {
		return err
	}
	newBal, oldBal, err := s.balances.TransferFrozen(from, to, amt)
	if err != nil {
		return err
	}
	s.bus.Publish(event.FrozenTransfer{From: from, To: to, Key: key.String(), Amount: amt})
	s.notifyUpdated(to, key, newBal, oldBal)
	return nil
}

// Operation returns the registry record for key from its owning shard,
// the zero-value Nonexistent record if never registered.
func (s *Service) Operation(key ledger.Key) (ledger.Operation, error) {
	shard, _, err := s.root.Set().ByKey(key)
	if err != nil {
		return ledger.Operation{}, err
	}
	return shard.Operation(key), nil
}

// BalanceOfFrozen returns account's frozen balance from the external
// ledger.
func (s *Service) BalanceOfFrozen(account string) uint64 {
	return s.balances.QueryFrozen(account)
}

// admit runs the entry conditions shared by all four operations, in
// order: pause flag, freezer capability, non-zero key, amount bound.
func (s *Service) admit(caller string, key ledger.Key, amount *big.Int) (uint64, error) {
	if s.acl.IsPaused() {
		return 0, ErrPaused
	}
	if !s.acl.Has(access.CapFreezer, caller) {
		return 0, &UnauthorizedError{Account: caller, Capability: access.CapFreezer}
	}
	if key.IsZero() {
		return 0, ErrKeyZero
	}
	if amount == nil || amount.Sign() < 0 {
		return 0, ErrAmountInvalid
	}
	if uint(amount.BitLen()) > s.bits {
		return 0, &AmountExcessError{Amount: new(big.Int).Set(amount), Bits: s.bits}
	}
	return amount.Uint64(), nil
}

// register routes the key and performs the insert-once registration.
// Registration happens before the balance mutation so a duplicate
// request is rejected here, cheaply, without the external ledger ever
// seeing it twice.
func (s *Service) register(key ledger.Key, status ledger.Status, account string, amount uint64) error {
	shard, idx, err := s.root.Set().ByKey(key)
	if err != nil {
		return err
	}
	err = shard.RegisterOperation(s.root.Account(), ledger.Operation{
		Key:     key,
		Status:  status,
		Account: account,
		Amount:  amount,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return &AlreadyExecutedError{Key: key}
	default:
		return &ShardError{Shard: idx, Key: key, Err: err}
	}
}

func (s *Service) notifyUpdated(account string, key ledger.Key, newBal, oldBal uint64) {
	s.bus.Publish(event.FrozenBalanceUpdated{
		Account:    account,
		NewBalance: newBal,
		OldBalance: oldBal,
		Key:        key.String(),
	})
}
