package economy

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned when a withdrawal exceeds the balance.
var ErrInsufficientFunds = errors.New("economy: insufficient funds")

// BalanceChange describes one mutation of an account balance.
type BalanceChange struct {
	Holder string
	Old    Money
	New    Money
	Reason string
}

// BankAccount is an actor's balance held at a bank.
type BankAccount struct {
	holder   string
	bank     string
	balance  Money
	onChange func(BalanceChange)
}

// NewBankAccount opens an account for holder at bank with an initial balance.
func NewBankAccount(holder, bank string, initial Money) *BankAccount {
	return &BankAccount{holder: holder, bank: bank, balance: initial}
}

// Holder returns the id of the owning actor.
func (a *BankAccount) Holder() string { return a.holder }

// Bank returns the id of the bank actor the account is held at.
func (a *BankAccount) Bank() string { return a.bank }

// Balance returns the current balance. It is negative when overdrawn.
func (a *BankAccount) Balance() Money { return a.balance }

// Observe registers a callback invoked after every balance change.
func (a *BankAccount) Observe(fn func(BalanceChange)) {
	a.onChange = fn
}

func (a *BankAccount) set(v Money, reason string) {
	old := a.balance
	a.balance = v
	if a.onChange != nil {
		a.onChange(BalanceChange{Holder: a.holder, Old: old, New: v, Reason: reason})
	}
}

// Deposit adds amount to the balance.
func (a *BankAccount) Deposit(amount Money, reason string) error {
	if amount < 0 {
		return fmt.Errorf("deposit %v: %w", amount, ErrNegativeAmount)
	}
	a.set(a.balance+amount, reason)
	return nil
}

// Withdraw takes amount from the balance, failing with ErrInsufficientFunds
// when the balance does not cover it.
func (a *BankAccount) Withdraw(amount Money, reason string) error {
	if amount < 0 {
		return fmt.Errorf("withdraw %v: %w", amount, ErrNegativeAmount)
	}
	if a.balance < amount {
		return fmt.Errorf("withdraw %v from %s (balance %v): %w", amount, a.holder, a.balance, ErrInsufficientFunds)
	}
	a.set(a.balance-amount, reason)
	return nil
}

// ForceWithdraw takes amount regardless of the balance, overdrawing the
// account if needed. Used for fixed costs and forced settlements.
func (a *BankAccount) ForceWithdraw(amount Money, reason string) error {
	if amount < 0 {
		return fmt.Errorf("force withdraw %v: %w", amount, ErrNegativeAmount)
	}
	a.set(a.balance-amount, reason)
	return nil
}

// ForceTransfer moves amount from one account to another without checking
// the payer's balance.
func ForceTransfer(from, to *BankAccount, amount Money, reason string) error {
	if err := from.ForceWithdraw(amount, reason); err != nil {
		return err
	}
	return to.Deposit(amount, reason)
}
