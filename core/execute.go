package core

import (
	"fmt"
	"time"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/receipts"
	"rentchain/core/state"
	"rentchain/core/types"
	"rentchain/crypto"
	"rentchain/native/bank"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
	"rentchain/native/rewards"
	"rentchain/storage/trie"
)

// Caller identifies the verified signer of a mutating call.
type Caller struct {
	From   [20]byte
	Nonce  uint64
	TxHash [32]byte
}

// unit is one atomic execution: every engine is bound to the same working
// copy of the trie and emits into the same buffer.
type unit struct {
	work     *trie.Trie
	manager  *state.Manager
	buffer   *events.Buffer
	now      uint64
	admin    [20]byte
	bank     *bank.Ledger
	property *property.Engine
	rental   *rental.Engine
	escrow   *escrow.Engine
	review   *review.Engine
	rewards  *rewards.Engine
}

func (n *Node) newUnit(work *trie.Trie, now uint64) (*unit, error) {
	manager := state.NewManager(work)
	buffer := &events.Buffer{}
	clock := func() int64 { return int64(now) }

	admin, _, err := manager.Admin()
	if err != nil {
		return nil, err
	}

	ledger := bank.NewLedger(manager)
	ledger.SetEmitter(buffer)

	props := property.NewEngine()
	props.SetState(manager)
	props.SetEmitter(buffer)
	props.SetNowFunc(clock)
	if n.opts.MinStayFloor > 0 {
		props.SetMinStayFloor(n.opts.MinStayFloor)
	}

	rentals := rental.NewEngine()
	rentals.SetState(manager)
	rentals.SetPropertyRegistry(props)
	rentals.SetPolicy(n.opts.Policy)
	rentals.SetEmitter(buffer)
	rentals.SetNowFunc(clock)

	esc := escrow.NewEngine()
	esc.SetState(manager)
	esc.SetAgreements(rentals)
	esc.SetBank(ledger)
	esc.SetAdmin(admin)
	esc.SetEmitter(buffer)
	esc.SetNowFunc(clock)

	reviews := review.NewEngine()
	reviews.SetState(manager)
	reviews.SetAgreements(rentals)
	reviews.SetEmitter(buffer)
	reviews.SetNowFunc(clock)

	rw := rewards.NewEngine()
	rw.SetState(manager)
	rw.SetAdmin(admin)
	rw.SetEnabled(n.opts.RewardsEnabled)
	rw.SetEmitter(buffer)

	return &unit{
		work:     work,
		manager:  manager,
		buffer:   buffer,
		now:      now,
		admin:    admin,
		bank:     ledger,
		property: props,
		rental:   rentals,
		escrow:   esc,
		review:   reviews,
		rewards:  rw,
	}, nil
}

// consumeNonce checks and advances the caller's account nonce.
func (u *unit) consumeNonce(c Caller) error {
	account, err := u.manager.GetAccount(c.From)
	if err != nil {
		return err
	}
	if account.Nonce != c.Nonce {
		return fmt.Errorf("%w: account %s expects %d, got %d", ErrBadNonce, crypto.Address(c.From), account.Nonce, c.Nonce)
	}
	account.Nonce++
	return u.manager.PutAccount(c.From, account)
}

// execute runs fn as one atomic unit. A rejected nonce leaves state untouched.
// Any other failure discards every write of fn but still commits the nonce
// bump, so a replayed envelope cannot be retried.
func (n *Node) execute(c Caller, method string, fn func(u *unit) error) error {
	started := time.Now()
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	now := n.nextLedgerTime()
	u, err := n.newUnit(n.trie.Fork(), now)
	if err != nil {
		return err
	}
	if err := u.consumeNonce(c); err != nil {
		n.observe(method, err, started)
		return err
	}
	runErr := fn(u)
	if runErr != nil {
		u, err = n.newUnit(n.trie.Fork(), now)
		if err != nil {
			return err
		}
		if err := u.consumeNonce(c); err != nil {
			return err
		}
	}
	if err := u.manager.SetLedgerTime(now); err != nil {
		return err
	}
	root, err := u.work.Commit(n.height + 1)
	if err != nil {
		return fmt.Errorf("core: commit state: %w", err)
	}
	if err := storeHead(n.db, root, n.height+1); err != nil {
		return err
	}
	n.trie = u.work
	n.height++
	n.ledgerTime = now

	committed := u.buffer.Events()
	if runErr == nil {
		n.publish(committed)
	}
	n.storeReceipt(c, method, runErr, committed)
	n.observe(method, runErr, started)
	if runErr != nil {
		n.logger.Debug("call failed", "method", method, "kind", string(coreerrors.KindOf(runErr)), "error", runErr)
	}
	return runErr
}

// publish hands committed events to the stream and the downstream emitter.
// Callers hold stateMu, which keeps publication in commit order.
func (n *Node) publish(committed []events.Event) {
	for _, evt := range committed {
		n.publishStream(evt, n.height)
		n.emitter.Emit(evt)
	}
}

func (n *Node) storeReceipt(c Caller, method string, runErr error, committed []events.Event) {
	if n.receipts == nil {
		return
	}
	receipt := &receipts.Receipt{
		TxHash:    receipts.HashString(c.TxHash),
		Method:    method,
		From:      crypto.Address(c.From).String(),
		Nonce:     c.Nonce,
		Height:    n.height,
		StateRoot: n.trie.Root().Hex(),
		Success:   runErr == nil,
		Timestamp: n.ledgerTime,
	}
	if runErr != nil {
		receipt.ErrorKind = string(coreerrors.KindOf(runErr))
		receipt.Error = runErr.Error()
	} else {
		receipt.Events = eventPayloads(committed)
	}
	if err := n.receipts.Put(receipt); err != nil {
		n.logger.Warn("persist receipt", "tx", receipt.TxHash, "error", err)
	}
}

func (n *Node) observe(method string, err error, started time.Time) {
	if n.observer == nil {
		return
	}
	n.observer.ObserveCall(method, err == nil, coreerrors.KindOf(err), time.Since(started))
}

// Receipt returns the stored receipt of a transaction hash.
func (n *Node) Receipt(txHash string) (*receipts.Receipt, error) {
	n.stateMu.Lock()
	store := n.receipts
	n.stateMu.Unlock()
	if store == nil {
		return nil, receipts.ErrNotFound
	}
	return store.Get(txHash)
}

// ReceiptsSince pages through receipts committed after height. Nodes without
// a receipt store return an empty page.
func (n *Node) ReceiptsSince(height uint64, limit int) ([]*receipts.Receipt, error) {
	n.stateMu.Lock()
	store := n.receipts
	n.stateMu.Unlock()
	if store == nil {
		return nil, nil
	}
	return store.Since(height, limit)
}

// eventPayloads converts buffered events for callers that want the wire form.
func eventPayloads(in []events.Event) []*types.Event {
	out := make([]*types.Event, 0, len(in))
	for _, evt := range in {
		if payload := events.Payload(evt); payload != nil {
			out = append(out, payload)
		}
	}
	return out
}
