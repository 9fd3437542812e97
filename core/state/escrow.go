package state

import (
	"rentchain/native/escrow"
)

// EscrowGet loads the escrow account of an agreement.
func (m *Manager) EscrowGet(id [32]byte) (*escrow.Account, bool, error) {
	var acct escrow.Account
	ok, err := m.KVGet(key32(escrowPrefix, id), &acct)
	if err != nil || !ok {
		return nil, false, err
	}
	return &acct, true, nil
}

// EscrowPut stores an escrow account.
func (m *Manager) EscrowPut(acct *escrow.Account) error {
	return m.KVPut(key32(escrowPrefix, acct.AgreementID), acct)
}

// PaymentAppend adds a record to the agreement's ledger. Records are never
// rewritten.
func (m *Manager) PaymentAppend(r *escrow.PaymentRecord) error {
	records, err := m.PaymentList(r.AgreementID)
	if err != nil {
		return err
	}
	records = append(records, r.Clone())
	return m.KVPut(key32(escrowPaymentsPrefix, r.AgreementID), records)
}

// PaymentList returns the agreement's records in append order.
func (m *Manager) PaymentList(id [32]byte) ([]*escrow.PaymentRecord, error) {
	var records []*escrow.PaymentRecord
	if err := m.KVGetList(key32(escrowPaymentsPrefix, id), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// PaymentCount returns the number of records of an agreement.
func (m *Manager) PaymentCount(id [32]byte) (uint64, error) {
	records, err := m.PaymentList(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(records)), nil
}
