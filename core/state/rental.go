package state

import (
	"fmt"

	nativecommon "rentchain/native/common"
	"rentchain/native/rental"
)

// RentalGet loads an agreement by id.
func (m *Manager) RentalGet(id [32]byte) (*rental.Agreement, bool, error) {
	var a rental.Agreement
	ok, err := m.KVGet(key32(rentalPrefix, id), &a)
	if err != nil || !ok {
		return nil, false, err
	}
	if !a.Status.Valid() {
		return nil, false, fmt.Errorf("state: agreement %x has unknown status %d", id[:4], a.Status)
	}
	return &a, true, nil
}

// RentalPut stores an agreement.
func (m *Manager) RentalPut(a *rental.Agreement) error {
	if !a.Status.Valid() {
		return fmt.Errorf("state: refusing to store agreement with status %d", a.Status)
	}
	return m.KVPut(key32(rentalPrefix, a.ID), a)
}

// RentalIndex adds the agreement to the tenant, landlord and property indexes.
func (m *Manager) RentalIndex(a *rental.Agreement) error {
	if err := m.KVAppend(key20(rentalTenantPrefix, a.Tenant), a.ID[:]); err != nil {
		return err
	}
	if err := m.KVAppend(key20(rentalLandlordPrefix, a.Landlord), a.ID[:]); err != nil {
		return err
	}
	return m.KVAppend(key32(rentalPropertyPrefix, a.PropertyID), a.ID[:])
}

func (m *Manager) RentalListByTenant(addr [20]byte) ([][32]byte, error) {
	return m.idList(key20(rentalTenantPrefix, addr))
}

func (m *Manager) RentalListByLandlord(addr [20]byte) ([][32]byte, error) {
	return m.idList(key20(rentalLandlordPrefix, addr))
}

func (m *Manager) RentalListByProperty(id [32]byte) ([][32]byte, error) {
	return m.idList(key32(rentalPropertyPrefix, id))
}

// RentalQuotaGet returns the request counters of a tenant.
func (m *Manager) RentalQuotaGet(addr [20]byte) (nativecommon.QuotaNow, error) {
	var q nativecommon.QuotaNow
	if _, err := m.KVGet(key20(rentalQuotaPrefix, addr), &q); err != nil {
		return nativecommon.QuotaNow{}, err
	}
	return q, nil
}

// RentalQuotaPut stores the request counters of a tenant.
func (m *Manager) RentalQuotaPut(addr [20]byte, q nativecommon.QuotaNow) error {
	return m.KVPut(key20(rentalQuotaPrefix, addr), &q)
}
