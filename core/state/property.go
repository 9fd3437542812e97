package state

import (
	"rentchain/native/property"
)

// PropertyGet loads a listing by id.
func (m *Manager) PropertyGet(id [32]byte) (*property.Property, bool, error) {
	var p property.Property
	ok, err := m.KVGet(key32(propertyPrefix, id), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

// PropertyPut stores a listing.
func (m *Manager) PropertyPut(p *property.Property) error {
	return m.KVPut(key32(propertyPrefix, p.ID), p)
}

// PropertyIndex records the listing in the owner and global indexes.
func (m *Manager) PropertyIndex(owner [20]byte, id [32]byte) error {
	if err := m.KVAppend(key20(propertyOwnerPrefix, owner), id[:]); err != nil {
		return err
	}
	return m.KVAppend(propertyAllKey, id[:])
}

// PropertyListByOwner returns the ids of the owner's listings in creation order.
func (m *Manager) PropertyListByOwner(owner [20]byte) ([][32]byte, error) {
	return m.idList(key20(propertyOwnerPrefix, owner))
}

// PropertyListAll returns every listing id in creation order.
func (m *Manager) PropertyListAll() ([][32]byte, error) {
	return m.idList(propertyAllKey)
}

// PropertyNextNonce returns the owner's listing nonce and advances it.
func (m *Manager) PropertyNextNonce(owner [20]byte) (uint64, error) {
	key := key20(propertyNoncePrefix, owner)
	var nonce uint64
	if _, err := m.KVGet(key, &nonce); err != nil {
		return 0, err
	}
	if err := m.KVPut(key, nonce+1); err != nil {
		return 0, err
	}
	return nonce, nil
}
