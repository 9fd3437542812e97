package state

import (
	"rentchain/native/review"
)

// ReviewGet loads the review written by role on an agreement.
func (m *Manager) ReviewGet(agreementID [32]byte, role review.Role) (*review.Review, bool, error) {
	var r review.Review
	ok, err := m.KVGet(reviewKey(agreementID, uint8(role)), &r)
	if err != nil || !ok {
		return nil, false, err
	}
	return &r, true, nil
}

// ReviewPut stores a review.
func (m *Manager) ReviewPut(r *review.Review) error {
	return m.KVPut(reviewKey(r.AgreementID, uint8(r.Role)), r)
}

// ReviewIndex records that reviewee received the review at key.
func (m *Manager) ReviewIndex(reviewee [20]byte, key review.Key) error {
	return m.KVAppend(key20(reviewUserPrefix, reviewee), reviewKeyEntry(key))
}

// ReviewIndexAuthored records that reviewer wrote the review at key.
func (m *Manager) ReviewIndexAuthored(reviewer [20]byte, key review.Key) error {
	return m.KVAppend(key20(reviewAuthorPrefix, reviewer), reviewKeyEntry(key))
}

// ReviewListByUser returns the keys of the reviews reviewee received.
func (m *Manager) ReviewListByUser(reviewee [20]byte) ([]review.Key, error) {
	return m.reviewKeys(key20(reviewUserPrefix, reviewee))
}

// ReviewListAuthored returns the keys of the reviews reviewer wrote.
func (m *Manager) ReviewListAuthored(reviewer [20]byte) ([]review.Key, error) {
	return m.reviewKeys(key20(reviewAuthorPrefix, reviewer))
}

func (m *Manager) reviewKeys(listKey []byte) ([]review.Key, error) {
	var raw [][]byte
	if err := m.KVGetList(listKey, &raw); err != nil {
		return nil, err
	}
	out := make([]review.Key, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 33 {
			continue
		}
		var key review.Key
		copy(key.AgreementID[:], entry[:32])
		key.Role = review.Role(entry[32])
		out = append(out, key)
	}
	return out, nil
}

func reviewKeyEntry(key review.Key) []byte {
	entry := make([]byte, 33)
	copy(entry, key.AgreementID[:])
	entry[32] = byte(key.Role)
	return entry
}
