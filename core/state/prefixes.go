package state

import (
	"encoding/hex"
	"fmt"
)

// Logical keys are hashed before they reach the trie, so readability wins over
// compactness here.
var (
	accountPrefix         = "account/"
	propertyPrefix        = "property/"
	propertyOwnerPrefix   = "property/owner/"
	propertyAllKey        = []byte("property/all")
	propertyNoncePrefix   = "property/nonce/"
	rentalPrefix          = "rental/"
	rentalTenantPrefix    = "rental/tenant/"
	rentalLandlordPrefix  = "rental/landlord/"
	rentalPropertyPrefix  = "rental/property/"
	rentalQuotaPrefix     = "rental/quota/"
	escrowPrefix          = "escrow/"
	escrowPaymentsPrefix  = "escrow/payments/"
	reviewPrefix          = "review/"
	reviewUserPrefix      = "review/user/"
	reviewAuthorPrefix    = "review/author/"
	rewardsBalancePrefix  = "rewards/balance/"
	rewardsSupplyKey      = []byte("rewards/supply")
	rewardsConfigKey      = []byte("rewards/config")
	rewardsClaimPrefix    = "rewards/claim/"
	systemPausePrefix     = "system/pause/"
	systemAdminKey        = []byte("system/admin")
	systemLedgerTimestamp = []byte("system/ledger-time")
)

func key20(prefix string, addr [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(addr[:]))
}

func key32(prefix string, id [32]byte) []byte {
	return []byte(prefix + hex.EncodeToString(id[:]))
}

func reviewKey(agreementID [32]byte, role uint8) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", reviewPrefix, agreementID[:], role))
}

func rewardsClaimKey(agreementID [32]byte, addr [20]byte, kind uint8) []byte {
	return []byte(fmt.Sprintf("%s%x/%x/%d", rewardsClaimPrefix, agreementID[:], addr[:], kind))
}
