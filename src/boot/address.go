package boot

import (
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/playergold/goldnode/src/common"
)

// Wallet address shape. Addresses are produced by the wallet-key component;
// the controller only checks their display shape before recording them.
const (
	// AddressPrefix is the display prefix of a PlayerGold wallet address.
	AddressPrefix = "PG"

	// AddressLength is the total length of a wallet address, prefix
	// included.
	AddressLength = 40
)

// ValidateAddress checks the shape of a wallet address: the PG prefix, the
// total length, and that the payload decodes as base58. There is no checksum
// verification at this layer; a full validation requires the wallet keys.
func ValidateAddress(address string) error {
	op := "boot.ValidateAddress"

	if address == "" {
		return common.NewError(common.InvalidArgument, op, "empty address")
	}

	if !strings.HasPrefix(address, AddressPrefix) {
		return common.Errorf(common.InvalidArgument, op,
			"address %q does not start with %s", address, AddressPrefix)
	}

	if len(address) != AddressLength {
		return common.Errorf(common.InvalidArgument, op,
			"address length %d, expected %d", len(address), AddressLength)
	}

	payload := address[len(AddressPrefix):]
	if len(base58.Decode(payload)) == 0 {
		return common.Errorf(common.InvalidArgument, op,
			"address payload is not base58")
	}

	return nil
}
