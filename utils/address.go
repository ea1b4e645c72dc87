package utils

import (
	"fmt"
	"regexp"
)

var (
	ethAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	// legacy + P2SH + bech32 mainnet forms
	btcAddressRe = regexp.MustCompile(`^(bc1[0-9a-z]{25,59}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`)
)

// ValidateWalletAddress checks the external address format for the given
// crypto type. Format-only: no checksum or on-chain validation.
func ValidateWalletAddress(cryptoType, address string) error {
	switch cryptoType {
	case "ETH":
		if !ethAddressRe.MatchString(address) {
			return fmt.Errorf("invalid ETH address format")
		}
	case "BTC":
		if !btcAddressRe.MatchString(address) {
			return fmt.Errorf("invalid BTC address format")
		}
	default:
		return fmt.Errorf("unsupported crypto type: %s", cryptoType)
	}
	return nil
}
