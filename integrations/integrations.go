// Package integrations defines the capability interfaces for external
// providers (chain access, identity verification, push delivery). The mock
// implementations below ship as the default; real SDK adapters satisfy the
// same interfaces and are selected at composition time in main.
package integrations

import "context"

// WalletProvider abstracts on-chain access: deposit verification and
// withdrawal broadcasting.
type WalletProvider interface {
	// VerifyDeposit checks that txHash is a confirmed transfer of amount
	// cryptoType to one of our addresses.
	VerifyDeposit(ctx context.Context, cryptoType, txHash string, amount float64) (bool, error)
	// BroadcastWithdrawal submits a withdrawal to the chain and returns the
	// resulting transaction hash.
	BroadcastWithdrawal(ctx context.Context, cryptoType, toAddress string, amount float64) (string, error)
}

// KYCResult is the outcome of an identity verification pass.
type KYCResult struct {
	Approved  bool
	RiskScore int
	Reason    string
}

// IdentityVerifier abstracts the KYC provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, userID, documentURL string) (KYCResult, error)
}

// PushNotifier delivers best-effort user notifications. Failures are logged
// and dropped; delivery is outside every consistency boundary.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string) error
}
