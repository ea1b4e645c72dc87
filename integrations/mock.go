package integrations

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// MockWalletProvider is the demo chain adapter. Deposit verification always
// succeeds (real chain lookup pending a node/indexer integration) and
// broadcasts return a synthetic hash.
type MockWalletProvider struct{}

func (MockWalletProvider) VerifyDeposit(ctx context.Context, cryptoType, txHash string, amount float64) (bool, error) {
	log.Printf("🔗 [WALLET_MOCK] Verifying %s deposit tx=%s amount=%f — auto-confirming", cryptoType, txHash, amount)
	return true, nil
}

func (MockWalletProvider) BroadcastWithdrawal(ctx context.Context, cryptoType, toAddress string, amount float64) (string, error) {
	hash := "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	log.Printf("🔗 [WALLET_MOCK] Broadcast %s withdrawal to %s amount=%f → %s", cryptoType, toAddress, amount, hash)
	return hash, nil
}

// MockIdentityVerifier approves every submission with a synthetic low risk
// score derived from the user id. Real provider (e.g. a biometric KYC SDK)
// plugs in behind the same interface.
type MockIdentityVerifier struct{}

func (MockIdentityVerifier) Verify(ctx context.Context, userID, documentURL string) (KYCResult, error) {
	score := 10 + int(userID[0])%20
	log.Printf("🪪 [KYC_MOCK] Verified user=%s doc=%s score=%d", userID, documentURL, score)
	return KYCResult{Approved: true, RiskScore: score, Reason: "auto-approved (mock verifier)"}, nil
}

// LogNotifier is the default PushNotifier: it only writes to the service log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID, title, body string) error {
	log.Printf("🔔 [NOTIFY] user=%s %s — %s", userID, title, body)
	return nil
}

// FailingNotifier always errors. Used in tests to prove notification
// failures never roll back state transitions.
type FailingNotifier struct{}

func (FailingNotifier) Notify(ctx context.Context, userID, title, body string) error {
	return fmt.Errorf("notification channel unavailable")
}
