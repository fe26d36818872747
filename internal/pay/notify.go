package pay

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Callback event types the notify endpoint handles.
const (
	EventTransactionSuccess = "TRANSACTION.SUCCESS"
	EventTransactionClosed  = "TRANSACTION.CLOSED"
)

// ErrNoPlatformKey is returned when a callback arrives but no platform public
// key was loaded to verify it against.
var ErrNoPlatformKey = errors.New("platform public key not loaded")

// NotifyEnvelope is the outer callback body. The interesting part is
// encrypted inside Resource.
type NotifyEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		Ciphertext     string `json:"ciphertext"`
		Nonce          string `json:"nonce"`
		AssociatedData string `json:"associated_data"`
		OriginalType   string `json:"original_type"`
	} `json:"resource"`
}

// Transaction is the decrypted payment notification resource.
type Transaction struct {
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
	TradeType      string `json:"trade_type"`
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc"`
	BankType       string `json:"bank_type"`
	SuccessTime    string `json:"success_time"`
	MerchantID     string `json:"mchid"`
	Payer          struct {
		OpenID string `json:"openid"`
	} `json:"payer"`
	Amount struct {
		Total      int64  `json:"total"`
		PayerTotal int64  `json:"payer_total"`
		Currency   string `json:"currency"`
	} `json:"amount"`
}

// VerifyCallback checks the provider's signature over a callback request.
// The signed message is timestamp, nonce and body, each newline-terminated.
func (c *Client) VerifyCallback(timestamp, nonce, body, signature string) error {
	if c.platformPK == nil {
		return ErrNoPlatformKey
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decoding callback signature: %w", err)
	}

	message := timestamp + "\n" + nonce + "\n" + body + "\n"
	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPKCS1v15(c.platformPK, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("callback signature mismatch: %w", err)
	}
	return nil
}

// DecryptResource decrypts the callback's AES-256-GCM resource with the API
// key. The ciphertext is base64, the nonce is the raw string from the
// envelope, and the associated data may legitimately be empty; when the
// envelope's value fails we fall back to the documented "transaction" value
// and the empty string, since providers have been observed sending either.
func (c *Client) DecryptResource(env NotifyEnvelope) (Transaction, error) {
	key := []byte(c.cfg.APIKey)
	if len(key) != 32 {
		return Transaction{}, fmt.Errorf("api key must be 32 bytes, got %d", len(key))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Resource.Ciphertext)
	if err != nil {
		return Transaction{}, fmt.Errorf("decoding resource ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return Transaction{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Transaction{}, err
	}

	var lastErr error
	for _, aad := range aadCandidates(env) {
		plaintext, err := gcm.Open(nil, []byte(env.Resource.Nonce), ciphertext, []byte(aad))
		if err != nil {
			lastErr = err
			continue
		}

		var txn Transaction
		if err := json.Unmarshal(plaintext, &txn); err != nil {
			return Transaction{}, fmt.Errorf("decoding decrypted resource: %w", err)
		}
		return txn, nil
	}
	return Transaction{}, fmt.Errorf("decrypting resource: %w", lastErr)
}

func aadCandidates(env NotifyEnvelope) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			candidates = append(candidates, s)
		}
	}

	if env.Resource.AssociatedData != "" {
		add(env.Resource.AssociatedData)
	} else if env.Resource.OriginalType != "" {
		add(env.Resource.OriginalType)
	}
	add("transaction")
	add("")
	return candidates
}
