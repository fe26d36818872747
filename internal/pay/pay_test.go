package pay

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront.kajin.shop/internal/config"
)

var testAPIKey = strings.Repeat("k", 32)

func newTestClient(t *testing.T) (*Client, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := config.PayConfig{
		AppID:        "wx-test-app",
		MerchantID:   "1900000001",
		APIKey:       testAPIKey,
		CertSerialNo: "TESTSERIAL",
		NotifyURL:    "https://shop.example.com/api/payment/notify",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClientWithKeys(cfg, key, &key.PublicKey, logger), key
}

func TestNonceString(t *testing.T) {
	a := NonceString(32)
	b := NonceString(32)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestAuthorizationHeader(t *testing.T) {
	client, key := newTestClient(t)

	header, err := client.AuthorizationHeader("POST", jsapiOrderPath, `{"total":100}`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(header, "WECHATPAY2-SHA256-RSA2048 "))
	assert.Contains(t, header, `mchid="1900000001"`)
	assert.Contains(t, header, `serial_no="TESTSERIAL"`)

	fields := parseAuthFields(t, header)
	message := "POST\n" + jsapiOrderPath + "\n" + fields["timestamp"] + "\n" +
		fields["nonce_str"] + "\n" + `{"total":100}` + "\n"
	sig, err := base64.StdEncoding.DecodeString(fields["signature"])
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(message))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func parseAuthFields(t *testing.T, header string) map[string]string {
	t.Helper()
	_, rest, found := strings.Cut(header, " ")
	require.True(t, found)

	fields := make(map[string]string)
	for _, pair := range strings.Split(rest, `",`) {
		k, v, ok := strings.Cut(pair, `="`)
		require.True(t, ok, "malformed field %q", pair)
		fields[k] = strings.TrimSuffix(v, `"`)
	}
	return fields
}

func TestSignPrepay(t *testing.T) {
	client, key := newTestClient(t)

	params, err := client.SignPrepay("wx20260830abcdef")
	require.NoError(t, err)

	assert.Equal(t, "wx20260830abcdef", params.PrepayID)
	assert.Equal(t, "prepay_id=wx20260830abcdef", params.Package)
	assert.Equal(t, "RSA", params.SignType)
	assert.Len(t, params.NonceStr, 32)

	message := "wx-test-app\n" + params.TimeStamp + "\n" + params.NonceStr + "\n" + params.Package + "\n"
	sig, err := base64.StdEncoding.DecodeString(params.PaySign)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(message))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func signCallback(t *testing.T, key *rsa.PrivateKey, timestamp, nonce, body string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(timestamp + "\n" + nonce + "\n" + body + "\n"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestVerifyCallback(t *testing.T) {
	client, key := newTestClient(t)

	body := `{"event_type":"TRANSACTION.SUCCESS"}`
	sig := signCallback(t, key, "1756500000", "nonce123", body)

	assert.NoError(t, client.VerifyCallback("1756500000", "nonce123", body, sig))

	// Tampered body fails.
	assert.Error(t, client.VerifyCallback("1756500000", "nonce123", body+" ", sig))

	// Wrong timestamp fails.
	assert.Error(t, client.VerifyCallback("1756500001", "nonce123", body, sig))

	// Garbage signature fails.
	assert.Error(t, client.VerifyCallback("1756500000", "nonce123", body, "!!not-base64!!"))
}

func TestVerifyCallbackWithoutPlatformKey(t *testing.T) {
	client, _ := newTestClient(t)
	client.platformPK = nil

	err := client.VerifyCallback("1", "n", "{}", "sig")
	assert.ErrorIs(t, err, ErrNoPlatformKey)
}

func encryptResource(t *testing.T, apiKey, nonce, aad string, plaintext []byte) string {
	t.Helper()
	block, err := aes.NewCipher([]byte(apiKey))
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, []byte(nonce), plaintext, []byte(aad))
	return base64.StdEncoding.EncodeToString(sealed)
}

func TestDecryptResource(t *testing.T) {
	client, _ := newTestClient(t)

	txn := Transaction{
		OutTradeNo:    "MGKW17565000001234",
		TransactionID: "4200001234202608301234567890",
		TradeState:    "SUCCESS",
		SuccessTime:   "2026-08-30T12:34:56+08:00",
	}
	txn.Amount.Total = 1250
	txn.Amount.PayerTotal = 1250
	plaintext, err := json.Marshal(txn)
	require.NoError(t, err)

	tests := []struct {
		name       string
		sealAAD    string
		envelopeAD string
	}{
		{"associated_data set", "transaction", "transaction"},
		{"associated_data omitted, default used", "transaction", ""},
		{"empty aad", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env NotifyEnvelope
			env.EventType = EventTransactionSuccess
			env.Resource.Nonce = "abcdefghijkl"
			env.Resource.AssociatedData = tt.envelopeAD
			env.Resource.Ciphertext = encryptResource(t, testAPIKey, env.Resource.Nonce, tt.sealAAD, plaintext)

			got, err := client.DecryptResource(env)
			require.NoError(t, err)
			assert.Equal(t, txn.OutTradeNo, got.OutTradeNo)
			assert.Equal(t, txn.TransactionID, got.TransactionID)
			assert.EqualValues(t, 1250, got.Amount.Total)
		})
	}
}

func TestDecryptResourceWrongKey(t *testing.T) {
	client, _ := newTestClient(t)

	var env NotifyEnvelope
	env.Resource.Nonce = "abcdefghijkl"
	env.Resource.Ciphertext = encryptResource(t, strings.Repeat("x", 32), env.Resource.Nonce, "transaction", []byte(`{}`))

	_, err := client.DecryptResource(env)
	assert.Error(t, err)
}

func TestLoadMerchantKeyFormats(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	tests := []struct {
		name  string
		block *pem.Block
	}{
		{"pkcs8", &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}},
		{"pkcs1", &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, merchantKeyFile)
			require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(tt.block), 0o600))

			loaded, err := LoadMerchantKey(dir)
			require.NoError(t, err)
			assert.True(t, loaded.Equal(key))
		})
	}
}

func TestLoadPlatformPublicKeyMissingIsNotAnError(t *testing.T) {
	pk, err := LoadPlatformPublicKey(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, pk)
}
