// Package pay implements the WeChat Pay V3 merchant protocol: request
// signing, the mini-program prepay flow, callback signature verification and
// resource decryption. Nothing here talks to the provider directly except the
// HTTP transport, which handlers reach through the Prepayer interface so
// tests can stub it.
package pay

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"storefront.kajin.shop/internal/config"
)

// Client signs merchant requests and verifies provider callbacks.
type Client struct {
	cfg        config.PayConfig
	privateKey *rsa.PrivateKey
	platformPK *rsa.PublicKey
	logger     *slog.Logger
}

// NewClient loads credential material from cfg.CredentialsDir.
func NewClient(cfg config.PayConfig, logger *slog.Logger) (*Client, error) {
	privateKey, err := LoadMerchantKey(cfg.CredentialsDir)
	if err != nil {
		return nil, err
	}
	platformPK, err := LoadPlatformPublicKey(cfg.CredentialsDir)
	if err != nil {
		return nil, err
	}
	if platformPK == nil {
		logger.Warn("platform public key not found, callback verification disabled",
			"dir", cfg.CredentialsDir)
	}
	return &Client{cfg: cfg, privateKey: privateKey, platformPK: platformPK, logger: logger}, nil
}

// NewClientWithKeys builds a client from in-memory keys. Tests use this to
// avoid touching the filesystem.
func NewClientWithKeys(cfg config.PayConfig, privateKey *rsa.PrivateKey, platformPK *rsa.PublicKey, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, privateKey: privateKey, platformPK: platformPK, logger: logger}
}

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NonceString returns a random alphanumeric string of length n.
func NonceString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(buf)
}

func (c *Client) sign(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// AuthorizationHeader builds the V3 Authorization header for a merchant API
// request. The signed message is method, URL path, timestamp, nonce and body,
// each terminated by a newline.
func (c *Client) AuthorizationHeader(method, urlPath, body string) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := NonceString(32)

	message := method + "\n" + urlPath + "\n" + timestamp + "\n" + nonce + "\n" + body + "\n"
	signature, err := c.sign(message)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		c.cfg.MerchantID, nonce, signature, timestamp, c.cfg.CertSerialNo), nil
}

// ClientParams is what the mini program passes to wx.requestPayment.
type ClientParams struct {
	PrepayID  string `json:"prepayId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// SignPrepay signs the prepay session for the mini program. The signed
// message is appid, timestamp, nonce and package, each newline-terminated.
func (c *Client) SignPrepay(prepayID string) (ClientParams, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := NonceString(32)
	pkg := "prepay_id=" + prepayID

	message := c.cfg.AppID + "\n" + timestamp + "\n" + nonce + "\n" + pkg + "\n"
	paySign, err := c.sign(message)
	if err != nil {
		return ClientParams{}, err
	}

	return ClientParams{
		PrepayID:  prepayID,
		TimeStamp: timestamp,
		NonceStr:  nonce,
		Package:   pkg,
		SignType:  "RSA",
		PaySign:   paySign,
	}, nil
}
