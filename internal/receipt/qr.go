// Package receipt issues the encrypted QR printed on order receipts and
// decodes it again at store pickup.
package receipt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

type Token struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	IssuedAt    time.Time          `json:"issued_at"`
}

func NewToken(order models.Order) Token {
	return Token{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		IssuedAt:    time.Now().UTC(),
	}
}

type QRGenerator struct {
	secret []byte // nil when no secret is configured
	size   int
}

// NewQRGenerator derives the AES key from secret. An empty secret yields a
// generator whose every operation fails with a configuration error.
func NewQRGenerator(secret string, size int) *QRGenerator {
	if size <= 0 {
		size = 256
	}
	q := &QRGenerator{size: size}
	if secret != "" {
		hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
		q.secret = hashed[:]
	}
	return q
}

// PNG renders the encrypted token as a QR image.
func (q *QRGenerator) PNG(token Token) ([]byte, error) {
	encrypted, err := q.Encrypt(token)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, q.size)
}

func (q *QRGenerator) Encrypt(token Token) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt rejects anything not produced by Encrypt with the same secret.
func (q *QRGenerator) Decrypt(encoded string) (*Token, error) {
	gcm, err := q.aead()
	if err != nil {
		return nil, err
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperror.Verification("Malformed receipt code")
	}
	if len(raw) < gcm.NonceSize() {
		return nil, apperror.Verification("Malformed receipt code")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperror.Verification("Invalid receipt code")
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, apperror.Verification("Invalid receipt code")
	}
	return &token, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	if len(q.secret) == 0 {
		return nil, apperror.Configuration("Receipt secret not configured")
	}
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
