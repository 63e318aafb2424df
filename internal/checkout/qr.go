package checkout

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

// QRPayload is what the confirmation QR carries, encrypted.
type QRPayload struct {
	Reference string    `json:"reference"`
	Phone     string    `json:"phone"`
	Total     float64   `json:"total"`
	PlacedAt  time.Time `json:"placed_at"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// Generate returns a PNG QR code of the encrypted payload.
func (q *QRGenerator) Generate(payload QRPayload) ([]byte, error) {
	token, err := q.Encrypt(payload)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

// Encrypt returns the URL-safe base64 token the QR code encodes.
func (q *QRGenerator) Encrypt(payload QRPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// Decrypt reverses Encrypt.
func (q *QRGenerator) Decrypt(token string) (*QRPayload, error) {
	data, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, err
	}
	var payload QRPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(data, ciphertext[aes.BlockSize:])
	return data, nil
}
