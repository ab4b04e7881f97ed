package stores

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Secrets are the store values never kept in plain columns.
type Secrets struct {
	StripeSecretKey string `json:"stripe_secret_key,omitempty"`
}

// EncryptSecrets JSON-encodes s and, when key is set, seals it with AES-GCM
// as 0x01 | nonce | ciphertext.
func EncryptSecrets(s Secrets, key []byte) ([]byte, error) {
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return plain, nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

// DecryptSecrets reverses EncryptSecrets. Unversioned blobs are treated as plain JSON.
func DecryptSecrets(blob []byte, key []byte) (Secrets, error) {
	var s Secrets
	if len(blob) == 0 {
		return s, nil
	}
	if blob[0] != 0x01 {
		if err := json.Unmarshal(blob, &s); err != nil {
			return s, fmt.Errorf("unsupported secrets blob: %w", err)
		}
		return s, nil
	}
	if len(key) == 0 {
		return s, fmt.Errorf("encrypted secrets but no key configured")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return s, err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return s, fmt.Errorf("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, blob[1+gcm.NonceSize():], nil)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(plain, &s); err != nil {
		return s, err
	}
	return s, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
