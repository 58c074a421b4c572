package bitbank

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// signer implements request signing for the private REST API: every request
// carries ACCESS-KEY, a strictly increasing ACCESS-NONCE, and an HMAC-SHA256
// ACCESS-SIGNATURE over nonce+path for GET and nonce+body for POST.
type signer struct {
	apiKey    string
	secretKey []byte
	nonce     int64
}

func newSigner(apiKey, secretKey string) *signer {
	return &signer{
		apiKey:    apiKey,
		secretKey: []byte(secretKey),
		nonce:     time.Now().UnixMilli(),
	}
}

func (s *signer) nextNonce() string {
	return strconv.FormatInt(atomic.AddInt64(&s.nonce, 1), 10)
}

func (s *signer) SignRequest(req *http.Request, body []byte) error {
	nonce := s.nextNonce()

	var message string
	if req.Method == http.MethodGet {
		message = nonce + req.URL.Path
		if req.URL.RawQuery != "" {
			message += "?" + req.URL.RawQuery
		}
	} else {
		message = nonce + string(body)
	}

	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(message))

	req.Header.Set("ACCESS-KEY", s.apiKey)
	req.Header.Set("ACCESS-NONCE", nonce)
	req.Header.Set("ACCESS-SIGNATURE", hex.EncodeToString(mac.Sum(nil)))
	return nil
}
