package light

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const sessionCookie = "TP_SESSIONID"

var ErrAuth = errors.New("device rejected credentials")

func sha256Sum(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func sha1Sum(b []byte) []byte {
	s := sha1.Sum(b)
	return s[:]
}

func authHash(email, password string) []byte {
	return sha256Sum(sha1Sum([]byte(email)), sha1Sum([]byte(password)))
}

// klapCipher holds the per-session symmetric state derived from both seeds.
type klapCipher struct {
	key []byte
	iv  []byte // 12 bytes; the sequence number fills the last 4
	sig []byte
	seq int32
}

func newKlapCipher(local, remote, auth []byte) *klapCipher {
	ivFull := sha256Sum([]byte("iv"), local, remote, auth)

	return &klapCipher{
		key: sha256Sum([]byte("lsk"), local, remote, auth)[:16],
		iv:  ivFull[:12],
		sig: sha256Sum([]byte("ldk"), local, remote, auth)[:28],
		seq: int32(binary.BigEndian.Uint32(ivFull[28:32])),
	}
}

func (c *klapCipher) ivFor(seq int32) []byte {
	iv := make([]byte, 16)
	copy(iv, c.iv)
	binary.BigEndian.PutUint32(iv[12:], uint32(seq))
	return iv
}

// encrypt bumps the sequence and returns the signed request body.
func (c *klapCipher) encrypt(plain []byte) ([]byte, int32, error) {
	c.seq++
	seq := c.seq

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, 0, err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	enc := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.ivFor(seq)).CryptBlocks(enc, padded)

	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, uint32(seq))
	signature := sha256Sum(c.sig, seqBytes, enc)

	return append(signature, enc...), seq, nil
}

func (c *klapCipher) decrypt(seq int32, payload []byte) ([]byte, error) {
	if len(payload) < sha256.Size+aes.BlockSize {
		return nil, fmt.Errorf("short payload: %d bytes", len(payload))
	}
	enc := payload[sha256.Size:]
	if len(enc)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("payload is not block aligned")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, c.ivFor(seq)).CryptBlocks(plain, enc)

	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad padding")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}

type klapSession struct {
	http    *http.Client
	baseURL string
	cookie  string
	cipher  *klapCipher
}

// handshake runs the two-step KLAP exchange and returns a ready session.
func handshake(ctx context.Context, hc *http.Client, baseURL string, auth []byte) (*klapSession, error) {
	local := make([]byte, 16)
	if _, err := rand.Read(local); err != nil {
		return nil, err
	}

	body, cookie, err := post(ctx, hc, baseURL+"/app/handshake1", "", local)
	if err != nil {
		return nil, fmt.Errorf("handshake1: %w", err)
	}
	if len(body) < 48 {
		return nil, fmt.Errorf("handshake1: short response (%d bytes)", len(body))
	}

	remote := body[:16]
	serverHash := body[16:48]

	if subtle.ConstantTimeCompare(serverHash, sha256Sum(local, remote, auth)) != 1 {
		return nil, ErrAuth
	}

	if _, _, err := post(ctx, hc, baseURL+"/app/handshake2", cookie, sha256Sum(remote, local, auth)); err != nil {
		return nil, fmt.Errorf("handshake2: %w", err)
	}

	return &klapSession{
		http:    hc,
		baseURL: baseURL,
		cookie:  cookie,
		cipher:  newKlapCipher(local, remote, auth),
	}, nil
}

type deviceRequest struct {
	Method          string `json:"method"`
	Params          any    `json:"params,omitempty"`
	RequestTimeMils int64  `json:"request_time_milis"`
}

type deviceResponse struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func (s *klapSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	plain, err := json.Marshal(deviceRequest{
		Method:          method,
		Params:          params,
		RequestTimeMils: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	payload, seq, err := s.cipher.encrypt(plain)
	if err != nil {
		return nil, err
	}

	url := s.baseURL + "/app/request?seq=" + strconv.Itoa(int(seq))
	body, _, err := post(ctx, s.http, url, s.cookie, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	raw, err := s.cipher.decrypt(seq, body)
	if err != nil {
		return nil, fmt.Errorf("%s: decrypt: %w", method, err)
	}

	var resp deviceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", method, err)
	}
	if resp.ErrorCode != 0 {
		return nil, fmt.Errorf("%s: device error code %d", method, resp.ErrorCode)
	}

	return resp.Result, nil
}

func post(ctx context.Context, hc *http.Client, url, cookie string, body []byte) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if cookie != "" {
		req.Header.Set("Cookie", sessionCookie+"="+cookie)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c.Value
		}
	}

	return data, cookie, nil
}
