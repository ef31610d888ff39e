package bingx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// sign returns hex(HMAC-SHA256(secret, payload)).
func sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// signedQuery adds the millisecond timestamp, encodes the parameters sorted by
// key and appends the signature computed over that encoding.
func signedQuery(secret string, params url.Values, now time.Time) string {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))
	payload := q.Encode() // url.Values.Encode sorts by key
	return payload + "&signature=" + sign(secret, payload)
}
