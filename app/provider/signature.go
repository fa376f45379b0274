package provider

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

func hmacSHA256Hex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacEqualHex(expected string, secret string, payload []byte) bool {
	want, err := hex.DecodeString(strings.TrimSpace(expected))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(want, mac.Sum(nil))
}

// sortedFieldDigest builds the StarPago-style request signature: drop empty
// values and the sign field itself, sort the remaining keys, join them as
// k=v pairs with &, append &key=<secret> and hash the result.
func sortedFieldDigest(fields map[string]string, secret string, algo string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	b.WriteString("&key=")
	b.WriteString(secret)

	if strings.EqualFold(algo, "md5") {
		sum := md5.Sum([]byte(b.String()))
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
