package service

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newSystemReference builds the order number sent to providers:
// prefix + yyyyMMddHHmmss + milliseconds + 4 random base36 characters.
func newSystemReference(prefix string, now time.Time) string {
	millis := now.Nanosecond() / int(time.Millisecond)
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return fmt.Sprintf("%s%s%03d%s", prefix, now.Format("20060102150405"), millis, suffix)
}

// uniqueMerchantReference suffixes the merchant's own order id so retried
// submissions still produce a distinct stored reference, while the original
// id stays recoverable as the prefix.
func uniqueMerchantReference(orderID string) string {
	return orderID + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
