package payment

import (
	"fmt"
	"math/rand"
	"time"
)

const receiptAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReceiptNumber returns a human-facing receipt reference: RCP-<epoch millis>-<6 uppercase alphanumerics>.
func NewReceiptNumber(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = receiptAlphabet[rand.Intn(len(receiptAlphabet))]
	}
	return fmt.Sprintf("RCP-%d-%s", now.UnixMilli(), suffix)
}
