package bookeo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds the replay window for webhook
// notifications. NTP skew between Bookeo and the receiver has to fit
// inside it.
const DefaultSignatureTolerance = 120 * time.Second

// VerifyWebhookSignature reports whether an inbound webhook request
// genuinely originated from Bookeo and is fresh. The timestamp header is
// epoch milliseconds as a numeric string. The canonical message is the
// exact concatenation timestamp+messageID+webhookURL+body, so webhookURL
// must be byte-identical to the URL registered upstream. Malformed input
// is simply not verified; this function never fails.
func VerifyWebhookSignature(body []byte, timestampHeader, messageIDHeader, signatureHeader, webhookURL, secret string, now time.Time, tolerance time.Duration) bool {
	if timestampHeader == "" || messageIDHeader == "" || signatureHeader == "" {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return false
	}
	delta := now.UnixMilli() - ts
	if delta < 0 {
		delta = -delta
	}
	if delta > tolerance.Milliseconds() {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestampHeader))
	_, _ = mac.Write([]byte(messageIDHeader))
	_, _ = mac.Write([]byte(webhookURL))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signatureHeader))))
}
