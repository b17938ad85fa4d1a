package card

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/janasewa/membership-go/internal/domain"
)

// qrPayload: the scannable card payload. Content is stable for a given
// membership, which is what makes the per-membership QR cache valid.
type qrPayload struct {
	MemberID string `json:"memberId"`
	MemberNo string `json:"memberNo,omitempty"`
	Name     string `json:"name"`
	Expiry   string `json:"expiry,omitempty"`
	IssuedAt string `json:"issuedAt,omitempty"`
}

// buildQRPayload: serializes the stable membership fields. IssuedAt is the
// membership join date, not the card generation time; a generation timestamp
// here would defeat the payload cache.
func buildQRPayload(record *domain.MemberRecord) (string, error) {
	payload := qrPayload{
		MemberID: record.ID,
		MemberNo: record.MemberNo,
		Name:     record.FullName(),
	}
	if record.ExpiresAt != nil {
		payload.Expiry = record.ExpiresAt.Format(time.DateOnly)
	}
	if record.JoinedAt != nil {
		payload.IssuedAt = record.JoinedAt.Format(time.DateOnly)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qr payload: %w", err)
	}
	return string(data), nil
}

// encodeQR: renders a UTF-8 payload as a PNG at the given pixel width.
// Deterministic for identical input.
func encodeQR(payload string, sizePixels int) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, sizePixels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return png, nil
}
