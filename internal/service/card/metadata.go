package card

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/janasewa/membership-go/internal/domain"
)

// buildCardData: derives fresh card metadata. The card identifier, number
// and integrity hash include time and random components, so every call
// yields a new card; this is the one sub-operation that is never cached.
func buildCardData(record *domain.MemberRecord, template, issuer string, issuedAt, expiresAt time.Time) (domain.CardData, error) {
	suffix, err := randomHex(4)
	if err != nil {
		return domain.CardData{}, fmt.Errorf("failed to derive card number: %w", err)
	}
	cardNo := "C" + issuedAt.Format("20060102") + "-" + suffix

	return domain.CardData{
		CardID:        uuid.NewString(),
		CardNo:        cardNo,
		MemberID:      record.ID,
		MemberNo:      record.MemberNo,
		HolderName:    record.FullName(),
		Issuer:        issuer,
		Template:      template,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		IntegrityHash: integrityHash(record.ID, record.MemberNo, cardNo, issuedAt),
	}, nil
}

// integrityHash: one-way hash binding the card number to the member and the
// issuance instant.
func integrityHash(memberID, memberNo, cardNo string, issuedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(memberID))
	h.Write([]byte{'|'})
	h.Write([]byte(memberNo))
	h.Write([]byte{'|'})
	h.Write([]byte(cardNo))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(issuedAt.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
