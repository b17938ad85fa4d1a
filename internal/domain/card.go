package domain

import "time"

// CardData: structured metadata for one issued digital card.
// CardID and CardNo are derived fresh on every generate call; the integrity
// hash binds them to the member, so two calls never produce identical values.
type CardData struct {
	CardID        string    `json:"cardId"`
	CardNo        string    `json:"cardNo"`
	MemberID      string    `json:"memberId"`
	MemberNo      string    `json:"memberNo,omitempty"`
	HolderName    string    `json:"holderName"`
	Issuer        string    `json:"issuer,omitempty"`
	Template      string    `json:"template"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IntegrityHash string    `json:"integrityHash"`
}

// CardArtifact: fully assembled card output cached as one unit.
// QRPNG is the scannable payload image; PDF is the rendered two-sided
// document.
type CardArtifact struct {
	Card     CardData `json:"card"`
	QRPNG    []byte   `json:"qrPng"`
	PDF      []byte   `json:"pdf"`
	CacheHit bool     `json:"-"`
}

// BatchItemResult: per-member outcome within one batch generation run.
type BatchItemResult struct {
	MemberID string `json:"memberId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary: aggregate outcome of a batch generation run. Created per
// invocation and discarded after the caller consumes it.
type BatchSummary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}
