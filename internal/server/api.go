package server

import (
	"log/slog"

	"github.com/janasewa/membership-go/internal/service/card"
	"github.com/janasewa/membership-go/internal/service/member"
)

// APIHandler: handles the membership backend HTTP surface.
// Handler methods are split by domain:
//   - api_member.go: member lookup + cache administration
//   - api_card.go: card generation, batch runs, artifact cache
type APIHandler struct {
	repo        *member.Repository
	memberCache *member.Cache
	cards       *card.Service
	logger      *slog.Logger
}

// NewAPIHandler: creates the API handler.
func NewAPIHandler(
	repo *member.Repository,
	memberCache *member.Cache,
	cards *card.Service,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		repo:        repo,
		memberCache: memberCache,
		cards:       cards,
		logger:      logger,
	}
}
