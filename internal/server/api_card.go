package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/internal/service/card"
	"github.com/janasewa/membership-go/pkg/errors"
)

type generateCardRequest struct {
	Template     string     `json:"template"`
	Issuer       string     `json:"issuer"`
	CustomExpiry *time.Time `json:"customExpiry"`
}

// GenerateCard: produces the composite card artifact for one member.
// The QR image and PDF come back base64-encoded in the JSON payload.
func (h *APIHandler) GenerateCard(c *gin.Context) {
	memberID := c.Param("id")
	if memberID == "" {
		c.JSON(400, gin.H{"error": "Member ID is required"})
		return
	}

	// Options body is optional.
	var req generateCardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Generate)
	defer cancel()

	artifact, err := h.cards.Generate(ctx, memberID, card.Options{
		Template:     req.Template,
		Issuer:       req.Issuer,
		CustomExpiry: req.CustomExpiry,
	})
	if err != nil {
		h.respondCardError(c, memberID, err)
		return
	}

	c.JSON(200, gin.H{
		"card":     artifact.Card,
		"qrPng":    artifact.QRPNG,
		"pdf":      artifact.PDF,
		"cacheHit": artifact.CacheHit,
	})
}

// BatchGenerateCards: runs card generation over many members with bounded
// concurrency. Individual failures are reported per item, never as an HTTP
// error.
func (h *APIHandler) BatchGenerateCards(c *gin.Context) {
	var req struct {
		MemberIDs   []string `json:"memberIds" binding:"required,min=1,max=1000"`
		Concurrency int      `json:"concurrency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Batch)
	defer cancel()

	summary, err := h.cards.BatchGenerate(ctx, req.MemberIDs, card.BatchOptions{
		Concurrency: req.Concurrency,
	})
	if err != nil {
		h.logger.Error("Batch card generation failed to start", slog.Any("error", err))
		c.JSON(500, gin.H{"error": "Batch generation failed"})
		return
	}

	c.JSON(200, summary)
}

// InvalidateCard: best-effort removal of a member's cached card artifacts.
func (h *APIHandler) InvalidateCard(c *gin.Context) {
	memberID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	deleted, err := h.cards.Invalidate(ctx, memberID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Invalidation failed"})
		return
	}

	c.JSON(200, gin.H{
		"status":  "ok",
		"deleted": deleted,
	})
}

// CardCacheStats: aggregate cache store counters.
func (h *APIHandler) CardCacheStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	stats, err := h.cards.CacheStats(ctx)
	if err != nil {
		h.logger.Error("Cache stats unavailable", slog.Any("error", err))
		c.JSON(502, gin.H{"error": "Cache store unavailable"})
		return
	}

	c.JSON(200, stats)
}

func (h *APIHandler) respondCardError(c *gin.Context, memberID string, err error) {
	var notFound *errors.NotFoundError
	if stderrors.As(err, &notFound) {
		c.JSON(404, gin.H{"error": "Member not found"})
		return
	}

	var validation *errors.ValidationError
	if stderrors.As(err, &validation) {
		c.JSON(400, gin.H{"error": validation.Error()})
		return
	}

	h.logger.Error("Card generation failed",
		slog.String("member_id", memberID),
		slog.Any("error", err),
	)
	c.JSON(500, gin.H{"error": "Card generation failed"})
}
