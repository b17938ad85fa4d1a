package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/pkg/errors"
)

// GetMember: resolves a member by internal ID.
func (h *APIHandler) GetMember(c *gin.Context) {
	memberID := c.Param("id")
	if memberID == "" {
		c.JSON(400, gin.H{"error": "Member ID is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Lookup)
	defer cancel()

	record, err := h.memberCache.GetByID(ctx, memberID)
	if err != nil {
		h.logger.Error("Member lookup failed", slog.String("id", memberID), slog.Any("error", err))
		c.JSON(502, gin.H{"error": "Member lookup failed"})
		return
	}
	if record == nil {
		c.JSON(404, gin.H{"error": "Member not found"})
		return
	}

	c.JSON(200, gin.H{
		"member":   record,
		"cacheHit": record.CacheHit,
	})
}

// GetMemberByNumber: resolves a member by membership number.
func (h *APIHandler) GetMemberByNumber(c *gin.Context) {
	memberNo := c.Param("no")
	if memberNo == "" {
		c.JSON(400, gin.H{"error": "Membership number is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Lookup)
	defer cancel()

	record, err := h.memberCache.GetByMemberNo(ctx, memberNo)
	if err != nil {
		h.logger.Error("Member lookup failed", slog.String("member_no", memberNo), slog.Any("error", err))
		c.JSON(502, gin.H{"error": "Member lookup failed"})
		return
	}
	if record == nil {
		c.JSON(404, gin.H{"error": "Member not found"})
		return
	}

	c.JSON(200, gin.H{
		"member":   record,
		"cacheHit": record.CacheHit,
	})
}

// LookupMembers: batch lookup by membership numbers.
func (h *APIHandler) LookupMembers(c *gin.Context) {
	var req struct {
		MemberNos []string `json:"memberNos" binding:"required,min=1,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Lookup)
	defer cancel()

	records, err := h.memberCache.GetManyByMemberNo(ctx, req.MemberNos)
	if err != nil {
		h.logger.Error("Batch member lookup failed", slog.Int("count", len(req.MemberNos)), slog.Any("error", err))
		c.JSON(502, gin.H{"error": "Member lookup failed"})
		return
	}

	c.JSON(200, gin.H{
		"members": records,
		"count":   len(records),
	})
}

// WarmMemberCache: triggers a best-effort cache warm-up.
func (h *APIHandler) WarmMemberCache(c *gin.Context) {
	var req struct {
		Limit int `json:"limit"`
	}
	_ = c.ShouldBindJSON(&req)

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	loaded, err := h.memberCache.WarmUp(ctx, req.Limit)
	if err != nil {
		h.logger.Error("Member cache warm-up failed", slog.Any("error", err))
		c.JSON(500, gin.H{"error": "Warm-up failed"})
		return
	}

	c.JSON(200, gin.H{
		"status": "ok",
		"loaded": loaded,
	})
}

// UpdateMemberContact: updates contact fields on the base row, then drops
// both cache copies so the next lookup re-reads the source.
func (h *APIHandler) UpdateMemberContact(c *gin.Context) {
	memberID := c.Param("id")

	var req struct {
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		MemberNo string `json:"memberNo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	if err := h.repo.UpdateContact(ctx, memberID, req.Phone, req.Email); err != nil {
		var notFound *errors.NotFoundError
		if stderrors.As(err, &notFound) {
			c.JSON(404, gin.H{"error": "Member not found"})
			return
		}
		h.logger.Error("Contact update failed", slog.String("id", memberID), slog.Any("error", err))
		c.JSON(500, gin.H{"error": "Update failed"})
		return
	}

	if err := h.memberCache.Invalidate(ctx, memberID, req.MemberNo); err != nil {
		h.logger.Warn("Post-update invalidation failed", slog.String("id", memberID), slog.Any("error", err))
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// RenewMembership: extends a member's expiry, then drops the member record
// and the card artifacts; the expiry is baked into rendered cards.
func (h *APIHandler) RenewMembership(c *gin.Context) {
	memberID := c.Param("id")

	var req struct {
		ExpiresAt time.Time `json:"expiresAt" binding:"required"`
		MemberNo  string    `json:"memberNo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	if err := h.repo.TouchRenewal(ctx, memberID, req.ExpiresAt); err != nil {
		var notFound *errors.NotFoundError
		if stderrors.As(err, &notFound) {
			c.JSON(404, gin.H{"error": "Member not found"})
			return
		}
		h.logger.Error("Renewal failed", slog.String("id", memberID), slog.Any("error", err))
		c.JSON(500, gin.H{"error": "Renewal failed"})
		return
	}

	if err := h.memberCache.Invalidate(ctx, memberID, req.MemberNo); err != nil {
		h.logger.Warn("Post-renewal invalidation failed", slog.String("id", memberID), slog.Any("error", err))
	}
	if _, err := h.cards.Invalidate(ctx, memberID); err != nil {
		h.logger.Warn("Post-renewal card invalidation failed", slog.String("id", memberID), slog.Any("error", err))
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// InvalidateMember: drops both cache copies of a member record. Used by the
// CRUD layers after any write to the underlying row.
func (h *APIHandler) InvalidateMember(c *gin.Context) {
	memberID := c.Param("id")
	memberNo := c.Query("memberNo")

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.Admin)
	defer cancel()

	if err := h.memberCache.Invalidate(ctx, memberID, memberNo); err != nil {
		var cacheErr *errors.CacheError
		if stderrors.As(err, &cacheErr) {
			h.logger.Warn("Member cache invalidation failed", slog.String("id", memberID), slog.Any("error", err))
			c.JSON(502, gin.H{"error": "Cache store unavailable"})
			return
		}
		c.JSON(500, gin.H{"error": "Invalidation failed"})
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}
