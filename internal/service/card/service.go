package card

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"log/slog"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/internal/domain"
	"github.com/janasewa/membership-go/internal/service/cache"
	"github.com/janasewa/membership-go/internal/util"
	"github.com/janasewa/membership-go/pkg/errors"
)

// MemberResolver: the slice of the member lookup cache the pipeline needs.
type MemberResolver interface {
	GetByID(ctx context.Context, id string) (*domain.MemberRecord, error)
}

// Service: the card generation pipeline. One generate call runs
// resolve → compose(metadata, payload, render in parallel) → assemble →
// cache → return. The composite artifact and the payload/render
// sub-artifacts are cached independently; metadata never is.
type Service struct {
	members MemberResolver
	store   *cache.Service
	logger  *slog.Logger

	issuer           string
	validityDays     int
	batchConcurrency int
}

// Config: card pipeline settings
type Config struct {
	Issuer           string
	ValidityDays     int
	BatchConcurrency int
}

// Options: per-call generation options.
type Options struct {
	Template     string
	Issuer       string
	CustomExpiry *time.Time
}

// BatchOptions: batch generation options.
type BatchOptions struct {
	Concurrency int
}

// NewService: creates the card pipeline service.
func NewService(members MemberResolver, store *cache.Service, logger *slog.Logger, cfg Config) *Service {
	if cfg.Issuer == "" {
		cfg.Issuer = constants.CardDefaults.Issuer
	}
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = constants.CardDefaults.ValidityDays
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = constants.CardDefaults.BatchConcurrency
	}

	return &Service{
		members:          members,
		store:            store,
		logger:           logger,
		issuer:           cfg.Issuer,
		validityDays:     cfg.ValidityDays,
		batchConcurrency: cfg.BatchConcurrency,
	}
}

func (s *Service) cacheEnabled() bool {
	return s != nil && s.store != nil
}

// Generate: produces the composite card artifact for one member. A composite
// cache hit short-circuits everything; otherwise the member is resolved and
// the three sub-operations run concurrently, with the first failure
// cancelling the rest and nothing partial written to the composite cache.
func (s *Service) Generate(ctx context.Context, memberID string, opts Options) (*domain.CardArtifact, error) {
	template := opts.Template
	if template == "" {
		template = constants.CardDefaults.Template
	}
	if !IsRegisteredTemplate(template) {
		return nil, errors.NewValidationError("unknown card template: "+template, "template")
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = s.issuer
	}

	if artifact := s.readComposite(ctx, memberID, template); artifact != nil {
		return artifact, nil
	}

	record, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, errors.NewPipelineError("resolve", memberID, err)
	}
	if record == nil {
		return nil, errors.NewNotFoundError("member", memberID)
	}

	issuedAt := time.Now()
	expiresAt := issuedAt.AddDate(0, 0, s.validityDays)
	if opts.CustomExpiry != nil {
		expiresAt = *opts.CustomExpiry
	}

	var (
		meta   domain.CardData
		qrPNG  []byte
		pdfDoc []byte
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		meta, err = buildCardData(record, template, issuer, issuedAt, expiresAt)
		if err != nil {
			return errors.NewPipelineError("metadata", memberID, err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		qrPNG, err = s.payloadQR(ctx, record)
		if err != nil {
			return errors.NewPipelineError("payload", memberID, err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		pdfDoc, err = s.renderedPDF(ctx, record, template, issuer, expiresAt)
		if err != nil {
			return errors.NewPipelineError("render", memberID, err)
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	artifact := &domain.CardArtifact{
		Card:  meta,
		QRPNG: qrPNG,
		PDF:   pdfDoc,
	}

	if s.cacheEnabled() {
		if err := s.store.Set(ctx, compositeKey(memberID, template), artifact, constants.CacheTTL.CompositeCard); err != nil {
			s.logger.Warn("Failed to cache composite card",
				slog.String("member_id", memberID),
				slog.String("template", template),
				slog.Any("error", err),
			)
		}
	}

	return artifact, nil
}

// BatchGenerate: runs Generate over many members in fixed-size windows.
// A window fully completes before the next starts; item failures are
// captured per slot and never abort the batch. Results keep input order.
func (s *Service) BatchGenerate(ctx context.Context, memberIDs []string, opts BatchOptions) (*domain.BatchSummary, error) {
	if len(memberIDs) == 0 {
		return nil, errors.NewValidationError("memberIds must not be empty", "memberIds")
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.batchConcurrency
	}

	summary := &domain.BatchSummary{
		Total:   len(memberIDs),
		Results: make([]domain.BatchItemResult, len(memberIDs)),
	}

	windows := util.Chunk(memberIDs, concurrency)
	base := 0
	for _, window := range windows {
		wp := pool.New().WithMaxGoroutines(len(window))
		for i, memberID := range window {
			slot := base + i
			wp.Go(func() {
				result := domain.BatchItemResult{MemberID: memberID, Success: true}
				if _, err := s.Generate(ctx, memberID, Options{}); err != nil {
					result.Success = false
					result.Error = err.Error()
				}
				summary.Results[slot] = result
			})
		}
		wp.Wait()
		base += len(window)
	}

	for _, result := range summary.Results {
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("Batch card generation finished",
		slog.Int("total", summary.Total),
		slog.Int("successful", summary.Successful),
		slog.Int("failed", summary.Failed),
	)

	return summary, nil
}

// Invalidate: best-effort removal of the composite and sub-artifact entries
// for one member across every registered template. The payload entry can
// only be addressed when the member still resolves (its key embeds the
// membership number); unregistered template names are a known staleness
// window. Returns the number of entries actually removed.
func (s *Service) Invalidate(ctx context.Context, memberID string) (int64, error) {
	if !s.cacheEnabled() {
		return 0, nil
	}

	keys := []string{metaKey(memberID)}
	for _, template := range Templates {
		keys = append(keys, compositeKey(memberID, template), pdfKey(memberID, template))
	}

	if record, err := s.members.GetByID(ctx, memberID); err == nil && record != nil {
		keys = append(keys, qrKey(memberID, record.MemberNo))
	} else {
		s.logger.Debug("Skipping payload key during invalidation", slog.String("member_id", memberID))
	}

	deleted, err := s.store.DelMany(ctx, keys)
	if err != nil {
		s.logger.Warn("Card cache invalidation degraded", slog.String("member_id", memberID), slog.Any("error", err))
		return 0, nil
	}

	return deleted, nil
}

// CacheStats: forwards aggregate store counters. Per-prefix breakdowns are
// not tracked.
func (s *Service) CacheStats(ctx context.Context) (*cache.Stats, error) {
	if !s.cacheEnabled() {
		return &cache.Stats{}, nil
	}
	return s.store.Stats(ctx)
}

func (s *Service) readComposite(ctx context.Context, memberID, template string) *domain.CardArtifact {
	if !s.cacheEnabled() {
		return nil
	}

	var artifact domain.CardArtifact
	found, err := s.store.Get(ctx, compositeKey(memberID, template), &artifact)
	if err != nil {
		s.logger.Debug("Composite cache read degraded to miss", slog.String("member_id", memberID), slog.Any("error", err))
		return nil
	}
	if !found || artifact.Card.CardID == "" {
		return nil
	}

	artifact.CacheHit = true
	return &artifact
}

// payloadQR: the scannable payload image, cached per membership since its
// content is stable for a given membership number.
func (s *Service) payloadQR(ctx context.Context, record *domain.MemberRecord) ([]byte, error) {
	key := qrKey(record.ID, record.MemberNo)

	if s.cacheEnabled() {
		var cached []byte
		if found, err := s.store.Get(ctx, key, &cached); err == nil && found && len(cached) > 0 {
			return cached, nil
		}
	}

	payload, err := buildQRPayload(record)
	if err != nil {
		return nil, err
	}
	png, err := encodeQR(payload, constants.CardDefaults.QRSizePixels)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		if err := s.store.Set(ctx, key, png, constants.CacheTTL.QRPayload); err != nil {
			s.logger.Warn("Failed to cache qr payload", slog.String("key", key), slog.Any("error", err))
		}
	}

	return png, nil
}

// renderedPDF: the two-sided document, cached per (member, template).
func (s *Service) renderedPDF(ctx context.Context, record *domain.MemberRecord, template, issuer string, expiresAt time.Time) ([]byte, error) {
	key := pdfKey(record.ID, template)

	if s.cacheEnabled() {
		var cached []byte
		if found, err := s.store.Get(ctx, key, &cached); err == nil && found && len(cached) > 0 {
			return cached, nil
		}
	}

	doc, err := renderCardPDF(record, template, issuer, expiresAt)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		if err := s.store.Set(ctx, key, doc, constants.CacheTTL.RenderedPDF); err != nil {
			s.logger.Warn("Failed to cache rendered card", slog.String("key", key), slog.Any("error", err))
		}
	}

	return doc, nil
}
