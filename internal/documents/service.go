package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime"

	"go.uber.org/zap"

	"signing-portal/signing-portal-backend/internal/notifications"
	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/session"
	"signing-portal/signing-portal-backend/internal/signature"
	"signing-portal/signing-portal-backend/pkg/pdf"
)

// Service runs the document side of a signing session: loading the upload,
// rendering previews and producing the signed file.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (session.DocumentInfo, error)
	Preview(ctx context.Context, sessionID string, pageIndex int, scale float64) ([]byte, error)
	Sign(ctx context.Context, sessionID string) (*SignResult, error)
	// Forget drops cached data for an ended session.
	Forget(sessionID string)
}

// Config tunes rendering and signing.
type Config struct {
	RenderScale    float64
	PreviewScale   float64
	BoundsPolicy   placement.BoundsPolicy
	MaxUploadBytes int64
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		RenderScale:    placement.DefaultRenderScale,
		PreviewScale:   1.5,
		BoundsPolicy:   placement.BoundsClamp,
		MaxUploadBytes: 50 << 20,
	}
}

// ServiceOption customizes the service.
type ServiceOption func(*signingService)

// WithArchiver stores a copy of every signed document.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *signingService) {
		s.archiver = a
	}
}

// WithPDFOptions passes options to every pdf.Load.
func WithPDFOptions(opts ...pdf.Option) ServiceOption {
	return func(s *signingService) {
		s.pdfOptions = append(s.pdfOptions, opts...)
	}
}

type signingService struct {
	sessions   *session.Store
	notifier   notifications.Notifier
	cache      *PreviewCache
	archiver   Archiver
	pdfOptions []pdf.Option
	config     Config
	logger     *zap.Logger
}

func NewService(sessions *session.Store, notifier notifications.Notifier, cache *PreviewCache, config Config, logger *zap.Logger, opts ...ServiceOption) Service {
	defaults := DefaultConfig()
	if config.RenderScale <= 0 {
		config.RenderScale = defaults.RenderScale
	}
	if config.PreviewScale <= 0 {
		config.PreviewScale = defaults.PreviewScale
	}
	if config.BoundsPolicy == "" {
		config.BoundsPolicy = defaults.BoundsPolicy
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}

	s := &signingService{
		sessions: sessions,
		notifier: notifier,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *signingService) Upload(ctx context.Context, req UploadRequest) (session.DocumentInfo, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return session.DocumentInfo{}, err
	}

	if err := sess.TryBegin(); err != nil {
		return session.DocumentInfo{}, err
	}
	defer sess.End()

	// Whatever happens next, the previous document is gone.
	sess.ResetDocument()
	s.cache.DeleteByPrefix(cachePrefix(sess.ID))

	if !isPDF(req.ContentType) {
		s.notifier.Error(sess.ID, msgInvalidType)
		return session.DocumentInfo{}, fmt.Errorf("%w: got %q", ErrInvalidFileType, req.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(req.Content, s.config.MaxUploadBytes+1))
	if err != nil {
		s.notifier.Error(sess.ID, msgLoadFailed)
		return session.DocumentInfo{}, fmt.Errorf("%w: read upload: %v", pdf.ErrLoad, err)
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		s.notifier.Error(sess.ID, msgLoadFailed)
		return session.DocumentInfo{}, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, s.config.MaxUploadBytes)
	}
	if err := ctx.Err(); err != nil {
		return session.DocumentInfo{}, err
	}

	doc, err := pdf.Load(data, s.pdfOptions...)
	if err != nil {
		s.logger.Warn("pdf load failed",
			zap.String("session_id", sess.ID),
			zap.String("file_name", req.FileName),
			zap.Error(err))
		s.notifier.Error(sess.ID, msgLoadFailed)
		return session.DocumentInfo{}, err
	}

	sess.SetDocument(req.FileName, doc)
	s.logger.Info("pdf loaded",
		zap.String("session_id", sess.ID),
		zap.String("file_name", req.FileName),
		zap.Int("pages", doc.PageCount()))
	s.notifier.Info(sess.ID, msgLoaded)

	return sess.DocumentInfo()
}

func (s *signingService) Preview(ctx context.Context, sessionID string, pageIndex int, scale float64) ([]byte, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	doc, err := sess.Document()
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = s.config.PreviewScale
	}

	// The document pointer is part of the key so a preview rendered while a
	// new upload lands is never served for the new document.
	key := fmt.Sprintf("%s%p/%d@%g", cachePrefix(sessionID), doc, pageIndex, scale)
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}

	img, err := doc.RasterizePage(pageIndex, scale)
	if err != nil {
		if errors.Is(err, pdf.ErrPageRender) {
			s.logger.Warn("page render failed",
				zap.String("session_id", sessionID),
				zap.Int("page", pageIndex+1),
				zap.Error(err))
			s.notifier.Error(sessionID, fmt.Sprintf(msgPageRender, pageIndex+1))
		}
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", pdf.ErrPageRender, pageIndex+1, err)
	}
	s.cache.Set(key, buf.Bytes())
	return buf.Bytes(), nil
}

// Sign burns every placement into a copy of the loaded document. A
// placement that cannot be mapped or rasterized is skipped and reported; a
// placement that points at a missing page fails the whole save.
func (s *signingService) Sign(ctx context.Context, sessionID string) (*SignResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.TryBegin(); err != nil {
		return nil, err
	}
	defer sess.End()

	snap, err := sess.Snapshot()
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoDocument):
			s.notifier.Error(sessionID, msgUploadFirst)
		case errors.Is(err, session.ErrNoSignature):
			s.notifier.Error(sessionID, msgSaveFirst)
		}
		return nil, err
	}

	result, err := s.render(ctx, snap)
	if err != nil {
		s.notifier.Error(sessionID, msgSaveFailed)
		return nil, err
	}

	if s.archiver != nil {
		key, url, err := s.archiver.Archive(ctx, sessionID, result.Data)
		if err != nil {
			s.logger.Error("archive failed", zap.String("session_id", sessionID), zap.Error(err))
			s.notifier.Error(sessionID, msgArchiveFailed)
		}
		result.ArchiveKey = key
		result.ArchiveURL = url
	}

	s.logger.Info("document signed",
		zap.String("session_id", sessionID),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("bytes", len(result.Data)))
	s.notifier.Info(sessionID, msgDownloaded)
	return result, nil
}

// render stamps the snapshot's placements in order and serializes the
// result. The snapshot's document is modified.
func (s *signingService) render(ctx context.Context, snap session.Snapshot) (*SignResult, error) {
	sessionID := snap.SessionID
	result := &SignResult{FileName: SignedFileName}
	doc := snap.Source

	for _, p := range snap.Placements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := s.stamp(doc, *snap.Signature, p)
		if err == nil {
			result.Applied++
			continue
		}
		if errors.Is(err, pdf.ErrIndex) {
			return nil, fmt.Errorf("%w: placement %s: %w", pdf.ErrSave, p.ID, err)
		}

		s.logger.Warn("placement skipped",
			zap.String("session_id", sessionID),
			zap.String("placement_id", p.ID),
			zap.Int("page", p.PageIndex+1),
			zap.Error(err))
		s.notifier.Error(sessionID, fmt.Sprintf(msgPlacementFailed, p.PageIndex+1, err))
		result.Skipped = append(result.Skipped, SkippedPlacement{
			PlacementID: p.ID,
			PageIndex:   p.PageIndex,
			Reason:      err.Error(),
		})
	}

	data, err := doc.Serialize()
	if err != nil {
		s.logger.Error("pdf save failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	result.Data = data
	return result, nil
}

// stamp maps one placement onto its page and draws the signature there.
func (s *signingService) stamp(doc *pdf.Document, sig signature.Asset, p session.Placement) error {
	geom, err := doc.PageGeometry(p.PageIndex)
	if err != nil {
		return err
	}
	page := placement.PageGeometry{WidthPt: geom.WidthPt, HeightPt: geom.HeightPt}

	rect, err := placement.ComputePlacement(p.Current(), p.Container, page)
	if err != nil {
		return err
	}
	rect, err = placement.ApplyBounds(rect, page, s.config.BoundsPolicy)
	if err != nil {
		return err
	}

	img, err := placement.RasterizeForEmbedding(sig, rect, s.config.RenderScale)
	if err != nil {
		return err
	}
	ref, err := doc.EmbedImage(img)
	if err != nil {
		return err
	}
	return doc.DrawImage(p.PageIndex, ref, pdf.Rect{
		X:      rect.XPt,
		Y:      rect.YPt,
		Width:  rect.WidthPt,
		Height: rect.HeightPt,
	})
}

func (s *signingService) Forget(sessionID string) {
	s.cache.DeleteByPrefix(cachePrefix(sessionID))
}

func cachePrefix(sessionID string) string {
	return sessionID + "/"
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == ContentTypePDF
}
