package documents

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signing-portal/signing-portal-backend/internal/notifications"
	"signing-portal/signing-portal-backend/internal/notifications/websocket"
	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/session"
	"signing-portal/signing-portal-backend/internal/signature"
	"signing-portal/signing-portal-backend/pkg/pdf"
	"signing-portal/signing-portal-backend/pkg/security"
)

// Feed is the toast side of notifications as the handler sees it.
type Feed interface {
	notifications.Notifier
	Recent(sessionID string) []notifications.Toast
}

// Subscriber upgrades a request to a toast stream for one session.
type Subscriber interface {
	HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string) (*websocket.Connection, error)
}

type Handler struct {
	service  Service
	sessions *session.Store
	tokens   security.TokenIssuer
	feed     Feed
	sockets  Subscriber
	logger   *zap.Logger
}

func NewHandler(service Service, sessions *session.Store, tokens security.TokenIssuer, feed Feed, sockets Subscriber, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		tokens:   tokens,
		feed:     feed,
		sockets:  sockets,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)

	sess := rg.Group("/sessions/:id", h.authorize)
	{
		sess.DELETE("", h.DeleteSession)

		sess.POST("/document", h.UploadDocument)
		sess.GET("/document", h.GetDocument)
		sess.GET("/pages/:page/preview", h.Preview)

		sess.POST("/signature/strokes", h.AddStroke)
		sess.POST("/signature", h.SaveSignature)
		sess.GET("/signature", h.GetSignature)
		sess.DELETE("/signature", h.ClearSignature)
		sess.PUT("/signature/size", h.SetSignatureSize)

		sess.POST("/placements", h.AddPlacement)
		sess.GET("/placements", h.ListPlacements)
		sess.POST("/placements/:pid/pointer", h.Pointer)
		sess.PUT("/placements/:pid/layout", h.Layout)
		sess.DELETE("/placements/:pid", h.RemovePlacement)

		sess.POST("/download", h.Download)
		sess.GET("/notifications", h.Notifications)
		sess.GET("/ws", h.Subscribe)
	}
}

func (h *Handler) CreateSession(c *gin.Context) {
	sess, err := h.sessions.Create()
	if err != nil {
		h.fail(c, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(sess.ID)
	if err != nil {
		_ = h.sessions.Delete(sess.ID)
		h.fail(c, err)
		return
	}

	w, ht := sess.Pad().Size()
	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		PadWidth:  w,
		PadHeight: ht,
	})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	info, err := h.service.Upload(c.Request.Context(), UploadRequest{
		SessionID:   c.Param("id"),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

func (h *Handler) GetDocument(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	info, err := sess.DocumentInfo()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) Preview(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	var scale float64
	if raw := c.Query("scale"); raw != "" {
		scale, err = strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 || scale > 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scale"})
			return
		}
	}

	data, err := h.service.Preview(c.Request.Context(), c.Param("id"), page, scale)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *Handler) AddStroke(c *gin.Context) {
	var req StrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Pad().AddStroke(signature.Stroke(req.Points))
	c.JSON(http.StatusOK, sess.SignatureInfo())
}

func (h *Handler) SaveSignature(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := sess.SaveSignature(); err != nil {
		if errors.Is(err, signature.ErrEmptySignature) {
			h.feed.Error(sess.ID, msgDrawFirst)
		}
		h.fail(c, err)
		return
	}
	h.feed.Info(sess.ID, msgSignatureSaved)
	c.JSON(http.StatusOK, sess.SignatureInfo())
}

func (h *Handler) GetSignature(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	asset, err := sess.Signature()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", asset.Markup)
}

func (h *Handler) ClearSignature(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.ClearSignature()
	h.feed.Info(sess.ID, msgSignatureClear)
	c.JSON(http.StatusOK, sess.SignatureInfo())
}

func (h *Handler) SetSignatureSize(c *gin.Context) {
	var req SizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.SetSignatureSize(req.Size); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signature":  sess.SignatureInfo(),
		"placements": sess.Placements(),
	})
}

func (h *Handler) AddPlacement(c *gin.Context) {
	var req AddPlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	p, err := sess.AddPlacement(req.PageIndex, req.LeftPx, req.TopPx, req.Container)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoDocument):
			h.feed.Error(sess.ID, msgUploadFirst)
		case errors.Is(err, session.ErrNoSignature):
			h.feed.Error(sess.ID, msgSaveFirst)
		}
		h.fail(c, err)
		return
	}

	h.feed.Info(sess.ID, msgPlacementAdded)
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPlacements(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Placements())
}

func (h *Handler) Pointer(c *gin.Context) {
	var ev placement.PointerEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	p, err := sess.Pointer(c.Param("pid"), ev)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"placement": p,
		"overlay":   p.Current(),
	})
}

// Layout records the page preview's box at commit time and returns where
// the placement lands on the page.
func (h *Handler) Layout(c *gin.Context) {
	var req LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Container.Validate(); err != nil {
		h.fail(c, err)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	doc, err := sess.Document()
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := sess.SetContainer(c.Param("pid"), req.Container)
	if err != nil {
		h.fail(c, err)
		return
	}
	geom, err := doc.PageGeometry(p.PageIndex)
	if err != nil {
		h.fail(c, err)
		return
	}
	rect, err := placement.ComputePlacement(p.Current(), p.Container, placement.PageGeometry{
		WidthPt:  geom.WidthPt,
		HeightPt: geom.HeightPt,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, LayoutResponse{
		PlacementID: p.ID,
		Overlay:     p.Current(),
		Placement:   rect,
	})
}

func (h *Handler) RemovePlacement(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.RemovePlacement(c.Param("pid")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Download(c *gin.Context) {
	result, err := h.service.Sign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("X-Placements-Applied", strconv.Itoa(result.Applied))
	c.Header("X-Placements-Skipped", strconv.Itoa(len(result.Skipped)))
	if result.ArchiveURL != "" {
		c.Header("X-Archive-URL", result.ArchiveURL)
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, ContentTypePDF, result.Data)
}

func (h *Handler) Notifications(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.feed.Recent(sess.ID))
}

func (h *Handler) Subscribe(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := h.sockets.HandleConnection(c.Writer, c.Request, sess.ID); err != nil {
		// The upgrader has already written the response.
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return sess, true
}

// fail writes err with the status its kind maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("session_id", c.Param("id")),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrPlacementNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pdf.ErrSave):
		return http.StatusInternalServerError
	case errors.Is(err, pdf.ErrLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pdf.ErrIndex):
		return http.StatusNotFound
	case errors.Is(err, placement.ErrDegenerateLayout),
		errors.Is(err, session.ErrInvalidSize),
		errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrNoSignature),
		errors.Is(err, signature.ErrEmptySignature):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
