package documents

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/session"
	"signing-portal/signing-portal-backend/internal/signature"
	"signing-portal/signing-portal-backend/pkg/pdf"
	"signing-portal/signing-portal-backend/pkg/pdf/pdftest"
)

// MockNotifier is a mock implementation of notifications.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Info(sessionID, message string) {
	m.Called(sessionID, message)
}

func (m *MockNotifier) Error(sessionID, message string) {
	m.Called(sessionID, message)
}

// MockS3Client is a mock implementation of storage.S3Client
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	args := m.Called(ctx, bucket, key, body)
	return args.Error(0)
}

func (m *MockS3Client) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

type stubRasterizer struct {
	err error
}

func (s stubRasterizer) RasterizePage(data []byte, index int, scale float64) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, int(612*scale), int(792*scale))), nil
}

type fixture struct {
	store    *session.Store
	notifier *MockNotifier
	cache    *PreviewCache
	service  *signingService
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	store := session.NewStore(session.DefaultStoreConfig(), zap.NewNop())
	notifier := new(MockNotifier)
	cache := NewPreviewCache(time.Minute)
	t.Cleanup(cache.Close)

	opts = append([]ServiceOption{WithPDFOptions(pdf.WithRasterizer(stubRasterizer{}))}, opts...)
	svc := NewService(store, notifier, cache, DefaultConfig(), zap.NewNop(), opts...)
	return &fixture{store: store, notifier: notifier, cache: cache, service: svc.(*signingService)}
}

func (f *fixture) upload(t *testing.T, sessionID string, pages int) {
	t.Helper()
	f.notifier.On("Info", sessionID, msgLoaded).Once()
	_, err := f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sessionID,
		FileName:    "contract.pdf",
		ContentType: ContentTypePDF,
		Content:     bytes.NewReader(pdftest.Letter(t, pages)),
	})
	require.NoError(t, err)
}

func saveSignature(t *testing.T, sess *session.Session) {
	t.Helper()
	sess.Pad().AddStroke(signature.Stroke{{X: 20, Y: 150}, {X: 120, Y: 40}, {X: 380, Y: 160}})
	_, err := sess.SaveSignature()
	require.NoError(t, err)
}

func TestUploadLoadsDocument(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)

	f.notifier.On("Info", sess.ID, msgLoaded).Once()
	info, err := f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sess.ID,
		FileName:    "contract.pdf",
		ContentType: "application/pdf; charset=binary",
		Content:     bytes.NewReader(pdftest.Letter(t, 3)),
	})

	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", info.FileName)
	assert.Equal(t, 3, info.PageCount)
	assert.InDelta(t, 612, info.Pages[0].WidthPt, 0.01)
	assert.InDelta(t, 792, info.Pages[0].HeightPt, 0.01)
	f.notifier.AssertExpectations(t)
}

func TestUploadRejectsNonPDFAndResets(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)

	f.notifier.On("Error", sess.ID, msgInvalidType).Once()
	_, err = f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sess.ID,
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Content:     strings.NewReader("hello"),
	})

	assert.ErrorIs(t, err, ErrInvalidFileType)
	_, err = sess.Document()
	assert.ErrorIs(t, err, session.ErrNoDocument)
	f.notifier.AssertExpectations(t)
}

func TestUploadCorruptPDFResetsSession(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)

	f.notifier.On("Error", sess.ID, msgLoadFailed).Once()
	_, err = f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sess.ID,
		FileName:    "broken.pdf",
		ContentType: ContentTypePDF,
		Content:     strings.NewReader("%PDF-1.7 this is not a document"),
	})

	assert.ErrorIs(t, err, pdf.ErrLoad)
	assert.False(t, sess.Busy())
	_, err = sess.DocumentInfo()
	assert.ErrorIs(t, err, session.ErrNoDocument)
	f.notifier.AssertExpectations(t)
}

func TestUploadRespectsBusyGate(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	require.NoError(t, sess.TryBegin())

	_, err = f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sess.ID,
		ContentType: ContentTypePDF,
		Content:     bytes.NewReader(pdftest.Letter(t, 1)),
	})
	assert.ErrorIs(t, err, session.ErrBusy)
	assert.True(t, sess.Busy())
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t)
	f.service.config.MaxUploadBytes = 16
	sess, err := f.store.Create()
	require.NoError(t, err)

	f.notifier.On("Error", sess.ID, msgLoadFailed).Once()
	_, err = f.service.Upload(context.Background(), UploadRequest{
		SessionID:   sess.ID,
		ContentType: ContentTypePDF,
		Content:     bytes.NewReader(pdftest.Letter(t, 1)),
	})
	assert.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestPreviewCachesPerDocument(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 2)

	first, err := f.service.Preview(context.Background(), sess.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), first[:4])
	assert.Equal(t, 1, f.cache.Size())

	again, err := f.service.Preview(context.Background(), sess.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, f.cache.Size())

	_, err = f.service.Preview(context.Background(), sess.ID, 5, 1)
	assert.ErrorIs(t, err, pdf.ErrIndex)

	f.service.Forget(sess.ID)
	assert.Equal(t, 0, f.cache.Size())
}

func TestPreviewRenderFailureIsReported(t *testing.T) {
	f := newFixture(t, WithPDFOptions(pdf.WithRasterizer(stubRasterizer{err: errors.New("bad xref")})))
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 2)

	f.notifier.On("Error", sess.ID, "Error rendering page 2").Once()
	_, err = f.service.Preview(context.Background(), sess.ID, 1, 1)

	assert.ErrorIs(t, err, pdf.ErrPageRender)
	f.notifier.AssertExpectations(t)
}

func TestSignStampsPlacementsOnCopy(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 2)
	saveSignature(t, sess)

	container := placement.ContainerRect{WidthPx: 400, HeightPx: 600}
	_, err = sess.AddPlacement(0, 0, 0, container)
	require.NoError(t, err)
	_, err = sess.AddPlacement(1, 100, 300, container)
	require.NoError(t, err)

	original, err := sess.Document()
	require.NoError(t, err)
	before, err := original.Serialize()
	require.NoError(t, err)

	f.notifier.On("Info", sess.ID, msgDownloaded).Once()
	result, err := f.service.Sign(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, SignedFileName, result.FileName)
	assert.Equal(t, 2, result.Applied)
	assert.Empty(t, result.Skipped)
	assert.NotEqual(t, before, result.Data)

	signed, err := pdf.Load(result.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, signed.PageCount())

	after, err := original.Serialize()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, sess.Busy())
	f.notifier.AssertExpectations(t)
}

func TestSignSkipsDegeneratePlacement(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)
	saveSignature(t, sess)

	_, err = sess.AddPlacement(0, 10, 10, placement.ContainerRect{WidthPx: 400, HeightPx: 600})
	require.NoError(t, err)
	collapsed, err := sess.AddPlacement(0, 10, 10, placement.ContainerRect{})
	require.NoError(t, err)

	f.notifier.On("Error", sess.ID, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "Signature on page 1 was not applied")
	})).Once()
	f.notifier.On("Info", sess.ID, msgDownloaded).Once()

	result, err := f.service.Sign(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, collapsed.ID, result.Skipped[0].PlacementID)
	assert.Contains(t, result.Skipped[0].Reason, "degenerate layout")
	f.notifier.AssertExpectations(t)
}

func TestSignRejectPolicySkipsOffPagePlacement(t *testing.T) {
	f := newFixture(t)
	f.service.config.BoundsPolicy = placement.BoundsReject
	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)
	saveSignature(t, sess)

	_, err = sess.AddPlacement(0, 350, 590, placement.ContainerRect{WidthPx: 400, HeightPx: 600})
	require.NoError(t, err)

	f.notifier.On("Error", sess.ID, mock.Anything).Once()
	f.notifier.On("Info", sess.ID, msgDownloaded).Once()

	result, err := f.service.Sign(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, placement.ErrOutOfBounds.Error())
}

func TestSignRequiresDocumentAndSignature(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)

	f.notifier.On("Error", sess.ID, msgUploadFirst).Once()
	_, err = f.service.Sign(context.Background(), sess.ID)
	assert.ErrorIs(t, err, session.ErrNoDocument)

	f.upload(t, sess.ID, 1)
	f.notifier.On("Error", sess.ID, msgSaveFirst).Once()
	_, err = f.service.Sign(context.Background(), sess.ID)
	assert.ErrorIs(t, err, session.ErrNoSignature)

	f.notifier.AssertExpectations(t)
}

func TestSignBusySession(t *testing.T) {
	f := newFixture(t)
	sess, err := f.store.Create()
	require.NoError(t, err)
	require.NoError(t, sess.TryBegin())

	_, err = f.service.Sign(context.Background(), sess.ID)
	assert.ErrorIs(t, err, session.ErrBusy)
}

func TestRenderInvalidPageFailsSave(t *testing.T) {
	f := newFixture(t)
	doc, err := pdf.Load(pdftest.Letter(t, 2))
	require.NoError(t, err)
	before, err := doc.Serialize()
	require.NoError(t, err)

	sess, err := f.store.Create()
	require.NoError(t, err)
	saveSignature(t, sess)
	sig, err := sess.Signature()
	require.NoError(t, err)

	container := placement.ContainerRect{WidthPx: 400, HeightPx: 600}
	snap := session.Snapshot{
		SessionID: sess.ID,
		Source:    doc.Clone(),
		Signature: &sig,
		Placements: []session.Placement{
			{ID: "ok", PageIndex: 0, Overlay: placement.OverlayRect{WidthPx: 150, HeightPx: 75}, Container: container, Drag: placement.NewDrag()},
			{ID: "gone", PageIndex: 7, Overlay: placement.OverlayRect{WidthPx: 150, HeightPx: 75}, Container: container, Drag: placement.NewDrag()},
		},
	}

	_, err = f.service.render(context.Background(), snap)

	assert.ErrorIs(t, err, pdf.ErrSave)
	assert.ErrorIs(t, err, pdf.ErrIndex)
	after, err := doc.Serialize()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSignArchivesResult(t *testing.T) {
	client := new(MockS3Client)
	archiver := NewS3Archiver(client, "signed-docs", "signed", 15*time.Minute)
	f := newFixture(t, WithArchiver(archiver))

	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)
	saveSignature(t, sess)
	_, err = sess.AddPlacement(0, 0, 0, placement.ContainerRect{WidthPx: 400, HeightPx: 600})
	require.NoError(t, err)

	keyFor := mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "signed/"+sess.ID+"/") && strings.HasSuffix(key, SignedFileName)
	})
	client.On("Upload", mock.Anything, "signed-docs", keyFor, mock.Anything).Return(nil).Once()
	client.On("GetPresignedURL", mock.Anything, "signed-docs", keyFor, 15*time.Minute).
		Return("https://signed-docs.example/link", nil).Once()
	f.notifier.On("Info", sess.ID, msgDownloaded).Once()

	result, err := f.service.Sign(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Contains(t, result.ArchiveKey, sess.ID)
	assert.Equal(t, "https://signed-docs.example/link", result.ArchiveURL)
	client.AssertExpectations(t)
}

func TestSignArchiveFailureStillReturnsDocument(t *testing.T) {
	client := new(MockS3Client)
	f := newFixture(t, WithArchiver(NewS3Archiver(client, "signed-docs", "", 0)))

	sess, err := f.store.Create()
	require.NoError(t, err)
	f.upload(t, sess.ID, 1)
	saveSignature(t, sess)

	client.On("Upload", mock.Anything, "signed-docs", mock.Anything, mock.Anything).
		Return(errors.New("access denied")).Once()
	f.notifier.On("Error", sess.ID, msgArchiveFailed).Once()
	f.notifier.On("Info", sess.ID, msgDownloaded).Once()

	result, err := f.service.Sign(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.NotEmpty(t, result.Data)
	assert.Empty(t, result.ArchiveKey)
	client.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}
