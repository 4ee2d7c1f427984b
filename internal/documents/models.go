package documents

import (
	"errors"
	"io"
	"time"

	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/signature"
)

// SignedFileName is the name every signed download is served under.
const SignedFileName = "signed_document.pdf"

// ContentTypePDF is the only upload type accepted.
const ContentTypePDF = "application/pdf"

var (
	ErrInvalidFileType = errors.New("please upload a valid PDF file")
	ErrUploadTooLarge  = errors.New("upload exceeds the size limit")
)

// Toast texts shown to the user.
const (
	msgLoaded          = "PDF loaded successfully"
	msgLoadFailed      = "Error processing PDF. Please try a different file."
	msgInvalidType     = "Please upload a valid PDF file."
	msgPageRender      = "Error rendering page %d"
	msgSignatureSaved  = "Signature saved"
	msgSignatureClear  = "Signature cleared"
	msgDrawFirst       = "Please draw a signature first"
	msgSaveFirst       = "Please save a signature first"
	msgUploadFirst     = "Please upload a PDF first"
	msgPlacementAdded  = "Signature added - Drag to position"
	msgPlacementFailed = "Signature on page %d was not applied: %v"
	msgDownloaded      = "PDF downloaded successfully"
	msgSaveFailed      = "Error saving PDF. Please try again."
	msgArchiveFailed   = "Signed PDF could not be archived"
)

// UploadRequest carries one uploaded file.
type UploadRequest struct {
	SessionID   string
	FileName    string
	ContentType string
	Content     io.Reader
}

// SkippedPlacement records a placement left out of the signed document.
type SkippedPlacement struct {
	PlacementID string `json:"placement_id"`
	PageIndex   int    `json:"page_index"`
	Reason      string `json:"reason"`
}

// SignResult is a finished signed document.
type SignResult struct {
	FileName   string             `json:"file_name"`
	Data       []byte             `json:"-"`
	Applied    int                `json:"applied"`
	Skipped    []SkippedPlacement `json:"skipped,omitempty"`
	ArchiveKey string             `json:"archive_key,omitempty"`
	ArchiveURL string             `json:"archive_url,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	PadWidth  float64   `json:"pad_width"`
	PadHeight float64   `json:"pad_height"`
}

type StrokeRequest struct {
	Points []signature.Point `json:"points" binding:"required,min=1"`
}

type SizeRequest struct {
	Size float64 `json:"size" binding:"required,gt=0"`
}

type AddPlacementRequest struct {
	PageIndex int                     `json:"page_index" binding:"min=0"`
	LeftPx    float64                 `json:"left_px"`
	TopPx     float64                 `json:"top_px"`
	Container placement.ContainerRect `json:"container"`
}

type LayoutRequest struct {
	Container placement.ContainerRect `json:"container"`
}

// LayoutResponse shows where a placement would land on its page with the
// given layout.
type LayoutResponse struct {
	PlacementID string                  `json:"placement_id"`
	Overlay     placement.OverlayRect   `json:"overlay"`
	Placement   placement.PlacementRect `json:"placement"`
}
