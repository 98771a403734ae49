// Package publish uploads a captioned image to a social feed and fans the
// resulting publication out to recorders.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"path"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// Publisher posts one image with its caption and returns the post id
type Publisher interface {
	Name() string
	Post(ctx context.Context, img *model.Image, caption string) (string, error)
}

// Recorder receives every successful publication (ledgers, event streams, archives)
type Recorder interface {
	Name() string
	Record(ctx context.Context, pub *model.Publication) error
}

// ImageFetcher downloads the image to upload
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Image, error)
}

// PublishFailedError wraps the cause of a failed publish
type PublishFailedError struct {
	Publisher string
	ItemID    string
	Err       error
}

func (e *PublishFailedError) Error() string {
	return fmt.Sprintf("publish %s via %s: %v", e.ItemID, e.Publisher, e.Err)
}

func (e *PublishFailedError) Unwrap() error {
	return e.Err
}

// writeImagePart adds img as a form file with its real content type
func writeImagePart(w *multipart.Writer, field string, img *model.Image) error {
	name := path.Base(img.URL)
	if name == "" || name == "." || name == "/" {
		name = "image"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", img.MIMEType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, bytes.NewReader(img.Data)); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}
