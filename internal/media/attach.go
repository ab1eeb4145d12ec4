// Package media prepares problem attachments for the tutor: image
// capture, math OCR, and speech transcription/synthesis.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiont/socratex/internal/llm"
)

// maxAttachmentBytes caps attachment payloads before base64 inflation.
const maxAttachmentBytes = 8 << 20

// imageMediaTypes maps accepted extensions to their media type.
var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// CaptureAttachment reads an image file and converts it into a
// data-URL image part.
func CaptureAttachment(path string) (llm.Part, error) {
	mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return llm.Part{}, fmt.Errorf("media: unsupported image type %q (png, jpeg, webp)", filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return llm.Part{}, fmt.Errorf("media: stat attachment: %w", err)
	}
	if info.Size() > maxAttachmentBytes {
		return llm.Part{}, fmt.Errorf("media: attachment %s is %d bytes, limit is %d", filepath.Base(path), info.Size(), maxAttachmentBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Part{}, fmt.Errorf("media: read attachment: %w", err)
	}

	url := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return llm.ImagePart(url, mediaType), nil
}

// PrepareAttachments converts image files into parts concurrently,
// preserving input order. One bad file fails the whole batch so the
// user never sends a partial set unknowingly.
func PrepareAttachments(ctx context.Context, paths []string) ([]llm.Part, error) {
	parts := make([]llm.Part, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := CaptureAttachment(path)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}
