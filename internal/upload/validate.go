package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/h2non/filetype"
)

const (
	DefaultMaxVideoBytes int64 = 500 << 20
	DefaultMaxImageBytes int64 = 50 << 20

	sniffLen = 262
)

// Limits caps the size of each media class.
type Limits struct {
	MaxVideoBytes int64
	MaxImageBytes int64
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{MaxVideoBytes: DefaultMaxVideoBytes, MaxImageBytes: DefaultMaxImageBytes}
}

func (l Limits) ceiling(class postfan.MimeClass) int64 {
	switch class {
	case postfan.MimeVideo:
		return l.MaxVideoBytes
	case postfan.MimeImage:
		return l.MaxImageBytes
	default:
		return 0
	}
}

// Validate checks every asset against its declared mime class and the size
// ceiling. It stops at the first violation and touches no network.
func Validate(assets []postfan.MediaAsset, limits Limits) ([]postfan.MediaAsset, error) {
	out := make([]postfan.MediaAsset, len(assets))
	for i, asset := range assets {
		checked, err := validateOne(asset, limits)
		if err != nil {
			return nil, err
		}
		out[i] = checked
	}
	return out, nil
}

func validateOne(asset postfan.MediaAsset, limits Limits) (postfan.MediaAsset, error) {
	if asset.Uploaded() {
		asset.Validated = true
		return asset, nil
	}
	field := filepath.Base(asset.LocalHandle)

	info, err := os.Stat(asset.LocalHandle)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return asset, postfan.ValidationError{Field: field, Reason: "file not found"}
		}
		return asset, fmt.Errorf("stat %s: %w", asset.LocalHandle, err)
	}
	if info.IsDir() {
		return asset, postfan.ValidationError{Field: field, Reason: "is a directory"}
	}

	detected, err := DetectMIME(asset.LocalHandle)
	if err != nil {
		return asset, err
	}
	if asset.MimeClass == "" {
		asset.MimeClass = classOf(detected)
	}
	if !strings.HasPrefix(detected, string(asset.MimeClass)+"/") {
		return asset, postfan.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("expected %s file, got %s", asset.MimeClass, detected),
		}
	}

	ceiling := limits.ceiling(asset.MimeClass)
	if ceiling <= 0 {
		return asset, postfan.ValidationError{Field: field, Reason: fmt.Sprintf("unsupported media class %q", asset.MimeClass)}
	}
	if info.Size() > ceiling {
		return asset, postfan.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%d bytes exceeds the %d byte %s limit", info.Size(), ceiling, asset.MimeClass),
		}
	}
	if info.Size() == 0 {
		return asset, postfan.ValidationError{Field: field, Reason: "file is empty"}
	}

	asset.SizeBytes = info.Size()
	asset.Validated = true
	return asset, nil
}

// DetectMIME sniffs the file header, falling back to the extension.
func DetectMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	kind, err := filetype.Match(head[:n])
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}

	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType, nil
		}
	}
	return "", postfan.ValidationError{Field: filepath.Base(path), Reason: "unrecognized file type"}
}

func classOf(mimeType string) postfan.MimeClass {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return postfan.MimeVideo
	case strings.HasPrefix(mimeType, "image/"):
		return postfan.MimeImage
	default:
		return ""
	}
}
