package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/document"
	"github.com/jvillegas/metasweep/core/image"
	"github.com/jvillegas/metasweep/core/media"
	"github.com/jvillegas/metasweep/internal/utils"
)

// Options control where a mutating operation writes its result.
type Options struct {
	// Sibling writes to a suffixed sibling file instead of replacing the
	// original in place: _sin_metadata for sanitize, _modificado for edit.
	Sibling bool
}

// siblingPath inserts a suffix before the extension.
func siblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Sanitize removes the identifying metadata a format supports removing,
// under the verify-and-commit protocol. A file whose container carries no
// metadata is a no-op success.
func Sanitize(path string, opts Options) error {
	format, err := core.DetectFormat(path)
	if err != nil {
		return err
	}
	utils.Log.WithField("path", path).WithField("format", format).Debug("Sanitizing file")

	switch format {
	case core.FmtJPEG, core.FmtPNG, core.FmtGIF, core.FmtWebP:
		return sanitizeBytes(path, opts, func(data []byte) ([]byte, bool, error) {
			return stripImage(data, format)
		})
	case core.FmtWAV:
		return sanitizeBytes(path, opts, media.StripWAV)
	case core.FmtMP4, core.FmtMOV:
		return sanitizeBytes(path, opts, media.StripMP4)
	case core.FmtMP3:
		return sanitizeMP3(path, opts)
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		return sanitizeArchive(path, opts, format, document.OOXMLSanitizeTransform())
	case core.FmtODF:
		return sanitizeArchive(path, opts, format, document.ODFSanitizeTransform())
	case core.FmtPDF:
		return core.ErrUnsupportedSanitize
	}
	return core.ErrUnsupportedSanitize
}

func stripImage(data []byte, format core.FormatID) ([]byte, bool, error) {
	switch format {
	case core.FmtJPEG:
		return image.StripJPEG(data)
	case core.FmtPNG:
		return image.StripPNG(data)
	case core.FmtGIF:
		return image.StripGIF(data)
	case core.FmtWebP:
		return image.StripWebP(data)
	}
	return nil, false, core.ErrUnsupportedSanitize
}

// sanitizeBytes runs a byte-level strip and commits the result. A
// not-a-container error means there is nothing to strip, which counts as
// success; so does an unchanged stream.
func sanitizeBytes(path string, opts Options, strip func([]byte) ([]byte, bool, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, changed, err := strip(data)
	if errors.Is(err, core.ErrNotAContainer) {
		return nil
	}
	if err != nil {
		return err
	}
	if !changed && !opts.Sibling {
		return nil
	}
	if !changed {
		out = data
	}

	write := func(dest string) error {
		return os.WriteFile(dest, out, 0644)
	}
	verify := func(dest string) error {
		rewritten, err := os.ReadFile(dest)
		if err != nil {
			return err
		}
		_, stillChanged, err := strip(rewritten)
		if errors.Is(err, core.ErrNotAContainer) {
			return nil
		}
		if err != nil {
			return err
		}
		if stillChanged {
			return fmt.Errorf("%w: metadata still present after strip", core.ErrVerifyFailed)
		}
		return nil
	}

	if opts.Sibling {
		return writeVerified(siblingPath(path, "_sin_metadata"), write, verify)
	}
	return commitRewrite(path, write, verify)
}

// sanitizeMP3 copies the file aside, strips ID3 tags on the copy, and
// commits the verified result.
func sanitizeMP3(path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !media.HasMP3Tags(data) && !opts.Sibling {
		return nil
	}

	write := func(dest string) error {
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return err
		}
		_, err := media.StripMP3(dest)
		return err
	}
	verify := func(dest string) error {
		rewritten, err := os.ReadFile(dest)
		if err != nil {
			return err
		}
		if media.HasMP3Tags(rewritten) {
			return fmt.Errorf("%w: ID3 tags still present", core.ErrVerifyFailed)
		}
		return nil
	}

	if opts.Sibling {
		return writeVerified(siblingPath(path, "_sin_metadata"), write, verify)
	}
	return commitRewrite(path, write, verify)
}

// sanitizeArchive rewrites a ZIP-packaged container through the sanitize
// transform and verifies every targeted field on the temp artifact.
func sanitizeArchive(path string, opts Options, format core.FormatID, transform document.Transform) error {
	write := func(dest string) error {
		_, err := document.RewriteArchive(path, dest, transform)
		return err
	}
	verify := func(dest string) error {
		return document.VerifySanitized(dest, format)
	}

	if opts.Sibling {
		return writeVerified(siblingPath(path, "_sin_metadata"), write, verify)
	}
	return commitRewrite(path, write, verify)
}

// EditField sets one logical metadata field of an office document under
// the verify-and-commit protocol.
func EditField(path, fieldKey, value string, opts Options) error {
	format, err := core.DetectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX, core.FmtODF:
	default:
		return core.ErrUnsupportedFormat
	}

	transform, err := document.EditTransform(format, fieldKey, value)
	if err != nil {
		return err
	}
	write := func(dest string) error {
		_, err := document.RewriteArchive(path, dest, transform)
		return err
	}
	verify := func(dest string) error {
		return document.VerifyEdited(dest, format, fieldKey, value)
	}

	if opts.Sibling {
		return writeVerified(siblingPath(path, "_modificado"), write, verify)
	}
	return commitRewrite(path, write, verify)
}
