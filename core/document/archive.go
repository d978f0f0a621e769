// Package document handles ZIP-packaged office containers (OOXML, ODF,
// EPUB) and PDF: metadata extraction, structural statistics, and the
// archive rewrite engine behind sanitize/edit.
package document

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

// Transform rewrites one archive entry. It returns the replacement bytes
// and whether they differ from the input; entries it does not recognize
// pass through unchanged.
type Transform func(name string, data []byte) ([]byte, bool, error)

// RewriteArchive copies every entry of the source ZIP to destPath in
// original order, passing file entries through transform. Compression
// method, Unix permission bits and modification timestamps are preserved;
// directory entries are re-emitted as directories. Returns whether any
// entry changed.
func RewriteArchive(srcPath, destPath string, transform Transform) (bool, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return false, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return false, err
	}
	defer out.Close()

	w := zip.NewWriter(out)
	w.RegisterCompressor(zip.Deflate, func(dst io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(dst, flate.DefaultCompression)
	})

	changedAny := false
	for _, f := range r.File {
		hdr := zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
			Comment:  f.Comment,
		}
		hdr.SetMode(f.Mode())

		if f.FileInfo().IsDir() {
			if _, err := w.CreateHeader(&hdr); err != nil {
				w.Close()
				return changedAny, err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			w.Close()
			return changedAny, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			w.Close()
			return changedAny, err
		}

		replaced, changed, err := transform(f.Name, content)
		if err != nil {
			w.Close()
			return changedAny, fmt.Errorf("transform %s: %w", f.Name, err)
		}
		if changed {
			changedAny = true
			content = replaced
		}

		fw, err := w.CreateHeader(&hdr)
		if err != nil {
			w.Close()
			return changedAny, err
		}
		if _, err := fw.Write(content); err != nil {
			w.Close()
			return changedAny, err
		}
	}

	if err := w.Close(); err != nil {
		return changedAny, err
	}
	return changedAny, out.Sync()
}

// ReadArchiveParts returns the named entries of a ZIP archive. Missing
// parts simply have no key in the result.
func ReadArchiveParts(path string, names ...string) (map[string][]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	parts := map[string][]byte{}
	for _, f := range r.File {
		if !wanted[f.Name] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		parts[f.Name] = content
	}
	return parts, nil
}

// ListArchiveEntries returns every entry name in archive order.
func ListArchiveEntries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
