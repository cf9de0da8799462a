// Package archive bundles a finalized segment's artifacts into a single
// compressed zip and uploads it to S3 for long-term retention. Archival runs
// after classification and is best effort: an archive failure never affects
// the persisted activity event.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

func init() {
	// JPEG frames barely compress, so a mid-level encoder keeps CPU cost low
	// while still squeezing the manifest and audio track.
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	zip.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(r)
		}
		return zr.IOReadCloser()
	})
}

// BuildSegmentZip writes every file under segmentDir into a zip at destPath,
// with entry names relative to segmentDir.
func BuildSegmentZip(segmentDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(segmentDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(segmentDir, path)
		if err != nil {
			return err
		}

		hdr := &zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zipMethodZstd,
			Modified: info.ModTime(),
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", rel, err)
		}
		defer f.Close()

		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("write zip entry %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		os.Remove(destPath)
		return err
	}

	if err := zw.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("close zip: %w", err)
	}

	log.Debug().Str("dir", segmentDir).Str("zip", destPath).Msg("Segment zip built")
	return nil
}
