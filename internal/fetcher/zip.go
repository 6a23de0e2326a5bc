package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every entry of the archive into destDir and returns the
// extracted file paths. Entry names are confined to destDir; an entry that
// escapes it fails the extraction.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	rd, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer rd.Close() //nolint:errcheck

	var paths []string
	for _, entry := range rd.File {
		p, err := unpackEntry(entry, destDir)
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// unpackEntry writes one archive entry under destDir. Directories return an
// empty path.
func unpackEntry(entry *zip.File, destDir string) (string, error) {
	dest := filepath.Join(destDir, entry.Name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: entry %q escapes destination", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return "", eris.Wrap(os.MkdirAll(dest, 0o755), "zip: create directory")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create directory")
	}

	src, err := entry.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, src); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return dest, nil
}
