// Package archive extracts .eln files (zipped RO-Crate exports) into a
// temporary directory for the duration of a run.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extracted is an unpacked .eln archive. Close removes the scratch
// directory; callers defer it so cleanup happens on every exit path.
type Extracted struct {
	// Root is the crate root directory inside TempDir.
	Root    string
	TempDir string
}

// Extract unpacks the archive at path into a fresh temporary directory
// and locates the crate root, the first top-level directory entry.
func Extract(path string) (*Extracted, error) {
	tempDir, err := os.MkdirTemp("", "eln-import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	zipReader, err := zip.OpenReader(path)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zipReader.Close()

	for _, file := range zipReader.File {
		destPath := filepath.Join(tempDir, file.Name)

		// Reject entries that would escape the extraction directory.
		if !strings.HasPrefix(destPath, tempDir+string(os.PathSeparator)) {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("archive entry escapes extraction directory: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			os.MkdirAll(destPath, file.Mode())
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		if err := extractZipFile(file, destPath); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to extract file %s: %w", file.Name, err)
		}
	}

	root, err := findCrateRoot(tempDir)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	return &Extracted{Root: root, TempDir: tempDir}, nil
}

// Close removes the temporary directory and everything under it.
func (e *Extracted) Close() error {
	return os.RemoveAll(e.TempDir)
}

// findCrateRoot returns the first top-level directory of the extraction.
func findCrateRoot(tempDir string) (string, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(tempDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no crate root found in archive")
}

// extractZipFile extracts a single file from a zip archive
func extractZipFile(file *zip.File, destPath string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, rc)
	return err
}
