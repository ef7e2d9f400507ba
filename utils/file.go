package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveUploadWithTimestamp writes an uploaded stream into the upload
// directory under a timestamped name so repeated uploads of the same file
// never collide. Returns the destination path.
func SaveUploadWithTimestamp(source io.Reader, originalName, uploadDir string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %v", err)
	}

	ext := filepath.Ext(originalName)
	baseFileName := strings.TrimSuffix(filepath.Base(originalName), ext)
	timestamp := time.Now().UnixNano()
	destPath := filepath.Join(uploadDir, fmt.Sprintf("%s_%d%s", baseFileName, timestamp, ext))

	destFile, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %v", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, source); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to write file: %v", err)
	}

	return destPath, nil
}

// GetFileNameWithoutExt extracts the base filename without its extension.
func GetFileNameWithoutExt(path string) string {
	base := filepath.Base(path)
	if idx := strings.LastIndex(base, "."); idx != -1 {
		base = base[:idx]
	}
	return base
}
