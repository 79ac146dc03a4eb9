package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileOperations defines methods for reading from and writing to files.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadFileRaw(filePath string) ([]byte, error)
	ReadYamlFile(filePath string, v any) error
	WriteJsonFile(filePath string, data any) error
	WriteStreamAtomic(filePath string, r io.Reader) (int64, error)
	ListRegularFiles(dir string) ([]os.FileInfo, error)
	RemoveFile(filePath string) error
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// ReadFileRaw reads the contents of the file at filePath and returns it as a byte array.
func (fs *FileService) ReadFileRaw(filePath string) ([]byte, error) {
	return os.ReadFile(filePath)
}

// ReadYamlFile reads and unmarshals YAML data from the given file.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	return decoder.Decode(v)
}

// WriteJsonFile writes the JSON data to the file at filePath.
func (fs *FileService) WriteJsonFile(filePath string, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fs.WriteStreamAtomic(filePath, bytes.NewReader(b))
	return err
}

// WriteStreamAtomic copies r into a temporary file next to filePath and renames it over filePath
// once everything has been written. On any error the temporary file is removed and filePath is
// left untouched.
func (fs *FileService) WriteStreamAtomic(filePath string, r io.Reader) (int64, error) {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err != nil {
		os.Remove(tmpName) // Clean up partial file
		return n, fmt.Errorf("failed to write %s: %w", filePath, err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to move %s into place: %w", filePath, err)
	}
	return n, nil
}

// ListRegularFiles returns the regular files directly inside dir. Sub-directories, symlinks and
// other special files are skipped.
func (fs *FileService) ListRegularFiles(dir string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		files = append(files, info)
	}
	return files, nil
}

// RemoveFile deletes the file at filePath.
func (fs *FileService) RemoveFile(filePath string) error {
	return os.Remove(filePath)
}
