package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const MediaURLPrefix = "/api/media/file/"

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// File is an upload received with a create call.
type File struct {
	Filename string
	MimeType string
	Content  io.Reader
}

type FileStore interface {
	// Save writes content under a name derived from filename and returns
	// the stored name and its size.
	Save(ctx context.Context, filename string, content io.Reader) (string, int64, error)
	Remove(ctx context.Context, name string) error
}

type DiskStore struct {
	dir     string
	maxSize int64
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, maxSize: constants.MaxUploadSize}, nil
}

func (d *DiskStore) Dir() string {
	return d.dir
}

// Save never overwrites: a taken name gets a numeric suffix.
func (d *DiskStore) Save(ctx context.Context, filename string, content io.Reader) (string, int64, error) {
	base := SafeFilename(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var (
		f    *os.File
		name string
		err  error
	)
	for i := 0; i < 1000; i++ {
		name = base
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		f, err = os.OpenFile(filepath.Join(d.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	if f == nil {
		return "", 0, fmt.Errorf("failed to find a free name for %s", base)
	}

	n, err := io.Copy(f, io.LimitReader(content, d.maxSize+1))
	closeErr := f.Close()
	if err == nil && n > d.maxSize {
		err = commonerrors.ErrFileSizeExceeded
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(d.dir, name))
		return "", 0, err
	}

	metrics.UploadBytesTotal.Add(float64(n))
	return name, n, nil
}

func (d *DiskStore) Remove(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(d.dir, SafeFilename(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SafeFilename reduces name to a single path element of safe characters.
func SafeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, ".-")
	if base == "" {
		return "file"
	}
	return base
}

func (s *CollectionService) storeFile(ctx context.Context, data map[string]any, file File) error {
	if s.files == nil {
		return commonerrors.ErrInternalError.WithDetails(map[string]any{"reason": "uploads are not configured"})
	}

	name, size, err := s.files.Save(ctx, file.Filename, file.Content)
	if err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}

	mimeType := file.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			mimeType = byExt
		}
	}

	data["filename"] = name
	data["mimeType"] = mimeType
	data["filesize"] = size
	data["url"] = MediaURLPrefix + name
	return nil
}

func (s *CollectionService) removeFile(ctx context.Context, doc domain.Document) {
	name := doc.String("filename")
	if s.files == nil || name == "" {
		return
	}
	if err := s.files.Remove(ctx, name); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"collection": doc.Collection,
			"id":         doc.ID,
			"filename":   name,
		}).Warnf("failed to remove upload: %v", err)
	}
}
