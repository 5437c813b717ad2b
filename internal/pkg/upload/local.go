package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxAvatarSize  = 10 * 1024 * 1024 // 10 MB
	UploadsBaseDir = "./uploads"
	StaticURLBase  = "/static/uploads"

	tempDirName   = "tmp"
	avatarDirName = "avatars"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("only images (jpeg, jpg, png, webp) are allowed")
	ErrInvalidPublicID = errors.New("invalid public id")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Uploader moves a staged file into durable storage. publicID is the handle used to delete it later.
type Uploader interface {
	Upload(ctx context.Context, path string) (url, publicID string, err error)
	Delete(ctx context.Context, publicID string) error
}

// Local stores avatars under baseDir and serves them below staticBase.
type Local struct {
	baseDir    string
	staticBase string
	now        func() time.Time
}

func NewLocal(baseDir, staticBase string) *Local {
	if baseDir == "" {
		baseDir = UploadsBaseDir
	}
	if staticBase == "" {
		staticBase = StaticURLBase
	}
	return &Local{baseDir: baseDir, staticBase: strings.TrimRight(staticBase, "/"), now: time.Now}
}

func (l *Local) BaseDir() string { return l.baseDir }

// SaveTemp validates an uploaded avatar and stages it on disk. The caller owns the returned path
// and must remove it, usually by handing it to Upload.
func (l *Local) SaveTemp(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size == 0 {
		return "", ErrEmptyFile
	}
	if fileHeader.Size > MaxAvatarSize {
		return "", ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Detect MIME type from first 512 bytes
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	mimeType := strings.Split(http.DetectContentType(buf[:n]), ";")[0]
	ext, ok := allowedImageTypes[mimeType]
	if !ok {
		return "", ErrInvalidMimeType
	}
	if seeker, ok := file.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}

	dir := filepath.Join(l.baseDir, tempDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	staged := filepath.Join(dir, uuid.NewString()+ext)
	if err := writeFile(staged, file); err != nil {
		return "", err
	}
	return staged, nil
}

// Upload moves a staged file into the avatars tree. The staged file is gone afterwards
// whether or not the move succeeded.
func (l *Local) Upload(ctx context.Context, stagedPath string) (string, string, error) {
	defer RemoveTemp(stagedPath)

	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	publicID := avatarKey(l.now(), stagedPath)
	dst := filepath.Join(l.baseDir, filepath.FromSlash(publicID))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	src, err := os.Open(stagedPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to open staged file: %w", err)
	}
	defer src.Close()

	if err := writeFile(dst, src); err != nil {
		return "", "", err
	}
	return l.staticBase + "/" + publicID, publicID, nil
}

func (l *Local) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validPublicID(publicID) {
		return ErrInvalidPublicID
	}
	err := os.Remove(filepath.Join(l.baseDir, filepath.FromSlash(publicID)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	return nil
}

// avatarKey is avatars/YYYY/MM/DD/<uuid><ext>, shared by every backend.
func avatarKey(now time.Time, stagedPath string) string {
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s",
		avatarDirName, now.Year(), now.Month(), now.Day(), uuid.NewString(), strings.ToLower(filepath.Ext(stagedPath)))
}

func validPublicID(publicID string) bool {
	clean := path.Clean(publicID)
	return publicID != "" && clean == publicID && strings.HasPrefix(clean, avatarDirName+"/")
}

// RemoveTemp deletes a staged file, ignoring files that are already gone.
func RemoveTemp(staged string) {
	if staged == "" {
		return
	}
	_ = os.Remove(staged)
}

func writeFile(name string, r io.Reader) error {
	dst, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		_ = os.Remove(name)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return dst.Close()
}
