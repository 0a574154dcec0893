package utils

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/mohitdev/blogbackend/config"
)

// Storage persists an uploaded file and returns the URL it is served from.
// Remove deletes a previously saved object by the URL Save returned, so a
// caller whose follow-up work fails does not leave the upload orphaned.
type Storage interface {
	Save(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, url string) error
}

// objectName builds a collision-free name: timestamp prefix plus a random id.
func objectName(prefix string, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d-%s%s", prefix, time.Now().UTC().UnixNano(), uuid.New().String(), ext)
}

// LocalStorage writes uploads to a directory served statically by the router.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(cfg config.UploadsConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStorage{dir: cfg.Dir, baseURL: cfg.BaseURL}, nil
}

func (s *LocalStorage) Save(_ context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	name := objectName(prefix, fh.Filename)

	dst := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload subdir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

func (s *LocalStorage) Remove(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return fmt.Errorf("not a local upload url: %s", url)
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// GCSStorage uploads to a Google Cloud Storage bucket and returns the public
// object URL. Used when a bucket is configured.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

func NewGCSStorage(ctx context.Context, cfg config.UploadsConfig) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, filepath.Join(wd, cfg.CredentialsFile)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.GCSBucket}, nil
}

func (s *GCSStorage) Save(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	name := objectName(prefix, fh.Filename)

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	if ct != "" {
		w.ContentType = ct
	}
	w.CacheControl = "no-cache"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name), nil
}

func (s *GCSStorage) Remove(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket))
	if !ok {
		return fmt.Errorf("not a bucket object url: %s", url)
	}
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// FileValidator checks uploaded images by extension, sniffed content type and
// size before they reach a storage backend.
type FileValidator struct {
	allowedExt  map[string]bool
	allowedMime map[string]bool
	maxSize     int64
}

func NewImageValidator(cfg config.UploadsConfig) *FileValidator {
	sizeMB := cfg.MaxSizeMB
	if sizeMB <= 0 {
		sizeMB = 5
	}
	return &FileValidator{
		allowedExt: map[string]bool{
			".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		},
		allowedMime: map[string]bool{
			"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
		},
		maxSize: int64(sizeMB) << 20,
	}
}

func (v *FileValidator) ValidateFile(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > v.maxSize {
		return "", fmt.Errorf("file too large (max %d MB)", v.maxSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !v.allowedExt[ext] {
		return "", fmt.Errorf("invalid file extension")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	buffer := make([]byte, 512)
	if _, err = file.Read(buffer); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file header")
	}
	if _, err = file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to reset file reader")
	}

	detectedMime := strings.ToLower(http.DetectContentType(buffer))
	if i := strings.Index(detectedMime, ";"); i >= 0 {
		detectedMime = detectedMime[:i]
	}
	if !v.allowedMime[detectedMime] {
		return "", fmt.Errorf("invalid file type")
	}

	return detectedMime, nil
}
