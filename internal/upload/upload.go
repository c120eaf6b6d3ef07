package upload

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest accepted image.
const MaxSize = 5 << 20

var (
	ErrNoFile   = errors.New("No file uploaded")
	ErrTooLarge = errors.New("File too large (max 5MB)")
	ErrNotImage = errors.New("Only image files are allowed!")
)

type Result struct {
	FilePath     string `json:"filePath"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	Kind         string `json:"type"`
}

// Store writes uploaded images under a directory served at a URL prefix.
type Store struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

func NewStore(dir, urlPrefix string) *Store {
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/"), now: time.Now}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save reads the multipart "file" field. Both the declared content type and
// the sniffed one must be images.
func (s *Store) Save(r *http.Request) (*Result, error) {
	if err := r.ParseMultipartForm(MaxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrTooLarge
		}
		return nil, ErrNoFile
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, ErrNoFile
	}
	defer file.Close()

	if header.Size > MaxSize {
		return nil, ErrTooLarge
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return nil, ErrNotImage
	}
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, fmt.Errorf("sniff upload: %w", err)
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, ErrNotImage
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = detected.Extension()
	}
	name := fmt.Sprintf("file-%d-%d%s", s.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
	size, err := s.write(name, file)
	if err != nil {
		return nil, err
	}

	kind := r.FormValue("type")
	if kind == "" {
		kind = "general"
	}
	return &Result{
		FilePath:     s.urlPrefix + "/" + name,
		OriginalName: header.Filename,
		Size:         size,
		ContentType:  detected.String(),
		Kind:         kind,
	}, nil
}

func (s *Store) write(name string, src multipart.File) (int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write upload file: %w", err)
	}
	return n, nil
}
