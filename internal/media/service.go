package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/blogapi/internal/post"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadBytes = 5 * 1024 * 1024
	defaultPresignTTL     = 15 * time.Minute
	sniffLength           = 512
)

type objectStore interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (int64, error)
	RemoveObject(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type postStore interface {
	AuthorizeAuthor(ctx context.Context, userID, id uuid.UUID) (post.Post, error)
	GetCoverKey(ctx context.Context, id uuid.UUID) (*string, error)
	SetCoverImage(ctx context.Context, id uuid.UUID, key string) error
}

// Cover describes a stored cover image and a link to fetch it.
type Cover struct {
	Key         string    `json:"key"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service manages post cover images.
type Service struct {
	objects        objectStore
	posts          postStore
	maxUploadBytes int64
	presignTTL     time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger reports object cleanup failures that do not fail the request.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a media service. Non-positive limits fall back to
// 5MB uploads and 15 minute links.
func NewService(objects objectStore, posts postStore, maxUploadBytes int64, presignTTL time.Duration, opts ...Option) *Service {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if presignTTL <= 0 {
		presignTTL = defaultPresignTTL
	}
	s := &Service{
		objects:        objects,
		posts:          posts,
		maxUploadBytes: maxUploadBytes,
		presignTTL:     presignTTL,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadCover stores an image as the post's cover, replacing any previous
// one. Only the post author may upload.
func (s *Service) UploadCover(ctx context.Context, userID, postID uuid.UUID, fileHeader *multipart.FileHeader) (Cover, error) {
	if fileHeader == nil {
		return Cover{}, ErrFileRequired
	}

	existing, err := s.posts.AuthorizeAuthor(ctx, userID, postID)
	if err != nil {
		return Cover{}, err
	}

	if fileHeader.Size > s.maxUploadBytes {
		return Cover{}, ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Cover{}, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Cover{}, fmt.Errorf("read upload file: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return Cover{}, ErrUnsupportedType
	}

	key := fmt.Sprintf("posts/%s/cover-%s", postID, uuid.NewString())
	reader := io.MultiReader(bytes.NewReader(head), file)

	size, err := s.objects.PutObject(ctx, key, reader, fileHeader.Size, contentType)
	if err != nil {
		return Cover{}, err
	}
	if size <= 0 {
		size = fileHeader.Size
	}

	if err := s.posts.SetCoverImage(ctx, postID, key); err != nil {
		if rmErr := s.objects.RemoveObject(ctx, key); rmErr != nil {
			s.logger.Warn("remove orphaned cover",
				zap.String("post_id", postID.String()),
				zap.String("key", key),
				zap.Error(rmErr),
			)
		}
		return Cover{}, err
	}

	// The new cover is committed; a stale object left behind is only logged.
	if existing.CoverImageKey != nil && *existing.CoverImageKey != key {
		if err := s.objects.RemoveObject(ctx, *existing.CoverImageKey); err != nil {
			s.logger.Warn("remove previous cover",
				zap.String("post_id", postID.String()),
				zap.String("key", *existing.CoverImageKey),
				zap.Error(err),
			)
		}
	}

	cover, err := s.presign(ctx, key)
	if err != nil {
		return Cover{}, err
	}
	cover.ContentType = contentType
	cover.SizeBytes = size
	return cover, nil
}

// CoverURL returns a presigned download link for the post's cover.
func (s *Service) CoverURL(ctx context.Context, postID uuid.UUID) (Cover, error) {
	key, err := s.posts.GetCoverKey(ctx, postID)
	if err != nil {
		return Cover{}, err
	}
	if key == nil || *key == "" {
		return Cover{}, ErrCoverNotFound
	}
	return s.presign(ctx, *key)
}

func (s *Service) presign(ctx context.Context, key string) (Cover, error) {
	issuedAt := s.now()
	u, err := s.objects.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return Cover{}, err
	}
	return Cover{Key: key, URL: u, ExpiresAt: issuedAt.Add(s.presignTTL).UTC()}, nil
}
