package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxAvatarSize    = 5 * 1024 * 1024
	avatarURLTTL     = 7 * 24 * time.Hour
	avatarPathPrefix = "avatars"
)

var (
	ErrFileTooBig         = errors.New("avatar exceeds 5MB limit")
	ErrInvalidFileType    = errors.New("avatar must be a JPEG or PNG image")
	ErrStorageDisabled    = errors.New("avatar storage is not configured")
	ErrBucketUnavailable  = errors.New("avatar bucket unavailable")
	ErrUploadFailed       = errors.New("avatar upload failed")
	ErrDeleteFailed       = errors.New("avatar delete failed")
	ErrUnauthorizedAccess = errors.New("avatar object does not belong to user")

	avatarContentTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
	}
)

// AvatarObject is where an uploaded avatar lives: PublicID is the object key.
type AvatarObject struct {
	PublicID string
	URL      string
}

// StorageService stores avatar images in an object store.
type StorageService interface {
	UploadAvatar(ctx context.Context, userID uint, file io.Reader, size int64) (AvatarObject, error)
	// DeleteAvatar removes a previously uploaded object; keys outside the
	// user's namespace are rejected.
	DeleteAvatar(ctx context.Context, userID uint, publicID string) error
}

type MinIOStorageService struct {
	client   *minio.Client
	bucket   string
	initOnce sync.Once
	initErr  error
	now      func() time.Time
}

// NewMinIOStorageService builds the client only; the bucket is checked on first use.
func NewMinIOStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorageService{client: client, bucket: bucket, now: time.Now}, nil
}

func (s *MinIOStorageService) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrBucketUnavailable, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.initErr = fmt.Errorf("%w: %v", ErrBucketUnavailable, err)
			}
		}
	})
	return s.initErr
}

func (s *MinIOStorageService) UploadAvatar(ctx context.Context, userID uint, file io.Reader, size int64) (AvatarObject, error) {
	head, contentType, err := sniffAvatar(file, size)
	if err != nil {
		return AvatarObject{}, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return AvatarObject{}, err
	}

	key := avatarObjectKey(userID, uuid.NewString(), avatarContentTypes[contentType])
	_, err = s.client.PutObject(ctx, s.bucket, key, io.MultiReader(bytes.NewReader(head), file), size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"User-ID":     strconv.FormatUint(uint64(userID), 10),
			"Uploaded-At": s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return AvatarObject{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, avatarURLTTL, url.Values{})
	if err != nil {
		return AvatarObject{}, fmt.Errorf("%w: presign: %v", ErrUploadFailed, err)
	}
	return AvatarObject{PublicID: key, URL: signed.String()}, nil
}

func (s *MinIOStorageService) DeleteAvatar(ctx context.Context, userID uint, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}
	if err := checkAvatarOwnership(userID, publicID); err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// DisabledStorageService is wired when MINIO_ENDPOINT is empty.
type DisabledStorageService struct{}

func (DisabledStorageService) UploadAvatar(context.Context, uint, io.Reader, int64) (AvatarObject, error) {
	return AvatarObject{}, ErrStorageDisabled
}

func (DisabledStorageService) DeleteAvatar(context.Context, uint, string) error { return nil }

// sniffAvatar validates size and detects the content type from the leading
// bytes; the client-supplied header is never trusted.
func sniffAvatar(file io.Reader, size int64) ([]byte, string, error) {
	if size <= 0 {
		return nil, "", ErrInvalidFileType
	}
	if size > maxAvatarSize {
		return nil, "", ErrFileTooBig
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("%w: read avatar: %v", ErrUploadFailed, err)
	}
	buf = buf[:n]
	contentType := strings.ToLower(http.DetectContentType(buf))
	if _, ok := avatarContentTypes[contentType]; !ok {
		return nil, "", ErrInvalidFileType
	}
	return buf, contentType, nil
}

func avatarObjectKey(userID uint, id, ext string) string {
	return fmt.Sprintf("%s/user-%d/%s%s", avatarPathPrefix, userID, id, ext)
}

func checkAvatarOwnership(userID uint, publicID string) error {
	if strings.Contains(publicID, "..") {
		return ErrUnauthorizedAccess
	}
	if !strings.HasPrefix(publicID, fmt.Sprintf("%s/user-%d/", avatarPathPrefix, userID)) {
		return ErrUnauthorizedAccess
	}
	return nil
}
