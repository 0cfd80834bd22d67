package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cardfile/cardfile/internal/avatar"
	"github.com/cardfile/cardfile/internal/cache"
	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/cardfile/cardfile/pkg/slogx"
)

var (
	ErrUnsupportedImage = errors.New("unsupported_image_type")
	ErrImageTooLarge    = errors.New("image_too_large")
)

// MaxAvatarSize caps avatar uploads at 5 MiB.
const MaxAvatarSize = 5 << 20

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// UserService covers profile operations outside the credential flows.
type UserService struct {
	Store    store.Store
	Cache    *cache.SessionCache
	Uploader avatar.Uploader
}

// UploadAvatar stores the image in the object store and persists its public
// URL on the user. The cache entry is refreshed synchronously so the next
// authenticated request already sees the new avatar.
func (s *UserService) UploadAvatar(ctx context.Context, user domain.User, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}
	if size <= 0 || size > MaxAvatarSize {
		return "", ErrImageTooLarge
	}

	key := fmt.Sprintf("avatars/%s%s", user.ID, ext)
	url, err := s.Uploader.Upload(ctx, key, contentType, body, size)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.Store.Users().UpdateAvatarURL(ctx, user.ID, url); err != nil {
		return "", err
	}

	user.AvatarURL = url
	s.Cache.Put(user.Email, user)

	slogx.FromContext(ctx).Info("avatar updated", slog.String("user_id", user.ID))
	return url, nil
}
