package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"
	"voyago/guide-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUnsupportedImage    = errors.New("unsupported image content type")
	ErrUploadURLError      = errors.New("failed to generate upload URL")
	ErrDownloadURLError    = errors.New("failed to generate download URL")
	ErrImageConfirmFailed  = errors.New("failed to confirm profile image")
	ErrImageKeyNotIssued   = errors.New("object key was not issued for this user")
)

// UploadURLResponse carries the presigned URL plus the object key the client
// must report back on confirm.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// Profile is a user enriched with a temporary profile image URL.
type Profile struct {
	domain.User
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error)

	// Profile image upload: the client asks for a presigned PUT URL, uploads
	// directly to S3, then confirms the object key back to us.
	RequestProfileImageUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadURLResponse, error)
	ConfirmProfileImage(ctx context.Context, userID primitive.ObjectID, objectKey string) error
}

// userService implements the UserService interface.
type userService struct {
	userRepo repository.UserRepository
	storage  storage.ObjectStorage
}

// NewUserService creates a new instance of userService.
func NewUserService(userRepo repository.UserRepository, objectStorage storage.ObjectStorage) UserService {
	return &userService{
		userRepo: userRepo,
		storage:  objectStorage,
	}
}

// GetProfile returns the user plus a presigned download URL for the profile
// image when one has been uploaded.
func (s *userService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""

	profile := &Profile{User: *user}
	if user.ProfileImageKey != "" {
		url, err := s.storage.GeneratePresignedDownloadURL(ctx, user.ProfileImageKey, storage.DefaultPresignedURLExpiry)
		if err != nil {
			// The profile is still useful without the image link.
			return profile, nil
		}
		profile.ProfileImageURL = &url
	}
	return profile, nil
}

// RequestProfileImageUpload issues a presigned PUT URL under a fresh object key.
func (s *userService) RequestProfileImageUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadURLResponse, error) {
	ext, ok := imageExtension(contentType)
	if !ok {
		return nil, ErrUnsupportedImage
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	uniqueID := uuid.NewString()
	objectKey := path.Join("profiles", userID.Hex(), fmt.Sprintf("%s%s", uniqueID, ext))

	url, err := s.storage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, ErrUploadURLError
	}

	return &UploadURLResponse{UploadURL: url, ObjectKey: objectKey}, nil
}

// ConfirmProfileImage records the uploaded object key and drops the previous
// image object, if any.
func (s *userService) ConfirmProfileImage(ctx context.Context, userID primitive.ObjectID, objectKey string) error {
	// Keys are always issued under the user's own prefix; anything else was
	// not handed out by RequestProfileImageUpload.
	if !strings.HasPrefix(objectKey, path.Join("profiles", userID.Hex())+"/") {
		return ErrImageKeyNotIssued
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	previousKey := user.ProfileImageKey
	if err := s.userRepo.SetProfileImageKey(ctx, userID, objectKey); err != nil {
		return ErrImageConfirmFailed
	}

	if previousKey != "" && previousKey != objectKey {
		// Best effort cleanup; an orphaned object is not worth failing over.
		_ = s.storage.DeleteObject(ctx, previousKey)
	}
	return nil
}

func imageExtension(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}
