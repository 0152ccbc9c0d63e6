package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"
	"fittrainer/pro/internal/storage"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfileInput replaces the editable profile fields. Client-only fields are ignored for coaches.
type ProfileInput struct {
	Name             string
	Phone            string
	Country          string
	Timezone         string
	DateOfBirth      *time.Time
	HeightCM         float64
	WeightKG         float64
	FitnessGoal      string
	WorkoutsPerWeek  int
	EmergencyContact string
	EmergencyPhone   string
}

// Profile is a user with the figures derived from their body data.
type Profile struct {
	User         *domain.User `json:"user"`
	Age          *int         `json:"age,omitempty"`
	BMI          *float64     `json:"bmi,omitempty"`
	WeeklyTarget int          `json:"weeklyTarget,omitempty"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`
}

type ProfileService interface {
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*Profile, error)
	// Today is the user's current calendar date in their timezone.
	Today(ctx context.Context, userID primitive.ObjectID) (time.Time, error)
	RequestAvatarUploadURL(ctx context.Context, userID primitive.ObjectID, fileName, contentType string) (*UploadURLResponse, error)
	ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) (*Profile, error)
}

type profileService struct {
	base
	userRepo    repository.UserRepository
	fileStorage storage.FileStorage
}

func NewProfileService(userRepo repository.UserRepository, fileStorage storage.FileStorage, opts Options) ProfileService {
	return &profileService{
		base:        newBase(opts),
		userRepo:    userRepo,
		fileStorage: fileStorage,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	return s.profileOf(ctx, user), nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*Profile, error) {
	if err := validateProfile(&in, s.now()); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	user.Name = in.Name
	user.Phone = in.Phone
	user.Country = in.Country
	user.Timezone = in.Timezone
	if user.IsClient() {
		user.DateOfBirth = in.DateOfBirth
		user.HeightCM = in.HeightCM
		user.WeightKG = in.WeightKG
		user.FitnessGoal = in.FitnessGoal
		user.WorkoutsPerWeek = in.WorkoutsPerWeek
		user.EmergencyContact = in.EmergencyContact
		user.EmergencyPhone = in.EmergencyPhone
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFailure("update profile", err)
	}
	return s.profileOf(ctx, user), nil
}

func validateProfile(in *ProfileInput, now time.Time) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if _, err := domain.LoadLocation(in.Timezone, time.UTC); err != nil {
		return invalid("timezone", err.Error())
	}
	if in.HeightCM < 0 || in.HeightCM > 300 {
		return invalid("heightCm", "must be between 0 and 300")
	}
	if in.WeightKG < 0 || in.WeightKG > 500 {
		return invalid("weightKg", "must be between 0 and 500")
	}
	if in.WorkoutsPerWeek < 0 || in.WorkoutsPerWeek > 14 {
		return invalid("workoutsPerWeek", "must be between 0 and 14")
	}
	if in.DateOfBirth != nil {
		in.DateOfBirth = domain.DatePtr(*in.DateOfBirth)
		if in.DateOfBirth.After(now) {
			return invalid("dateOfBirth", "is in the future")
		}
	}
	return nil
}

// profileOf derives age, BMI and the avatar link. A failing avatar link is logged and left out.
func (s *profileService) profileOf(ctx context.Context, user *domain.User) *Profile {
	p := summarize(user, s.now())
	if user.ProfileImageKey != "" {
		url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, user.ProfileImageKey, storage.DefaultPresignedURLExpiry)
		if err != nil && !errors.Is(err, storage.ErrStorageDisabled) {
			log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("avatar download url")
		}
		p.AvatarURL = url
	}
	return p
}

func summarize(user *domain.User, now time.Time) *Profile {
	user.PasswordHash = ""
	p := &Profile{User: user}
	if !user.IsClient() {
		return p
	}
	p.WeeklyTarget = user.WeeklyTarget()
	if user.DateOfBirth != nil {
		age := domain.Age(*user.DateOfBirth, now)
		p.Age = &age
	}
	if bmi, ok := domain.BMI(user.HeightCM, user.WeightKG); ok {
		p.BMI = &bmi
	}
	return p
}

func (s *profileService) Today(ctx context.Context, userID primitive.ObjectID) (time.Time, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := domain.LoadLocation(user.Timezone, s.opts.Location)
	if err != nil {
		// stored before validation existed; fall back rather than fail the request
		log.WithError(err).WithField("user_id", userID.Hex()).Warn("bad stored timezone")
		loc = s.opts.Location
	}
	return domain.Today(s.now(), loc), nil
}

func (s *profileService) RequestAvatarUploadURL(ctx context.Context, userID primitive.ObjectID, fileName, contentType string) (*UploadURLResponse, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, invalid("contentType", "must be an image type")
	}
	key := storage.NewObjectKey(storage.KindAvatar, userID, fileName)
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, mediaFailure("avatar upload url", err)
	}
	return &UploadURLResponse{UploadURL: url, ObjectKey: key}, nil
}

// ConfirmAvatar stores the uploaded key and removes the previous image.
func (s *profileService) ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) (*Profile, error) {
	if !storage.KeyBelongsTo(objectKey, storage.KindAvatar, userID) {
		return nil, ErrMediaKeyMismatch
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	previous := user.ProfileImageKey
	user.ProfileImageKey = objectKey
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, storeFailure("update profile image", err)
	}
	if previous != "" && previous != objectKey {
		dropObject(ctx, s.fileStorage, previous)
	}
	return s.profileOf(ctx, user), nil
}
