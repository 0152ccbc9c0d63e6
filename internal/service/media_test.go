package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStorage hands out predictable URLs and records deletions.
type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	failPut bool
}

func (s *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if s.failPut {
		return "", errors.New("provider down")
	}
	return "https://upload.test/" + key, nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://download.test/" + key, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func TestExerciseService_CRUDAndAccess(t *testing.T) {
	f := newFixture(t)
	svc := NewExerciseService(f.repos.Exercises, f.repos.Users, &fakeStorage{}, f.opts)
	ctx := context.Background()

	ex, err := svc.CreateExercise(ctx, f.coach.ID, ExerciseInput{Name: " Goblet Squat ", Category: "Legs"})
	require.NoError(t, err)
	assert.Equal(t, "Goblet Squat", ex.Name)
	assert.Equal(t, domain.ExerciseWeighted, ex.Type)

	_, err = svc.CreateExercise(ctx, f.coach.ID, ExerciseInput{Name: "Row", Type: "Swimming"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	got, err := svc.GetExerciseByID(ctx, ClientActor(f.client.ID), ex.ID)
	require.NoError(t, err)
	assert.Equal(t, ex.ID, got.ID)

	stranger := f.addUser(t, domain.RoleClient)
	_, err = svc.GetExerciseByID(ctx, ClientActor(stranger.ID), ex.ID)
	assert.ErrorIs(t, err, ErrExerciseAccessDenied)

	otherCoach := f.addUser(t, domain.RoleCoach)
	_, err = svc.UpdateExercise(ctx, otherCoach.ID, ex.ID, ExerciseInput{Name: "Mine now"})
	assert.ErrorIs(t, err, ErrExerciseAccessDenied)

	updated, err := svc.UpdateExercise(ctx, f.coach.ID, ex.ID, ExerciseInput{Name: "Front Squat", Type: domain.ExerciseWeighted})
	require.NoError(t, err)
	assert.Equal(t, "Front Squat", updated.Name)

	list, err := svc.GetExercisesByCoach(ctx, f.coach.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteExercise(ctx, f.coach.ID, ex.ID))
	_, err = svc.GetExerciseByID(ctx, CoachActor(f.coach.ID), ex.ID)
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestExerciseService_Media(t *testing.T) {
	f := newFixture(t)
	fs := &fakeStorage{}
	svc := NewExerciseService(f.repos.Exercises, f.repos.Users, fs, f.opts)
	ctx := context.Background()

	ex, err := svc.CreateExercise(ctx, f.coach.ID, ExerciseInput{Name: "Deadlift"})
	require.NoError(t, err)

	_, err = svc.MediaDownloadURL(ctx, ClientActor(f.client.ID), ex.ID, MediaVideo)
	assert.ErrorIs(t, err, ErrNoMedia)

	_, err = svc.RequestMediaUploadURL(ctx, f.coach.ID, ex.ID, MediaVideo, "clip.png", "image/png")
	assert.ErrorIs(t, err, ErrValidationFailed)

	first, err := svc.RequestMediaUploadURL(ctx, f.coach.ID, ex.ID, MediaVideo, "clip.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://upload.test/"+first.ObjectKey, first.UploadURL)

	_, err = svc.ConfirmMedia(ctx, f.coach.ID, ex.ID, MediaImage, first.ObjectKey)
	assert.ErrorIs(t, err, ErrMediaKeyMismatch)

	stored, err := svc.ConfirmMedia(ctx, f.coach.ID, ex.ID, MediaVideo, first.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, first.ObjectKey, stored.VideoKey)

	second, err := svc.RequestMediaUploadURL(ctx, f.coach.ID, ex.ID, MediaVideo, "take2.mp4", "video/mp4")
	require.NoError(t, err)
	_, err = svc.ConfirmMedia(ctx, f.coach.ID, ex.ID, MediaVideo, second.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ObjectKey}, fs.deleted)

	url, err := svc.MediaDownloadURL(ctx, ClientActor(f.client.ID), ex.ID, MediaVideo)
	require.NoError(t, err)
	assert.Equal(t, "https://download.test/"+second.ObjectKey, url)

	require.NoError(t, svc.DeleteExercise(ctx, f.coach.ID, ex.ID))
	assert.Equal(t, []string{first.ObjectKey, second.ObjectKey}, fs.deleted)
}

func TestExerciseService_MediaStorageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled := NewExerciseService(f.repos.Exercises, f.repos.Users, storage.NewDisabledStorage(), f.opts)
	ex, err := disabled.CreateExercise(ctx, f.coach.ID, ExerciseInput{Name: "Plank", Type: domain.ExerciseBodyweight})
	require.NoError(t, err)
	_, err = disabled.RequestMediaUploadURL(ctx, f.coach.ID, ex.ID, MediaImage, "plank.jpg", "image/jpeg")
	assert.ErrorIs(t, err, storage.ErrStorageDisabled)

	failing := NewExerciseService(f.repos.Exercises, f.repos.Users, &fakeStorage{failPut: true}, f.opts)
	_, err = failing.RequestMediaUploadURL(ctx, f.coach.ID, ex.ID, MediaImage, "plank.jpg", "image/jpeg")
	assert.ErrorIs(t, err, ErrUploadURLError)
}

func TestProfileService_UpdateAndDerived(t *testing.T) {
	f := newFixture(t)
	svc := NewProfileService(f.repos.Users, &fakeStorage{}, f.opts)
	ctx := context.Background()

	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	p, err := svc.UpdateProfile(ctx, f.client.ID, ProfileInput{
		Name:            "Jordan Lee",
		Timezone:        "America/New_York",
		DateOfBirth:     &dob,
		HeightCM:        180,
		WeightKG:        81,
		WorkoutsPerWeek: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Age)
	assert.Equal(t, 34, *p.Age)
	require.NotNil(t, p.BMI)
	assert.InDelta(t, 25.0, *p.BMI, 0.001)
	assert.Equal(t, 4, p.WeeklyTarget)
	assert.Empty(t, p.User.PasswordHash)

	coach, err := svc.UpdateProfile(ctx, f.coach.ID, ProfileInput{Name: "Coach", HeightCM: 170, WeightKG: 70})
	require.NoError(t, err)
	assert.Nil(t, coach.BMI)
	assert.Zero(t, coach.User.HeightCM)

	future := f.now.AddDate(1, 0, 0)
	tests := []struct {
		name string
		in   ProfileInput
	}{
		{"missing name", ProfileInput{}},
		{"future birthday", ProfileInput{Name: "x", DateOfBirth: &future}},
		{"bad timezone", ProfileInput{Name: "x", Timezone: "Nowhere/Land"}},
		{"too tall", ProfileInput{Name: "x", HeightCM: 301}},
		{"negative weight", ProfileInput{Name: "x", WeightKG: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, f.client.ID, tt.in)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestProfileService_Today(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	svc := NewProfileService(f.repos.Users, &fakeStorage{}, f.opts)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, f.client.ID, ProfileInput{Name: "West", Timezone: "America/Los_Angeles"})
	require.NoError(t, err)

	today, err := svc.Today(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), today)

	today, err = svc.Today(ctx, f.coach.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), today)

	_, err = svc.Today(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfileService_Avatar(t *testing.T) {
	f := newFixture(t)
	fs := &fakeStorage{}
	svc := NewProfileService(f.repos.Users, fs, f.opts)
	ctx := context.Background()

	_, err := svc.RequestAvatarUploadURL(ctx, f.client.ID, "me.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrValidationFailed)

	first, err := svc.RequestAvatarUploadURL(ctx, f.client.ID, "me.jpg", "image/jpeg")
	require.NoError(t, err)
	_, err = svc.ConfirmAvatar(ctx, f.coach.ID, first.ObjectKey)
	assert.ErrorIs(t, err, ErrMediaKeyMismatch)

	p, err := svc.ConfirmAvatar(ctx, f.client.ID, first.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, "https://download.test/"+first.ObjectKey, p.AvatarURL)

	second, err := svc.RequestAvatarUploadURL(ctx, f.client.ID, "me2.jpg", "image/jpeg")
	require.NoError(t, err)
	_, err = svc.ConfirmAvatar(ctx, f.client.ID, second.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ObjectKey}, fs.deleted)

	got, err := svc.GetProfile(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://download.test/"+second.ObjectKey, got.AvatarURL)
}
