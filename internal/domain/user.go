package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// DefaultWorkoutsPerWeek is used when a client has not set a weekly target.
const DefaultWorkoutsPerWeek = 3

// User represents a user in the system (either a Coach or a Client).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // never exposed
	Role         Role               `bson:"role" json:"role"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	Timezone     string             `bson:"timezone,omitempty" json:"timezone,omitempty"` // IANA name, empty means server default
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Coach-specific ---
	ClientIDs []primitive.ObjectID `bson:"clientIds,omitempty" json:"clientIds,omitempty"`

	// --- Client-specific ---
	CoachID          *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"`
	DateOfBirth      *time.Time          `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	HeightCM         float64             `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	WeightKG         float64             `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	FitnessGoal      string              `bson:"fitnessGoal,omitempty" json:"fitnessGoal,omitempty"`
	WorkoutsPerWeek  int                 `bson:"workoutsPerWeek,omitempty" json:"workoutsPerWeek,omitempty"`
	EmergencyContact string              `bson:"emergencyContact,omitempty" json:"emergencyContact,omitempty"`
	EmergencyPhone   string              `bson:"emergencyPhone,omitempty" json:"emergencyPhone,omitempty"`
	ProfileImageKey  string              `bson:"profileImageKey,omitempty" json:"-"`
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// WeeklyTarget returns the client's workouts per week, falling back to DefaultWorkoutsPerWeek.
func (u *User) WeeklyTarget() int {
	if u == nil || u.WorkoutsPerWeek <= 0 {
		return DefaultWorkoutsPerWeek
	}
	return u.WorkoutsPerWeek
}

// ManagesClient reports whether clientID is in the coach's client list.
func (u *User) ManagesClient(clientID primitive.ObjectID) bool {
	for _, id := range u.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}
