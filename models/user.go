package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
	GenderOther     Gender = "other"
	GenderEveryone  Gender = "everyone"
)

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
}

func NewPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Valid() bool {
	if p.Type != "Point" || len(p.Coordinates) != 2 {
		return false
	}
	lng, lat := p.Coordinates[0], p.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// IsZero lets the bson encoder omit an unset location, which a 2dsphere
// index would reject.
func (p GeoPoint) IsZero() bool {
	return p.Type == "" && len(p.Coordinates) == 0
}

func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

type AgeRange struct {
	Min int `bson:"min" json:"min"`
	Max int `bson:"max" json:"max"`
}

type Preferences struct {
	AgeRange AgeRange `bson:"ageRange" json:"ageRange"`
	// MaxDistance is in kilometers.
	MaxDistance int    `bson:"maxDistance" json:"maxDistance"`
	ShowMe      Gender `bson:"showMe" json:"showMe"`
}

const (
	DefaultMinAge      = 18
	DefaultMaxAge      = 35
	DefaultMaxDistance = 50
	MaxDistanceLimit   = 500
)

func DefaultPreferences() Preferences {
	return Preferences{
		AgeRange:    AgeRange{Min: DefaultMinAge, Max: DefaultMaxAge},
		MaxDistance: DefaultMaxDistance,
		ShowMe:      GenderEveryone,
	}
}

type Photo struct {
	URL       string `bson:"url" json:"url"`
	PublicID  string `bson:"publicId" json:"publicId"`
	IsPrimary bool   `bson:"isPrimary" json:"isPrimary"`
}

type SwipeEntry struct {
	User     primitive.ObjectID `bson:"user" json:"user"`
	SwipedAt time.Time          `bson:"swipedAt" json:"swipedAt"`
}

type Swipes struct {
	Liked      []SwipeEntry `bson:"liked" json:"liked"`
	Passed     []SwipeEntry `bson:"passed" json:"passed"`
	SuperLiked []SwipeEntry `bson:"superLiked" json:"superLiked"`
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Age          int                `bson:"age" json:"age"`
	Gender       Gender             `bson:"gender" json:"gender"`
	InterestedIn Gender             `bson:"interestedIn" json:"interestedIn"`
	Bio          string             `bson:"bio" json:"bio"`
	Photos       []Photo            `bson:"photos" json:"photos"`
	Location     GeoPoint           `bson:"location,omitempty" json:"location"`
	Preferences  Preferences        `bson:"preferences" json:"preferences"`
	Swipes       Swipes             `bson:"swipes" json:"-"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	LastActive   time.Time          `bson:"lastActive" json:"lastActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// PrimaryPhoto returns the photo flagged primary, falling back to the first one.
func PrimaryPhoto(u User) string {
	for _, p := range u.Photos {
		if p.IsPrimary {
			return p.URL
		}
	}
	if len(u.Photos) > 0 {
		return u.Photos[0].URL
	}
	return ""
}

// Accepts reports whether a gender preference admits the given gender.
func Accepts(pref Gender, g Gender) bool {
	return pref == "" || pref == GenderEveryone || pref == g
}

// WantedGender is the gender filter discovery applies for u.
func WantedGender(u User) Gender {
	if u.Preferences.ShowMe != "" {
		return u.Preferences.ShowMe
	}
	return u.InterestedIn
}
