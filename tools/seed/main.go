// Command seed inserts demo users around a point and prints a bearer token
// for each, so the API can be exercised without an auth service.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"spark/config"
	"spark/database"
	"spark/middleware"
	"spark/models"

	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var names = []string{"Ada", "Bola", "Chidi", "Dami", "Efe", "Funke", "Gbenga", "Halima", "Ife", "Jide", "Kemi", "Lola"}

func main() {
	var (
		count    int
		lng, lat float64
		radiusKm float64
		ttl      time.Duration
	)
	flagSet := pflag.NewFlagSet("seed", pflag.ExitOnError)
	flagSet.IntVarP(&count, "count", "n", 10, "number of users")
	flagSet.Float64Var(&lng, "lng", 3.3792, "center longitude")
	flagSet.Float64Var(&lat, "lat", 6.5244, "center latitude")
	flagSet.Float64Var(&radiusKm, "radius", 20, "spread radius in km")
	flagSet.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = flagSet.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}
	if cfg.StoreBackend != config.BackendMongo {
		log.Fatal("❌ seed writes to MongoDB, set STORE_BACKEND=mongo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("❌ Failed to connect to MongoDB: ", err)
	}
	defer database.DisconnectMongo()

	st := database.NewStore(client.Database(cfg.MongoDB))
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatal("❌ Failed to create indexes: ", err)
	}

	genders := []models.Gender{models.GenderFemale, models.GenderMale}
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		g := genders[i%2]
		u := models.User{
			ID:           primitive.NewObjectID(),
			Name:         names[i%len(names)],
			Age:          20 + rand.Intn(15),
			Gender:       g,
			InterestedIn: genders[(i+1)%2],
			Bio:          "Seeded for local testing",
			Location:     scatter(lng, lat, radiusKm),
			Preferences:  models.DefaultPreferences(),
			IsActive:     true,
			LastActive:   now,
			CreatedAt:    now,
		}
		u.Preferences.ShowMe = u.InterestedIn
		if err := st.SaveUser(ctx, u); err != nil {
			log.Fatal("❌ Failed to save user: ", err)
		}
		token, err := middleware.GenerateToken(cfg.JWTSecret, u.ID.Hex(), ttl)
		if err != nil {
			log.Fatal("❌ Failed to sign token: ", err)
		}
		fmt.Printf("%s\t%-8s %-6s %s\n", u.ID.Hex(), u.Name, u.Gender, token)
	}
}

// scatter picks a point within radiusKm of the center.
func scatter(lng, lat, radiusKm float64) models.GeoPoint {
	d := radiusKm * math.Sqrt(rand.Float64())
	theta := rand.Float64() * 2 * math.Pi
	dLat := d / 111.32 * math.Cos(theta)
	dLng := d / (111.32 * math.Cos(lat*math.Pi/180)) * math.Sin(theta)
	return models.NewPoint(lng+dLng, lat+dLat)
}
