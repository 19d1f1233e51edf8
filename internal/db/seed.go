package db

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoSecret is the token secret of every seeded account: user N signs in
// with the bearer token "userN.demo".
const DemoSecret = "demo"

const seedUsers = 20

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears every table.
//  2. Creates 20 profiles (10 male, 10 female, every 4th premium) with accounts.
//  3. Generates likes between opposite genders, ~70% of candidate pairs;
//     every 3rd pair is made mutual.
//  4. Starts one message thread per mutual pair involving a premium user.
//  5. Starts a live stream hosted by user1.
func SeedTestData(db *gorm.DB, log *slog.Logger) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"stream_viewers", "streams", "messages", "legacy_messages", "likes", "accounts", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash demo token: %w", err)
	}

	// --- Profiles and accounts ---
	profiles := make([]Profile, 0, seedUsers)
	for i := 1; i <= seedUsers; i++ {
		gender := "male"
		if i > seedUsers/2 {
			gender = "female"
		}
		id := fmt.Sprintf("user%d", i)
		profiles = append(profiles, Profile{
			UserID:      id,
			DisplayName: fmt.Sprintf("User %d", i),
			Age:         18 + r.Intn(30),
			Gender:      &gender,
			Interests:   []string{"music", "hiking", "film", "food"}[:1+r.Intn(4)],
			IsPremium:   i%4 == 1,
		})
		if err := db.Create(&Account{UserID: id, TokenHash: string(hash)}).Error; err != nil {
			return fmt.Errorf("failed to seed account: %w", err)
		}
	}
	if err := db.Create(&profiles).Error; err != nil {
		return fmt.Errorf("failed to seed profiles: %w", err)
	}
	log.Info("seeded profiles", "count", len(profiles), "token_format", "<user_id>."+DemoSecret)

	// --- Likes ---
	like := func(liker, liked, status string) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&Like{LikerID: liker, LikedID: liked, Status: status}).Error
	}

	var mutual [][2]*Profile
	counter := 0
	for a := range profiles {
		for j := 0; j < 8; j++ {
			b := r.Intn(seedUsers)
			actor, target := &profiles[a], &profiles[b]
			if a == b || *actor.Gender == *target.Gender {
				continue
			}
			if r.Intn(100) >= 70 {
				continue
			}

			status := LikePending
			if counter%3 == 0 {
				status = LikeReciprocated
				if err := like(target.UserID, actor.UserID, status); err != nil {
					return fmt.Errorf("failed to seed like: %w", err)
				}
				mutual = append(mutual, [2]*Profile{actor, target})
			}
			if err := like(actor.UserID, target.UserID, status); err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}
			counter++
		}
	}
	log.Info("seeded likes", "pairs", counter, "mutual", len(mutual))

	// --- Messages ---
	now := time.Now().UTC()
	messages := 0
	for _, pair := range mutual {
		a, b := pair[0], pair[1]
		if !a.IsPremium && !b.IsPremium {
			continue
		}
		for k, body := range []string{"hey!", "hi, nice to match", "how's your week going?"} {
			sender, receiver := a.UserID, b.UserID
			if k%2 == 1 {
				sender, receiver = receiver, sender
			}
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate message id: %w", err)
			}
			m := Message{
				ID:              id.String(),
				ConversationKey: DirectKey(sender, receiver),
				SenderID:        sender,
				ReceiverID:      receiver,
				Body:            body,
				CreatedAt:       now.Add(time.Duration(k-3) * time.Minute).Truncate(time.Millisecond),
			}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed message: %w", err)
			}
			messages++
		}
	}
	log.Info("seeded messages", "count", messages)

	// --- Stream ---
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate stream id: %w", err)
	}
	stream := Stream{
		ID:          id.String(),
		StreamerID:  profiles[0].UserID,
		Title:       "Friday night hangout",
		Description: "Come say hi",
		IsActive:    true,
	}
	if err := db.Create(&stream).Error; err != nil {
		return fmt.Errorf("failed to seed stream: %w", err)
	}
	log.Info("seeded stream", "stream", stream.ID, "streamer", stream.StreamerID)

	return nil
}
