package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

const bookingUpdatesChannel = "booking:updates"

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// BookingUpdate is the cross-instance invalidation event published whenever a
// mutation changes which driver view a booking belongs to
type BookingUpdate struct {
	BookingID uint     `json:"bookingId"`
	Status    string   `json:"status"`
	Views     []string `json:"views"`
	Timestamp int64    `json:"timestamp"`
}

// PublishBookingUpdate announces a status change and the view slots it
// dirties, so driver sessions on every instance drop those slots
func PublishBookingUpdate(ctx context.Context, bookingID uint, status string, views ...booking.View) error {
	update := BookingUpdate{
		BookingID: bookingID,
		Status:    status,
		Timestamp: time.Now().Unix(),
	}
	for _, view := range views {
		update.Views = append(update.Views, string(view))
	}

	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, bookingUpdatesChannel, data).Err()
}

// SubscribeBookingUpdates delivers booking updates to the handler until ctx
// is cancelled. Malformed payloads are logged and skipped.
func SubscribeBookingUpdates(ctx context.Context, handler func(BookingUpdate)) {
	sub := RedisClient.Subscribe(ctx, bookingUpdatesChannel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var update BookingUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					log.Printf("booking updates: bad payload: %v", err)
					continue
				}
				handler(update)
			}
		}
	}()
}

// SetDriverOnDuty stores the driver's on-duty flag
func SetDriverOnDuty(ctx context.Context, driverID uint, onDuty bool) error {
	key := fmt.Sprintf("driver:onduty:%d", driverID)
	value := "true"
	if !onDuty {
		value = "false"
	}
	return RedisClient.Set(ctx, key, value, time.Hour).Err()
}

// GetDriverOnDuty retrieves the driver's on-duty flag
func GetDriverOnDuty(ctx context.Context, driverID uint) (bool, error) {
	key := fmt.Sprintf("driver:onduty:%d", driverID)
	result, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result == "true", nil
}
