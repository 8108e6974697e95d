package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
	"github.com/consultlink/api/internal/validation"
)

func setupNotificationDB(t *testing.T) repository.NotificationRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	return repository.NewNotificationRepository(db)
}

func TestNotificationServicePublishAndSubscribe(t *testing.T) {
	repo := setupNotificationDB(t)
	svc := NewNotificationService(repo, nil, "", nil, validation.New(), zerolog.Nop())

	stream, cleanup := svc.Subscribe(42)
	defer cleanup()

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  42,
		Type:    "consultation_confirmed",
		Message: "<b>Your consultation</b> was confirmed",
		Payload: map[string]interface{}{"consultation_id": 7},
	})
	require.NoError(t, err)
	require.NotZero(t, published.ID)
	require.Equal(t, "Your consultation was confirmed", published.Message, "markup must be stripped")

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
		require.Equal(t, uint(42), received.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast notification")
	}

	// The persisted copy survives for polling clients.
	listed, err := svc.List(context.Background(), 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.False(t, listed[0].Read)

	marked, err := svc.MarkRead(context.Background(), published.ID, 42)
	require.NoError(t, err)
	require.True(t, marked.Read)
}

func TestNotificationServiceMarkReadScopedToOwner(t *testing.T) {
	repo := setupNotificationDB(t)
	svc := NewNotificationService(repo, nil, "", nil, validation.New(), zerolog.Nop())

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  42,
		Type:    "consultation_requested",
		Message: "New consultation request",
	})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), published.ID, 99)
	require.Error(t, err, "another user's notification must not be markable")
}

func TestNotificationServiceCrossNodeFanout(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	publisher := NewNotificationService(setupNotificationDB(t), redisClient, "consultlink:test", nil, validation.New(), zerolog.Nop())
	consumer := NewNotificationService(setupNotificationDB(t), redisClient, "consultlink:test", nil, validation.New(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)

	// Give the consumer's pubsub subscription time to attach.
	time.Sleep(100 * time.Millisecond)

	stream, cleanup := consumer.Subscribe(42)
	defer cleanup()

	_, err = publisher.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  42,
		Type:    "consultation_cancelled",
		Message: "The consultation was cancelled",
	})
	require.NoError(t, err)

	select {
	case received := <-stream:
		require.Equal(t, uint(42), received.UserID)
		require.Equal(t, "consultation_cancelled", received.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the event to reach the other node via redis")
	}
}

func TestNotificationServiceRejectsEmptyMessage(t *testing.T) {
	repo := setupNotificationDB(t)
	svc := NewNotificationService(repo, nil, "", nil, validation.New(), zerolog.Nop())

	_, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  42,
		Type:    "noise",
		Message: "<script>alert('x')</script>",
	})
	require.Error(t, err, "message empty after sanitization")
}
