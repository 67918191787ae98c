package redis

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/medallion/internal/domain"
)

func TestDecodeInvocation(t *testing.T) {
	inv := domain.StageInvocation{
		ID:          "inv-1",
		Stage:       domain.StageBronzeToSilver,
		Bucket:      "lake",
		Key:         "bronze/logs_20240101_000000.json",
		DataLayer:   domain.LayerBronze,
		TriggerTime: time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC),
	}
	payload, _ := json.Marshal(inv)

	tests := []struct {
		name    string
		msg     redis.XMessage
		wantErr bool
	}{
		{"Valid payload", redis.XMessage{ID: "1-0", Values: map[string]interface{}{payloadField: string(payload)}}, false},
		{"Missing payload", redis.XMessage{ID: "2-0", Values: map[string]interface{}{}}, true},
		{"Corrupt payload", redis.XMessage{ID: "3-0", Values: map[string]interface{}{payloadField: "{"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeInvocation(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeInvocation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if got.StreamMessageID != tt.msg.ID || got.Key != inv.Key || got.Stage != inv.Stage {
					t.Errorf("unexpected invocation: %+v", got)
				}
			}
		})
	}
}

func TestAdminRepository_DeadLetter(t *testing.T) {
	repo := NewAdminRepository(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), "s", "s_dlq", "g")
	payload, _ := json.Marshal(domain.StageInvocation{ID: "inv-9", Stage: domain.StageSilverToGold})

	dl := repo.deadLetter(redis.XMessage{ID: "5-0", Values: map[string]interface{}{
		payloadField: string(payload),
		"error":      "silver read failed",
		"failed_at":  "2024-03-15T10:00:00Z",
	}})

	if dl.ID != "5-0" || dl.Invocation.ID != "inv-9" || dl.Error != "silver read failed" {
		t.Errorf("unexpected dead letter: %+v", dl)
	}
	if !dl.FailedAt.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected failed_at: %v", dl.FailedAt)
	}
}

func TestIsRedisBusyGroupError(t *testing.T) {
	if !isRedisBusyGroupError(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("expected BUSYGROUP to be recognised")
	}
	if isRedisBusyGroupError(nil) {
		t.Error("nil is not a BUSYGROUP error")
	}
}
