package domain

import (
	"strings"
	"time"
)

// DataLayer is the medallion layer an object key belongs to.
type DataLayer string

const (
	LayerBronze  DataLayer = "bronze"
	LayerSilver  DataLayer = "silver"
	LayerGold    DataLayer = "gold"
	LayerUnknown DataLayer = "unknown"
)

// ClassifyKey derives the data layer from an object key prefix.
func ClassifyKey(key string) DataLayer {
	switch {
	case strings.HasPrefix(key, "bronze/"):
		return LayerBronze
	case strings.HasPrefix(key, "silver/"):
		return LayerSilver
	case strings.HasPrefix(key, "gold/"):
		return LayerGold
	default:
		return LayerUnknown
	}
}

// Stage names a pipeline transformation.
type Stage string

const (
	StageBronzeToSilver Stage = "bronze_to_silver"
	StageSilverToGold   Stage = "silver_to_gold"
)

// NextStage returns the stage an upload into layer should start. The second
// return value is false for gold and unknown keys, which end the chain.
func NextStage(layer DataLayer) (Stage, bool) {
	switch layer {
	case LayerBronze:
		return StageBronzeToSilver, true
	case LayerSilver:
		return StageSilverToGold, true
	default:
		return "", false
	}
}

// UploadNotification is a single object-created notification.
type UploadNotification struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// StageInvocation is the input handed to the next stage by the trigger.
type StageInvocation struct {
	ID          string    `json:"id"`
	Stage       Stage     `json:"stage"`
	Bucket      string    `json:"bucket"`
	Database    string    `json:"database"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	DataLayer   DataLayer `json:"data_layer"`
	TriggerTime time.Time `json:"trigger_time"`
	Environment string    `json:"environment"`

	StreamMessageID string `json:"-"`
}
