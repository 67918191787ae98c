package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/V4T54L/medallion/internal/adapter/lake"
	"github.com/V4T54L/medallion/internal/bootstrap"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/config"
	"github.com/V4T54L/medallion/internal/pkg/logger"
	"github.com/V4T54L/medallion/internal/sample"
)

// log-generator uploads synthetic web-server log batches into the bronze
// layer of the configured lake, optionally announcing each upload to the
// trigger service.
func main() {
	records := flag.Int("n", 1000, "Records per batch")
	batches := flag.Int("batches", 1, "Number of batches to upload")
	interval := flag.Duration("interval", 10*time.Second, "Minimum time between batches")
	span := flag.Duration("span", time.Hour, "Event time span covered by each batch")
	messy := flag.Float64("messy", sample.DefaultMessyRate, "Fraction of malformed records")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	compression := flag.String("compress", "none", "Batch compression: none, gzip or zstd")
	notifyURL := flag.String("notify", "", "Trigger notification URL to call after each upload")
	apiKey := flag.String("api-key", "", "API Key for the trigger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lk, err := bootstrap.OpenLake(cfg, lg)
	if err != nil {
		log.Fatalf("failed to open lake: %v", err)
	}

	gen := sample.NewGenerator(*seed)
	gen.MessyRate = *messy
	limiter := rate.NewLimiter(rate.Every(*interval), 1)
	client := &http.Client{Timeout: 10 * time.Second}

	log.Printf("Uploading %d batches of %d records to %s (%s backend)", *batches, *records, cfg.BronzePrefix, cfg.LakeBackend)
	for i := 0; i < *batches; i++ {
		if err := limiter.Wait(ctx); err != nil {
			log.Printf("Stopped after %d batches: %v", i, err)
			return
		}

		now := time.Now().UTC()
		data, err := lake.EncodeBronze(gen.Batch(*records, now.Add(-*span), *span))
		if err != nil {
			log.Fatalf("failed to encode batch: %v", err)
		}
		if data, err = compress(data, *compression); err != nil {
			log.Fatalf("failed to compress batch: %v", err)
		}

		key := sample.BatchKey(cfg.BronzePrefix, now)
		if err := lk.Store.Put(ctx, key, data); err != nil {
			log.Fatalf("failed to upload %s: %v", key, err)
		}
		log.Printf("Uploaded %s (%d bytes)", key, len(data))

		if *notifyURL != "" {
			n := domain.UploadNotification{Bucket: cfg.LakeBucket, Key: key, Size: int64(len(data))}
			if err := notify(ctx, client, *notifyURL, *apiKey, n); err != nil {
				log.Printf("Notification for %s failed: %v", key, err)
			}
		}
	}
	log.Println("Done.")
}

func compress(data []byte, codec string) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch codec {
	case "none", "":
		return data, nil
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zstd":
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = enc
	default:
		return nil, fmt.Errorf("unknown compression %q", codec)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func notify(ctx context.Context, client *http.Client, url, apiKey string, n domain.UploadNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trigger returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
