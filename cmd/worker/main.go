package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"facetrack/internal/attendance"
	"facetrack/internal/config"
	"facetrack/internal/identity"
	"facetrack/internal/queue"
	"facetrack/internal/recognizer"
	"facetrack/internal/store"
)

// Worker consumes detection messages, identifies the face, and applies the
// result to the attendance ledger.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var ledger attendance.Store
	if cfg.StoreBackend == "postgres" {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		repo, err := attendance.NewRepository(ctx, db.Client)
		if err != nil {
			log.Fatalf("attendance schema failed: %v", err)
		}
		ledger = repo
	} else {
		csv, err := attendance.NewCSVStore(cfg.AttendanceFile)
		if err != nil {
			log.Fatalf("attendance file failed: %v", err)
		}
		ledger = csv
	}

	registry, err := identity.NewRegistry(cfg.IdentityFile)
	if err != nil {
		log.Fatalf("identity registry failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	svc := attendance.NewService(ledger, cfg.Cooldown)
	face := recognizer.New(cfg.FaceServiceURL, cfg.FaceSkip)

	// Check face service health on startup
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Printf("WARNING: Face service not available: %v", err)
			log.Println("Worker will retry face processing when detections arrive")
		} else {
			log.Println("Face service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for detections...")
	for msg := range messages {
		if msg.Type != queue.TypeDetection {
			continue
		}
		det, err := queue.DecodeDetection(msg)
		if err != nil {
			log.Printf("bad detection message: %v", err)
			continue
		}
		handleDetection(ctx, det, face, registry, svc, cfg.ConfidenceThreshold)
	}

	log.Println("worker stopped")
}

// handleDetection runs one detection through recognition and the ledger.
// Confidence is a distance score, so matches above the threshold are too far
// from any enrolled face and get dropped.
func handleDetection(ctx context.Context, det queue.Detection, face *recognizer.Client, registry *identity.Registry, svc *attendance.Service, threshold float64) {
	pred, err := face.Predict(ctx, det.ImageRef)
	if err != nil {
		log.Printf("predict failed for device %s: %v", det.DeviceID, err)
		return
	}
	if pred.Confidence > threshold {
		log.Printf("detection from %s rejected: confidence %.1f above threshold %.1f", det.DeviceID, pred.Confidence, threshold)
		return
	}

	userID, name, err := registry.LookupLabel(pred.Label)
	if err != nil {
		log.Printf("no identity for label %d from %s", pred.Label, det.DeviceID)
		return
	}

	ct, err := attendance.ParseCheckType(det.CheckType)
	if err != nil {
		log.Printf("detection from %s has bad check type: %v", det.DeviceID, err)
		return
	}

	res, err := svc.Record(ctx, userID, name, ct)
	if err != nil {
		log.Printf("record failed for %s: %v", userID, err)
		return
	}
	log.Printf("recorded %s for %s (%s)", res.Outcome, userID, ct)
}
