package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

type hitEvent struct {
	Path      string    `json:"path"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	baseURL      = flag.String("url", "http://localhost:8080", "Coordinator base URL")
	targetPath   = flag.String("path", "", "Secret path to hit (default: read from /status)")
	workers      = flag.Int("workers", 20, "Number of concurrent workers")
	duration     = flag.Duration("duration", 30*time.Second, "How long to fire hits")
	interval     = flag.Duration("interval", 10*time.Millisecond, "Pause between hits per worker (0 for maximum speed)")
	mismatchRate = flag.Float64("mismatch-rate", 0.05, "Share of hits sent to a wrong path (0.0-1.0)")
	brokers      = flag.String("kafka", "", "Comma separated Kafka brokers; when set, hits are published to traffic.hits instead of HTTP")
)

type stats struct {
	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
	}()

	path := *targetPath
	if path == "" {
		p, err := discoverPath(ctx, *baseURL)
		if err != nil {
			fmt.Printf("Failed to read active session: %v\n", err)
			os.Exit(1)
		}
		path = p
	}
	fmt.Printf("Target path: %s\n", path)

	source := "simulator-" + uuid.NewString()[:8]

	var send func(ctx context.Context, p string) (bool, error)
	if *brokers != "" {
		prod, err := newProducer(strings.Split(*brokers, ","))
		if err != nil {
			fmt.Printf("Failed to connect to Kafka: %v\n", err)
			os.Exit(1)
		}
		defer prod.Close()
		send = kafkaSender(prod, source)
		fmt.Printf("Publishing hits to Kafka at %s as %s\n", *brokers, source)
	} else {
		send = httpSender(*baseURL)
		fmt.Printf("Sending hits to %s\n", *baseURL)
	}

	var st stats
	start := time.Now()

	var wg sync.WaitGroup
	for range *workers {
		wg.Go(func() {
			runWorker(ctx, path, send, &st)
		})
	}

	go report(ctx, &st)

	wg.Wait()

	elapsed := time.Since(start)
	total := st.accepted.Load() + st.rejected.Load() + st.failed.Load()
	fmt.Println("\nFinal statistics:")
	fmt.Printf("   Accepted: %d\n", st.accepted.Load())
	fmt.Printf("   Rejected: %d\n", st.rejected.Load())
	fmt.Printf("   Failed:   %d\n", st.failed.Load())
	fmt.Printf("   Rate:     %.0f hits/sec over %v\n", float64(total)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
}

func runWorker(ctx context.Context, path string, send func(context.Context, string) (bool, error), st *stats) {
	for ctx.Err() == nil {
		p := path
		if rand.Float64() < *mismatchRate {
			p = "/target_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		ok, err := send(ctx, p)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			st.failed.Add(1)
		case ok:
			st.accepted.Add(1)
		default:
			st.rejected.Add(1)
		}

		if *interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(*interval):
			}
		}
	}
}

func report(ctx context.Context, st *stats) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[%s] Accepted: %d | Rejected: %d | Failed: %d\n",
				time.Now().Format("15:04:05"),
				st.accepted.Load(),
				st.rejected.Load(),
				st.failed.Load(),
			)
		}
	}
}

func discoverPath(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/status", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Path   string `json:"path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	if body.Path == "" {
		return "", fmt.Errorf("status is %q", body.Status)
	}

	return body.Path, nil
}

func httpSender(base string) func(context.Context, string) (bool, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	return func(ctx context.Context, p string) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+p, nil)
		if err != nil {
			return false, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		return resp.StatusCode == http.StatusOK, nil
	}
}

// kafkaSender cannot see the verdict, so every published hit counts as accepted.
func kafkaSender(prod sarama.SyncProducer, source string) func(context.Context, string) (bool, error) {
	return func(_ context.Context, p string) (bool, error) {
		val, err := json.Marshal(hitEvent{Path: p, Source: source, Timestamp: time.Now()})
		if err != nil {
			return false, err
		}

		_, _, err = prod.SendMessage(&sarama.ProducerMessage{
			Topic: "traffic.hits",
			Value: sarama.ByteEncoder(val),
		})

		return err == nil, err
	}
}

func newProducer(addrs []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(addrs, cfg)
}
