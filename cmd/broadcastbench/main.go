package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform/platformtest"
	"github.com/d60-Lab/relay-bot/internal/repository"
	"github.com/d60-Lab/relay-bot/internal/service"
)

// broadcastbench compares sequential and concurrent broadcast fan-out against
// a fake platform with fixed per-send latency.
func main() {
	USERS := envInt("USERS", 500)
	REPEAT := envInt("REPEAT", 5)
	WORKERS := envInt("WORKERS", 16)
	LATENCY := time.Duration(envInt("LATENCY_MS", 5)) * time.Millisecond

	dir, err := os.MkdirTemp("", "broadcastbench")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "users.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		panic(err)
	}
	if err := repository.Migrate(db); err != nil {
		panic(err)
	}
	users := repository.NewUserRepository(db)

	ctx := context.Background()
	seed := make([]model.User, USERS)
	for i := range seed {
		seed[i] = model.User{ID: int64(i + 1), FirstName: fmt.Sprintf("u%04d", i+1)}
	}
	if err := db.CreateInBatches(&seed, 500).Error; err != nil {
		panic(err)
	}

	client := platformtest.New()
	client.Latency = LATENCY
	// 每 50 个用户有一个拉黑了机器人
	for i := 50; i <= USERS; i += 50 {
		client.FailSendTo(int64(i), platformtest.ErrBlocked)
	}

	run := func(workers int) ([]time.Duration, model.BroadcastSummary) {
		svc := service.NewBroadcastService(client, users, service.BroadcastOptions{OperatorID: 1, Workers: workers, CallTimeout: time.Second})
		out := make([]time.Duration, 0, REPEAT)
		var last model.BroadcastSummary
		for i := 0; i < REPEAT; i++ {
			st := time.Now()
			s, err := svc.Broadcast(ctx, "bench", 1)
			if err != nil {
				panic(err)
			}
			out = append(out, time.Since(st))
			last = s
		}
		return out, last
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}
	avg := func(vs []time.Duration) time.Duration {
		var sum time.Duration
		for _, d := range vs {
			sum += d
		}
		return sum / time.Duration(len(vs))
	}

	seq, s1 := run(1)
	par, s2 := run(WORKERS)
	fmt.Printf("USERS=%d REPEAT=%d LATENCY=%v\n", USERS, REPEAT, LATENCY)
	fmt.Printf("Sequential: avg=%v p95=%v delivered=%d/%d\n", avg(seq), pct(seq, 0.95), s1.Delivered, s1.Attempted)
	fmt.Printf("Workers=%d: avg=%v p95=%v delivered=%d/%d\n", WORKERS, avg(par), pct(par, 0.95), s2.Delivered, s2.Attempted)
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			return v
		}
	}
	return def
}
