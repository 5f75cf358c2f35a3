package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/klapi/internal/client"
	"github.com/okian/klapi/pkg/logger"
)

// Run generates a season from cfg, writes it through the admin API and
// verifies the published standings.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	log := logger.Named("simulate")
	log.Info(ctx, "starting league simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("events", cfg.Events),
		logger.Int("workers", cfg.Workers),
		logger.Uint64("seed", cfg.Seed))

	c := client.New(cfg.BaseURL, client.WithCredentials(cfg.User, cfg.Password), client.WithTimeout(cfg.Timeout))

	if err := c.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	season, err := Generate(cfg)
	if err != nil {
		return stats, fmt.Errorf("season generation failed: %w", err)
	}

	var added, duplicate, recorded, failed atomic.Int64
	fanOut(ctx, cfg.Workers, len(season.Players), func(i int) {
		p := season.Players[i]
		_, err := c.AddPlayer(ctx, p.Name, p.Bio)
		var apiErr *client.APIError
		switch {
		case err == nil:
			added.Add(1)
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
			duplicate.Add(1)
		default:
			failed.Add(1)
			log.Warn(ctx, "add player failed", logger.String("name", p.Name), logger.Error(err))
		}
	})
	fanOut(ctx, cfg.Workers, len(season.Events), func(i int) {
		e := season.Events[i]
		if _, err := c.RecordResults(ctx, e.Date, e.Rounds); err != nil {
			failed.Add(1)
			log.Warn(ctx, "record results failed", logger.String("date", e.Date.String()), logger.Error(err))
			return
		}
		recorded.Add(1)
	})
	stats.PlayersAdded = int(added.Load())
	stats.PlayersDuplicate = int(duplicate.Load())
	stats.EventsRecorded = int(recorded.Load())
	stats.Failed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	checked, err := Verify(ctx, c)
	stats.Checked = checked
	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "simulation finished",
		logger.Int("playersAdded", stats.PlayersAdded),
		logger.Int("playersDuplicate", stats.PlayersDuplicate),
		logger.Int("eventsRecorded", stats.EventsRecorded),
		logger.Int("failed", stats.Failed),
		logger.Int("rowsChecked", stats.Checked),
		logger.Duration("duration", stats.Duration))
	if err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	return stats, nil
}

// fanOut calls fn for every index in [0, n) from up to workers goroutines.
func fanOut(ctx context.Context, workers, n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers = max(1, min(workers, n))
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()
}
