// Command floor-worker consumes conversation turns from NATS, runs them
// through the matching engine, and publishes the updated session state. It
// also owns the periodic maintenance the API server stays out of: inventory
// refresh and idle-session sweeps, plus a snapshot flush for sessions whose
// store writes failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/floor"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
	"github.com/ShowfloorAI/showfloor-mvp/engine/recommend"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/fn"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/metrics"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/natsutil"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/sessionstore"
)

const (
	// TurnsSubject carries JSON-encoded domain.Turn payloads.
	TurnsSubject = "floor.turns"
	// DLQSubject is where turns land after retries run out.
	DLQSubject = "floor.turns.dlq"
	// StateSubject carries the session state published after each turn.
	StateSubject = "floor.state.updated"
	// RebuildSubject tells every worker to reload its inventory index.
	RebuildSubject = "floor.rebuild"
	// MaxRetries before a failing turn is parked on the DLQ.
	MaxRetries = 3
)

var met = metrics.New()

var (
	mTurns     = met.Counter("showfloor_worker_turns_total", "Turns consumed and applied")
	mErrors    = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("showfloor_worker_errors_total", "stage", stage), "Worker errors by stage") }
	mRetries   = met.Counter("showfloor_worker_retries_total", "Turns republished for retry")
	mDead      = met.Counter("showfloor_worker_dead_turns_total", "Turns parked on the DLQ")
	mRefreshes = met.Counter("showfloor_worker_inventory_refreshes_total", "Inventory refreshes applied")
	mFlushes   = met.Counter("showfloor_worker_snapshot_flushes_total", "Session snapshots flushed to the store")
	mTurnDur   = met.Histogram("showfloor_worker_turn_duration_seconds", "Per-turn processing time", nil)
)

func main() {
	var (
		natsURL      = flag.String("nats", nats.DefaultURL, "NATS server URL")
		queue        = flag.String("queue", "floor-workers", "queue group for the turns consumer")
		invFile      = flag.String("inventory", "data/inventory.json", "inventory feed file")
		redisAddr    = flag.String("redis", "", "Redis address for session snapshots (empty keeps them in memory)")
		redisPass    = flag.String("redis-pass", "", "Redis password")
		redisDB      = flag.Int("redis-db", 0, "Redis database")
		sessionTTL   = flag.Duration("session-ttl", 720*time.Hour, "snapshot TTL in Redis")
		refresh      = flag.Duration("refresh", 5*time.Minute, "inventory refresh interval")
		sweepEvery   = flag.Duration("sweep-every", 15*time.Minute, "idle session sweep interval")
		idleAfter    = flag.Duration("idle-after", 2*time.Hour, "idle age before a session is reaped")
		persistEvery = flag.Duration("persist-every", time.Minute, "dirty session snapshot flush interval")
		metricsPort  = flag.Int("metrics-port", 9092, "metrics listen port")
	)
	flag.Parse()

	stopRuntime := met.StartRuntimeCollector(15 * time.Second)
	defer stopRuntime()
	met.ServeAsync(*metricsPort)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Session snapshot store
	var store sessionstore.Store
	if *redisAddr != "" {
		rs, err := sessionstore.NewRedis(ctx, *redisAddr, *redisPass, *redisDB, *sessionTTL)
		if err != nil {
			log.Error("redis connect failed", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		store = rs
		log.Info("session snapshots in redis", "addr", *redisAddr)
	}

	// Engine
	svc := floor.New(floor.Deps{
		States:    convstate.NewManager(store, log),
		Retriever: retrieve.New(retrieve.Weights{}, log),
		Recommend: recommend.New(recommend.Weights{}, log),
		Source:    inventory.NewFileSource(*invFile, log),
		Metrics:   met,
		Logger:    log,
	}, floor.DefaultOptions())

	if err := svc.Rebuild(ctx); err != nil {
		log.Warn("initial inventory load failed, waiting for the refresh ticker", "file", *invFile, "error", err)
	} else {
		log.Info("inventory index ready", "vehicles", svc.VehicleCount())
	}

	// Connect NATS, retrying while the broker comes up.
	nc, err := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Second,
		MaxWait:     15 * time.Second,
		Jitter:      true,
	}, func(context.Context) fn.Result[*nats.Conn] {
		return fn.FromPair(nats.Connect(*natsURL))
	}).Unwrap()
	if err != nil {
		log.Error("nats connect failed", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Drain()
	log.Info("connected to NATS", "url", *natsURL)

	if _, err := startTurnsConsumer(nc, svc, *queue, log); err != nil {
		log.Error("turns subscribe failed", "error", err)
		os.Exit(1)
	}

	// Every worker holds its own index, so rebuild signals fan out to all of
	// them rather than through the queue group.
	if _, err := natsutil.Subscribe(nc, RebuildSubject, func(ctx context.Context, sig rebuildSignal) {
		if err := svc.Rebuild(ctx); err != nil {
			mErrors("rebuild").Inc()
			log.Error("rebuild on signal failed", "reason", sig.Reason, "error", err)
			return
		}
		mRefreshes.Inc()
		log.Info("index rebuilt on signal", "reason", sig.Reason, "vehicles", svc.VehicleCount())
	}); err != nil {
		log.Error("rebuild subscribe failed", "error", err)
		os.Exit(1)
	}

	// Core NATS keeps nothing, so one worker in the group writes each dead
	// turn to its log to give the DLQ a durable trace.
	if _, err := natsutil.QueueSubscribe(nc, DLQSubject, "floor-dlq-watch", func(_ context.Context, d deadTurn) {
		log.Warn("dead turn parked", "session_id", d.Turn.SessionID, "error", d.Error, "retries", d.Retries)
	}); err != nil {
		log.Error("dlq subscribe failed", "error", err)
		os.Exit(1)
	}

	log.Info("worker running",
		"queue", *queue,
		"refresh", *refresh,
		"sweep_every", *sweepEvery,
		"idle_after", *idleAfter,
		"persist_every", *persistEvery,
	)

	refreshTick := time.NewTicker(*refresh)
	defer refreshTick.Stop()
	sweepTick := time.NewTicker(*sweepEvery)
	defer sweepTick.Stop()
	persistTick := time.NewTicker(*persistEvery)
	defer persistTick.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-refreshTick.C:
			if err := svc.Rebuild(ctx); err != nil {
				mErrors("rebuild").Inc()
				log.Error("inventory refresh failed", "error", err)
			} else {
				mRefreshes.Inc()
			}
		case <-sweepTick.C:
			svc.SweepIdle(*idleAfter)
		case <-persistTick.C:
			if n := svc.FlushSessions(ctx); n > 0 {
				mFlushes.Add(int64(n))
			}
		}
	}
}

// deadTurn is published to the DLQ when retries run out.
type deadTurn struct {
	Turn    domain.Turn `json:"turn"`
	Error   string      `json:"error"`
	Retries int         `json:"retries"`
}

// stateEvent is published after every applied turn.
type stateEvent struct {
	SessionID string                 `json:"session_id"`
	State     *convstate.State       `json:"state"`
	Matches   []domain.ScoredVehicle `json:"matches,omitempty"`
}

// rebuildSignal asks workers to reload their inventory index.
type rebuildSignal struct {
	Reason string `json:"reason,omitempty"`
}

// startTurnsConsumer subscribes to the turns subject with retry and DLQ
// support. A failed turn never touches session state, so republishing it is
// safe; after MaxRetries it parks on the DLQ instead.
func startTurnsConsumer(nc *nats.Conn, svc *floor.Service, queue string, log *slog.Logger) (*nats.Subscription, error) {
	return nc.QueueSubscribe(TurnsSubject, queue, func(msg *nats.Msg) {
		var turn domain.Turn
		if err := json.Unmarshal(msg.Data, &turn); err != nil {
			mErrors("decode").Inc()
			log.Error("worker: turn unmarshal failed", "error", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ctx := context.Background()
		start := time.Now()
		res, err := svc.ProcessTurn(ctx, turn)
		mTurnDur.Since(start)
		if err != nil {
			retries++
			mErrors("process").Inc()
			log.Error("worker: turn failed",
				"error", err,
				"session_id", turn.SessionID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dead := deadTurn{Turn: turn, Error: err.Error(), Retries: retries}
				if perr := natsutil.Publish(ctx, nc, DLQSubject, dead); perr != nil {
					log.Error("worker: dlq publish failed", "error", perr)
				}
				mDead.Inc()
			} else {
				retryMsg := nats.NewMsg(TurnsSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if perr := nc.PublishMsg(retryMsg); perr != nil {
					log.Error("worker: retry publish failed", "error", perr)
				}
				mRetries.Inc()
			}

			if msg.Reply != "" {
				_ = msg.Ack()
			}
			return
		}

		evt := stateEvent{SessionID: res.State.SessionID, State: res.State, Matches: res.Matches}
		if err := natsutil.Publish(ctx, nc, StateSubject, evt); err != nil {
			mErrors("publish").Inc()
			log.Error("worker: state publish failed", "error", err, "session_id", evt.SessionID)
		}
		mTurns.Inc()
		log.Info("worker: turn applied", "session_id", evt.SessionID, "matches", len(res.Matches))

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
