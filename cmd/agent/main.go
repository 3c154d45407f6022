package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/internal/agent"
	"github.com/freeeve/negotiator/internal/auth"
	"github.com/freeeve/negotiator/internal/config"
	"github.com/freeeve/negotiator/internal/logger"
	"github.com/freeeve/negotiator/internal/repository/redis"
	"github.com/freeeve/negotiator/internal/session"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	token := cfg.PartyToken
	if token == "" {
		token, err = auth.NewTokenManager(cfg.TokenSecret).IssueToken(cfg.PartyID, "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue party token")
		}
	}

	client := session.NewClient(cfg.HostURL, token)
	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Str("host", cfg.HostURL).Msg("Failed to connect to session host")
	}
	defer client.Close()

	runner := session.NewRunner(client, cfg.AgentSettings(), agent.NewRand(cfg.Seed))
	if cfg.RedisURL != "" {
		cache, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without snapshot cache")
		} else {
			defer cache.Close()
			runner.SetCache(cache)
		}
	}

	log.Info().Str("party", cfg.PartyID).Str("strategy", cfg.Strategy).Str("host", cfg.HostURL).Msg("Agent starting")
	out, err := runner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Session failed")
	}

	logOutcome(ctx, out)
}

// logOutcome reports a finished session on the session logger.
func logOutcome(ctx context.Context, out *session.Outcome) {
	sessionLog := logger.ForSession(logger.WithSessionID(ctx, out.SessionID))
	ev := sessionLog.Info().
		Str("party", string(out.Party)).
		Str("reason", out.Reason).
		Int("turns", out.Turns)
	if !out.Agreement.IsZero() {
		ev = ev.Stringer("agreement", out.Agreement).Float64("utility", out.Utility)
	}
	ev.Msg("Session completed")
}
