// Command import_selfplay reads self-play session transcripts (JSONL, as
// written by selfplay -transcripts) and imports them into Postgres.
//
// Usage:
//
//	go run ./cmd/import_selfplay/ --input sessions.jsonl --db postgres://...
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/internal/agent"
	"github.com/freeeve/negotiator/internal/logger"
	"github.com/freeeve/negotiator/internal/model"
	"github.com/freeeve/negotiator/internal/repository"
	"github.com/freeeve/negotiator/internal/repository/postgres"
)

func main() {
	logger.Init()

	inputFile := flag.String("input", "", "Path to JSONL transcript file")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	keepIDs := flag.Bool("keep-ids", false, "Keep the session IDs from the transcripts")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal().Msg("--input is required")
	}
	if *dbURL == "" {
		log.Fatal().Msg("--db or DATABASE_URL is required")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	defer db.Close()
	outcomes := postgres.NewOutcomeRepo(db)

	f, err := os.Open(*inputFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open input")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Long sessions produce long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	imported, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		t, ok, err := parseLine(scanner.Text())
		if err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("Skipping transcript")
			continue
		}
		if !ok {
			continue
		}
		if !*keepIDs {
			t.Session.ID = ""
		}

		id, err := importTranscript(ctx, outcomes, t)
		if err != nil {
			log.Error().Err(err).Int("line", lineNo).Msg("Import failed")
			continue
		}
		imported++
		log.Info().Int("line", lineNo).Str("session", id).Int("actions", len(t.Actions)).Msg("Imported session")
	}

	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}
	log.Info().Int("imported", imported).Msg("Done")
}

// parseLine decodes one transcript. Blank lines return ok=false.
func parseLine(line string) (model.Transcript, bool, error) {
	var t model.Transcript
	if strings.TrimSpace(line) == "" {
		return t, false, nil
	}
	if err := json.Unmarshal([]byte(line), &t); err != nil {
		return t, false, fmt.Errorf("bad JSON: %w", err)
	}
	if err := validate(t); err != nil {
		return t, false, err
	}
	return t, true, nil
}

func validate(t model.Transcript) error {
	s := t.Session
	switch s.Status {
	case model.StatusAgreement:
		if len(s.Agreement) == 0 || string(s.Agreement) == "null" {
			return errors.New("agreement status without agreement")
		}
	case model.StatusNoAgreement, model.StatusAborted:
	default:
		return fmt.Errorf("session status %q is not final", s.Status)
	}
	if s.Domain == "" || s.PartyA == "" || s.PartyB == "" {
		return errors.New("session without domain or parties")
	}
	for i, a := range t.Actions {
		if a.Seq != i+1 {
			return fmt.Errorf("action %d has seq %d", i, a.Seq)
		}
		if a.Actor != s.PartyA && a.Actor != s.PartyB {
			return fmt.Errorf("action %d by unknown party %q", a.Seq, a.Actor)
		}
	}
	return nil
}

// importTranscript creates the session record, then writes its actions and
// outcome. It returns the stored session ID.
func importTranscript(ctx context.Context, outcomes repository.OutcomeRepository, t model.Transcript) (string, error) {
	s := t.Session
	if err := outcomes.CreateSession(ctx, &s); err != nil {
		return "", err
	}
	t.Session.ID = s.ID
	for i := range t.Actions {
		t.Actions[i].SessionID = s.ID
	}
	if err := agent.SaveTranscript(ctx, outcomes, t); err != nil {
		return s.ID, err
	}
	return s.ID, nil
}
