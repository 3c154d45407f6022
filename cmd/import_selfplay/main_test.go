package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/freeeve/negotiator/internal/model"
)

func transcriptLine(t *testing.T, mutate func(*model.Transcript)) string {
	t.Helper()
	tr := model.Transcript{
		Session: model.Session{
			ID:        "3f1c1e0a-8d7e-4b8e-9a36-8a1c1a0b7c11",
			Domain:    "laptop",
			PartyA:    "buyer",
			PartyB:    "seller",
			StrategyA: "concession",
			StrategyB: "hardliner",
			Rounds:    10,
			Status:    model.StatusAgreement,
			Agreement: json.RawMessage(`{"issuevalues":{"brand":"HP"}}`),
			UtilityA:  0.4,
			UtilityB:  0.9,
		},
		Actions: []model.ActionRecord{
			{Seq: 1, Round: 1, Actor: "buyer", ActionType: "offer", Bid: json.RawMessage(`{"issuevalues":{"brand":"Dell"}}`), Utility: 1},
			{Seq: 2, Round: 1, Actor: "seller", ActionType: "offer", Bid: json.RawMessage(`{"issuevalues":{"brand":"HP"}}`), Utility: 0.9},
			{Seq: 3, Round: 2, Actor: "buyer", ActionType: "accept", Bid: json.RawMessage(`{"issuevalues":{"brand":"HP"}}`), Utility: 0.4},
		},
	}
	if mutate != nil {
		mutate(&tr)
	}
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantErr string
	}{
		{"valid", transcriptLine(t, nil), true, ""},
		{"blank", "   ", false, ""},
		{"bad json", "{", false, "bad JSON"},
		{"running", transcriptLine(t, func(tr *model.Transcript) { tr.Session.Status = model.StatusRunning }), false, "not final"},
		{"agreement missing", transcriptLine(t, func(tr *model.Transcript) { tr.Session.Agreement = nil }), false, "without agreement"},
		{"no parties", transcriptLine(t, func(tr *model.Transcript) { tr.Session.PartyB = "" }), false, "without domain or parties"},
		{"seq gap", transcriptLine(t, func(tr *model.Transcript) { tr.Actions[1].Seq = 5 }), false, "has seq 5"},
		{"stranger", transcriptLine(t, func(tr *model.Transcript) { tr.Actions[0].Actor = "mallory" }), false, "unknown party"},
		{"aborted", transcriptLine(t, func(tr *model.Transcript) {
			tr.Session.Status, tr.Session.Agreement, tr.Session.Error = model.StatusAborted, nil, "context canceled"
		}), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := parseLine(tt.line)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

type recordingRepo struct {
	created  model.Session
	finished string
	actions  []model.ActionRecord
}

func (r *recordingRepo) CreateSession(_ context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = "generated"
	}
	r.created = *s
	return nil
}

func (r *recordingRepo) FinishSession(_ context.Context, id, status string, _ json.RawMessage, _, _ float64, _ string) error {
	r.finished = id + "/" + status
	return nil
}

func (r *recordingRepo) SaveActions(_ context.Context, actions []model.ActionRecord) error {
	r.actions = append(r.actions, actions...)
	return nil
}

func (r *recordingRepo) FindByID(context.Context, string) (*model.Session, error) { return nil, nil }

func (r *recordingRepo) ListRecent(context.Context, int) ([]model.Session, error) { return nil, nil }

func (r *recordingRepo) ActionsBySession(context.Context, string) ([]model.ActionRecord, error) {
	return nil, nil
}

func TestImportTranscriptAssignsID(t *testing.T) {
	tr, ok, err := parseLine(transcriptLine(t, nil))
	if err != nil || !ok {
		t.Fatalf("parseLine: %v %v", ok, err)
	}
	tr.Session.ID = ""

	repo := &recordingRepo{}
	id, err := importTranscript(context.Background(), repo, tr)
	if err != nil {
		t.Fatalf("importTranscript: %v", err)
	}
	if id != "generated" || repo.finished != "generated/agreement" {
		t.Errorf("id %q, finished %q", id, repo.finished)
	}
	if len(repo.actions) != 3 {
		t.Fatalf("saved %d actions, want 3", len(repo.actions))
	}
	for _, a := range repo.actions {
		if a.SessionID != "generated" {
			t.Errorf("action %d linked to %q", a.Seq, a.SessionID)
		}
	}
}
