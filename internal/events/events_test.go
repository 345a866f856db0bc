package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/schema/schematest"
	"github.com/JaimeStill/lectern/pkg/database"
)

func validator(t *testing.T) *events.Validator {
	t.Helper()
	v, err := events.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	return v
}

func TestValidate(t *testing.T) {
	v := validator(t)

	tests := []struct {
		name    string
		topic   string
		payload string
		valid   bool
	}{
		{"terminal", events.TopicTerminal, `{"executionId":"e1","status":"TIMED_OUT","input":{"userId":"u1"}}`, true},
		{"terminal with cause", events.TopicTerminal, `{"executionId":"e1","status":"ABORTED","input":null,"cause":"operator"}`, true},
		{"terminal missing input", events.TopicTerminal, `{"executionId":"e1","status":"ABORTED"}`, false},
		{"terminal empty execution", events.TopicTerminal, `{"executionId":"","status":"ABORTED","input":{}}`, false},
		{"artifact succeeded", events.TopicArtifacts, `{"jobId":"j1","status":"SUCCEEDED","outputRef":"out/j1.txt"}`, true},
		{"artifact succeeded without output", events.TopicArtifacts, `{"jobId":"j1","status":"SUCCEEDED"}`, false},
		{"artifact failed", events.TopicArtifacts, `{"jobId":"j1","status":"FAILED","error":"ocr crashed"}`, true},
		{"artifact unknown status", events.TopicArtifacts, `{"jobId":"j1","status":"RUNNING"}`, false},
		{"malformed", events.TopicArtifacts, `{"jobId":`, false},
		{"unregistered topic", "other", `{"anything":1}`, true},
		{"unregistered topic malformed", "other", `nope`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.topic, []byte(tt.payload))
			if tt.valid && err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Error("Validate = nil, want error")
			}
		})
	}
}

func TestLocalBus(t *testing.T) {
	bus := events.NewLocal(validator(t), schematest.Logger())
	ctx := context.Background()

	var order []string
	var got events.ArtifactSignal
	bus.Subscribe(events.TopicArtifacts, func(_ context.Context, payload []byte) {
		order = append(order, "first")
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
	})
	bus.Subscribe(events.TopicArtifacts, func(context.Context, []byte) {
		order = append(order, "second")
	})

	if err := bus.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	signal := events.ArtifactSignal{JobID: "j1", Status: events.ArtifactSucceeded, OutputRef: "out/j1.txt"}
	if err := bus.Publish(ctx, events.TopicArtifacts, signal); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v", order)
	}
	if got != signal {
		t.Errorf("delivered = %+v, want %+v", got, signal)
	}

	if err := bus.Publish(ctx, events.TopicArtifacts, []byte(`{"jobId":"j2","status":"SUCCEEDED"}`)); err != nil {
		t.Fatalf("publish raw: %v", err)
	}
	if len(order) != 2 {
		t.Error("invalid envelope was delivered")
	}

	if err := bus.Publish(ctx, events.TopicTerminal, events.TerminalEvent{
		ExecutionID: "e1",
		Status:      "ABORTED",
		Input:       json.RawMessage(`{}`),
	}); err != nil {
		t.Errorf("publish without subscribers: %v", err)
	}

	if err := bus.Publish(ctx, events.TopicArtifacts, make(chan int)); err == nil {
		t.Error("expected encode error")
	}
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &events.Config{}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if cfg.Provider != events.ProviderLocal || cfg.ReconnectDelayDuration() != 2*time.Second {
			t.Errorf("defaults = %+v", cfg)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_EVENTS_PROVIDER", "postgres")
		t.Setenv("TEST_EVENTS_RECONNECT_DELAY", "500ms")

		cfg := &events.Config{}
		err := cfg.Finalize(&events.Env{Provider: "TEST_EVENTS_PROVIDER", ReconnectDelay: "TEST_EVENTS_RECONNECT_DELAY"})
		if err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if cfg.Provider != events.ProviderPostgres || cfg.ReconnectDelayDuration() != 500*time.Millisecond {
			t.Errorf("config = %+v", cfg)
		}
	})

	t.Run("merge", func(t *testing.T) {
		cfg := &events.Config{Provider: events.ProviderLocal, ReconnectDelay: "2s"}
		cfg.Merge(&events.Config{Provider: events.ProviderPostgres})
		if cfg.Provider != events.ProviderPostgres || cfg.ReconnectDelay != "2s" {
			t.Errorf("merged = %+v", cfg)
		}
	})

	for _, bad := range []events.Config{
		{Provider: "kafka"},
		{Provider: events.ProviderLocal, ReconnectDelay: "soon"},
	} {
		t.Run("rejects "+bad.Provider+bad.ReconnectDelay, func(t *testing.T) {
			if err := bad.Finalize(nil); err == nil {
				t.Errorf("Finalize(%+v) = nil, want error", bad)
			}
		})
	}
}

func TestNew(t *testing.T) {
	db := schematest.Open(t)

	local, err := events.New(&events.Config{Provider: events.ProviderLocal}, db, schematest.Logger())
	if err != nil || local == nil {
		t.Fatalf("local bus: %v", err)
	}

	_, err = events.New(&events.Config{Provider: events.ProviderPostgres}, db, schematest.Logger())
	if !errors.Is(err, database.ErrNoPool) {
		t.Errorf("postgres bus on sqlite = %v, want ErrNoPool", err)
	}
}
