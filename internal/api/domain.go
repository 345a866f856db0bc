package api

import (
	"context"

	"github.com/JaimeStill/lectern/internal/callbacks"
	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/orchestrator"
	"github.com/JaimeStill/lectern/internal/reconciler"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Records      records.Store
	Executions   executions.System
	Callbacks    callbacks.Bridge
	Orchestrator *orchestrator.Orchestrator
	Reconciler   *reconciler.Reconciler
	Workflows    workflows.System
	Validator    *events.Validator
}

// NewDomain creates all domain systems from the API runtime and subscribes
// them to the event bus. Subscriptions must precede Infrastructure.Start.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()
	dialect := runtime.Database.Dialect()
	lc := runtime.Lifecycle
	svc := &runtime.Services

	validator, err := events.NewValidator()
	if err != nil {
		return nil, err
	}

	store := records.New(db, dialect, runtime.Logger)

	extraction := services.NewExtraction(&svc.Extraction, runtime.HTTPClient, runtime.Logger)

	bridge := callbacks.New(
		db,
		dialect,
		extraction,
		svc.Extraction.Retry(),
		runtime.Logger,
	)

	execs := executions.New(
		db,
		dialect,
		runtime.Events,
		runtime.Logger,
		executions.WithReaper(bridge),
	)

	settings := runtime.Workflow.Settings()
	runner := orchestrator.NewRunner(lc.Context(), settings.MaxConcurrent, runtime.Logger)

	orch := orchestrator.New(
		&orchestrator.Runtime{
			Extractor:  extraction,
			Formatter:  services.NewFormatter(&svc.Formatter, runtime.HTTPClient, runtime.Logger),
			Translator: services.NewTranslator(&svc.Translator, runtime.HTTPClient, runtime.Logger),
			Speech:     services.NewSpeech(&svc.Speech, runtime.HTTPClient, runtime.Logger),
			Storage:    runtime.Storage,
			Suspender:  bridge,
			Records:    store,
			Executions: execs,
			Logger:     runtime.Logger,
		},
		settings,
		runner,
	)
	bridge.Bind(orch)

	rec := reconciler.New(store, runtime.Logger)

	runtime.Events.Subscribe(events.TopicTerminal, rec.HandlePayload)
	runtime.Events.Subscribe(events.TopicArtifacts, bridge.HandleSignal)

	interval := runtime.Workflow.WatchdogIntervalDuration()
	lc.Go(func(ctx context.Context) {
		execs.Watchdog(ctx, interval)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		runner.Wait()
	})

	wf := workflows.New(
		store,
		execs,
		orch,
		runtime.Storage,
		runtime.Pagination,
		runtime.Logger,
	)

	return &Domain{
		Records:      store,
		Executions:   execs,
		Callbacks:    bridge,
		Orchestrator: orch,
		Reconciler:   rec,
		Workflows:    wf,
		Validator:    validator,
	}, nil
}
