package orchestrator_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/lectern/internal/callbacks"
	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/orchestrator"
	"github.com/JaimeStill/lectern/internal/reconciler"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/schema/schematest"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/storage"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractSync(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeTransformer struct {
	fn func(text string, params services.TransformParams) (string, error)
}

func (f *fakeTransformer) Transform(_ context.Context, text string, params services.TransformParams) (string, error) {
	return f.fn(text, params)
}

type fakeSpeech struct {
	mu    sync.Mutex
	text  string
	voice services.VoiceParams
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string, voice services.VoiceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.voice = text, voice
	return "audio/narration.mp3", nil
}

type fakeSubmitter struct {
	jobID string
	calls int
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.jobID, nil
}

type harness struct {
	store     records.Store
	execs     executions.System
	bridge    callbacks.Bridge
	blobs     storage.System
	runner    *orchestrator.Runner
	orch      *orchestrator.Orchestrator
	extractor *fakeExtractor
	formatter *fakeTransformer
	speech    *fakeSpeech
	submitter *fakeSubmitter
}

func newHarness(t *testing.T, syncSizeLimit int64) *harness {
	t.Helper()

	logger := schematest.Logger()
	db := schematest.Open(t)
	conn, dialect := db.Connection(), db.Dialect()

	validator, err := events.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	bus := events.NewLocal(validator, logger)

	h := &harness{
		store:     records.New(conn, dialect, logger),
		blobs:     storage.NewLocal(t.TempDir(), logger),
		extractor: &fakeExtractor{text: "raw text"},
		formatter: &fakeTransformer{fn: func(text string, _ services.TransformParams) (string, error) {
			return strings.ToUpper(text), nil
		}},
		speech:    &fakeSpeech{},
		submitter: &fakeSubmitter{jobID: "job-1"},
	}

	h.bridge = callbacks.New(conn, dialect, h.submitter, services.RetryPolicy{Attempts: 1}, logger)
	h.execs = executions.New(conn, dialect, bus, logger, executions.WithReaper(h.bridge))
	bus.Subscribe(events.TopicTerminal, reconciler.New(h.store, logger).HandlePayload)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.runner = orchestrator.NewRunner(ctx, 4, logger)

	rt := &orchestrator.Runtime{
		Extractor: h.extractor,
		Formatter: h.formatter,
		Translator: &fakeTransformer{fn: func(text string, params services.TransformParams) (string, error) {
			return params.TargetLanguage + ":" + text, nil
		}},
		Speech:     h.speech,
		Storage:    h.blobs,
		Suspender:  h.bridge,
		Records:    h.store,
		Executions: h.execs,
		Logger:     logger,
	}
	h.orch = orchestrator.New(rt, orchestrator.Settings{
		ExecutionTimeout: time.Hour,
		TokenTTL:         time.Hour,
		MaxConcurrent:    4,
		SyncPageLimit:    2,
		SyncSizeLimit:    syncSizeLimit,
		Voice:            "narrator",
	}, h.runner)
	h.bridge.Bind(h.orch)

	return h
}

// launch registers a workflow with the given input document and runs it
// until it finishes or suspends.
func (h *harness) launch(t *testing.T, workflowID string, params records.Parameters, input string) *executions.Execution {
	t.Helper()
	ctx := context.Background()

	key := "uploads/u1/" + workflowID + "/input.txt"
	if _, err := h.blobs.Put(ctx, key, strings.NewReader(input), "text/plain"); err != nil {
		t.Fatalf("put input: %v", err)
	}

	if _, err := h.store.Create(ctx, records.CreateCommand{
		UserID:       "u1",
		WorkflowID:   workflowID,
		Parameters:   params,
		OriginalFile: key,
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}

	exec, err := h.orch.Launch(ctx, orchestrator.RunInput{
		UserID:     "u1",
		WorkflowID: workflowID,
		InputRef:   key,
		Parameters: params,
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	h.runner.Wait()
	return exec
}

func (h *harness) record(t *testing.T, workflowID string) *records.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), "u1", workflowID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

func (h *harness) text(t *testing.T, ref string) string {
	t.Helper()
	data, err := storage.ReadAll(context.Background(), h.blobs, ref)
	if err != nil {
		t.Fatalf("read %s: %v", ref, err)
	}
	return string(data)
}

func statuses(rec *records.Record) []records.Status {
	out := make([]records.Status, len(rec.StatusHistory))
	for i, e := range rec.StatusHistory {
		out[i] = e.Status
	}
	return out
}

func TestSuccessPaths(t *testing.T) {
	prefix := []records.Status{
		records.StatusStarting,
		records.StatusExtractingText,
		records.StatusFormattingText,
	}

	tests := []struct {
		name      string
		params    records.Parameters
		tail      []records.Status
		artifacts []string
		absent    []string
	}{
		{
			name:      "format only",
			params:    records.Parameters{},
			tail:      []records.Status{records.StatusSucceeded},
			artifacts: []string{records.ArtifactOriginalFile, records.ArtifactExtractedText, records.ArtifactFormattedText},
			absent:    []string{records.ArtifactTranslatedText, records.ArtifactAudioFile},
		},
		{
			name:   "translate",
			params: records.Parameters{Translate: true, TargetLanguage: "fr"},
			tail: []records.Status{
				records.StatusTextFormattingComplete,
				records.StatusTranslating,
				records.StatusSucceeded,
			},
			artifacts: []string{records.ArtifactFormattedText, records.ArtifactTranslatedText},
			absent:    []string{records.ArtifactAudioFile},
		},
		{
			name:   "speech",
			params: records.Parameters{Speech: true},
			tail: []records.Status{
				records.StatusTextFormattingComplete,
				records.StatusConvertingToSpeech,
				records.StatusSucceeded,
			},
			artifacts: []string{records.ArtifactFormattedText, records.ArtifactAudioFile},
			absent:    []string{records.ArtifactTranslatedText},
		},
		{
			name:   "translate and speech",
			params: records.Parameters{Translate: true, Speech: true, TargetLanguage: "de"},
			tail: []records.Status{
				records.StatusTextFormattingComplete,
				records.StatusTranslating,
				records.StatusTranslationComplete,
				records.StatusConvertingToSpeech,
				records.StatusSucceeded,
			},
			artifacts: []string{records.ArtifactFormattedText, records.ArtifactTranslatedText, records.ArtifactAudioFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1024)
			exec := h.launch(t, "wf-1", tt.params, "hello")

			rec := h.record(t, "wf-1")
			want := append(slices.Clone(prefix), tt.tail...)
			if got := statuses(rec); !slices.Equal(got, want) {
				t.Errorf("history = %v, want %v", got, want)
			}
			if rec.Status != records.StatusSucceeded {
				t.Errorf("status = %s, want SUCCEEDED", rec.Status)
			}
			for _, name := range tt.artifacts {
				if _, ok := rec.ArtifactPaths[name]; !ok {
					t.Errorf("artifactPaths missing %s: %v", name, rec.ArtifactPaths)
				}
			}
			for _, name := range tt.absent {
				if _, ok := rec.ArtifactPaths[name]; ok {
					t.Errorf("artifactPaths has unexpected %s", name)
				}
			}

			got, err := h.execs.Get(context.Background(), exec.ID)
			if err != nil {
				t.Fatalf("get execution: %v", err)
			}
			if got.Status != executions.StatusSucceeded {
				t.Errorf("execution status = %s, want SUCCEEDED", got.Status)
			}
		})
	}
}

func TestTranslateEndToEnd(t *testing.T) {
	h := newHarness(t, 1024)
	h.launch(t, "wf-fr", records.Parameters{Translate: true, TargetLanguage: "fr"}, "bonjour")

	rec := h.record(t, "wf-fr")
	if rec.Status != records.StatusSucceeded {
		t.Fatalf("status = %s, want SUCCEEDED", rec.Status)
	}
	if rec.ArtifactPaths[records.ArtifactOriginalFile] != "uploads/u1/wf-fr/input.txt" {
		t.Errorf("originalFile = %q", rec.ArtifactPaths[records.ArtifactOriginalFile])
	}
	if got := h.text(t, rec.ArtifactPaths[records.ArtifactFormattedText]); got != "RAW TEXT" {
		t.Errorf("formatted text = %q, want RAW TEXT", got)
	}
	if got := h.text(t, rec.ArtifactPaths[records.ArtifactTranslatedText]); got != "fr:RAW TEXT" {
		t.Errorf("translated text = %q, want fr:RAW TEXT", got)
	}
	if _, ok := rec.ArtifactPaths[records.ArtifactAudioFile]; ok {
		t.Error("audioFile present without speech")
	}
}

func TestSpeechNarratesTranslation(t *testing.T) {
	h := newHarness(t, 1024)
	h.launch(t, "wf-1", records.Parameters{Translate: true, Speech: true, TargetLanguage: "es"}, "hola")

	if h.speech.text != "es:RAW TEXT" {
		t.Errorf("narrated text = %q, want translation", h.speech.text)
	}
	want := services.VoiceParams{Voice: "narrator", LanguageCode: "es"}
	if h.speech.voice != want {
		t.Errorf("voice = %+v, want %+v", h.speech.voice, want)
	}
}

func TestStepFailure(t *testing.T) {
	h := newHarness(t, 1024)
	h.formatter.fn = func(string, services.TransformParams) (string, error) {
		return "", faults.External(services.ServiceFormatter, errors.New("model overloaded"))
	}

	exec := h.launch(t, "wf-1", records.Parameters{Speech: true}, "hello")

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusFailed {
		t.Fatalf("status = %s, want FAILED", rec.Status)
	}
	if rec.Error == nil || rec.Error.Error != faults.KindExternalService {
		t.Errorf("error = %+v, want %s", rec.Error, faults.KindExternalService)
	}
	if !strings.Contains(rec.Error.Cause, "model overloaded") {
		t.Errorf("cause = %q", rec.Error.Cause)
	}
	if _, ok := rec.ArtifactPaths[records.ArtifactExtractedText]; !ok {
		t.Error("artifacts produced before the failure were dropped")
	}

	got, err := h.execs.Get(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Status != executions.StatusFailed {
		t.Errorf("execution status = %s, want FAILED", got.Status)
	}
}

func TestMissingInputFails(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := context.Background()

	if _, err := h.store.Create(ctx, records.CreateCommand{
		UserID:       "u1",
		WorkflowID:   "wf-1",
		OriginalFile: "uploads/u1/wf-1/missing.txt",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.orch.Launch(ctx, orchestrator.RunInput{
		UserID:     "u1",
		WorkflowID: "wf-1",
		InputRef:   "uploads/u1/wf-1/missing.txt",
	}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	h.runner.Wait()

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusFailed || rec.Error == nil || rec.Error.Error != faults.KindStorage {
		t.Errorf("record = %s %+v, want FAILED StorageError", rec.Status, rec.Error)
	}
}

func TestSuspendAndResume(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	h.launch(t, "wf-1", records.Parameters{}, "a document too large for sync extraction")

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusExtractingText {
		t.Fatalf("suspended status = %s, want EXTRACTING_TEXT", rec.Status)
	}
	if h.extractor.calls != 0 {
		t.Errorf("sync extraction called %d times for a large input", h.extractor.calls)
	}
	if h.submitter.calls != 1 {
		t.Errorf("submit called %d times, want 1", h.submitter.calls)
	}

	out, err := h.blobs.Put(ctx, "jobs/job-1/output.txt", strings.NewReader("async text"), "text/plain")
	if err != nil {
		t.Fatalf("put job output: %v", err)
	}

	if err := h.bridge.Resume(ctx, "job-1", callbacks.Outcome{Succeeded: true, OutputRef: out}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.runner.Wait()

	rec = h.record(t, "wf-1")
	want := []records.Status{
		records.StatusStarting,
		records.StatusExtractingText,
		records.StatusFormattingText,
		records.StatusSucceeded,
	}
	if got := statuses(rec); !slices.Equal(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
	if rec.ArtifactPaths[records.ArtifactExtractedText] != out {
		t.Errorf("extractedText = %q, want %q", rec.ArtifactPaths[records.ArtifactExtractedText], out)
	}
	if got := h.text(t, rec.ArtifactPaths[records.ArtifactFormattedText]); got != "ASYNC TEXT" {
		t.Errorf("formatted text = %q, want ASYNC TEXT", got)
	}

	// Redelivery finds no token and changes nothing.
	if err := h.bridge.Resume(ctx, "job-1", callbacks.Outcome{Succeeded: true, OutputRef: out}); err != nil {
		t.Fatalf("duplicate resume: %v", err)
	}
	h.runner.Wait()

	if got := len(h.record(t, "wf-1").StatusHistory); got != len(want) {
		t.Errorf("history length after redelivery = %d, want %d", got, len(want))
	}
}

func TestUnreadablePDFUsesAsyncExtraction(t *testing.T) {
	h := newHarness(t, 1<<20)
	h.launch(t, "wf-1", records.Parameters{}, "%PDF-1.7 not really a pdf")

	if h.submitter.calls != 1 || h.extractor.calls != 0 {
		t.Errorf("submit calls = %d, sync calls = %d, want async extraction", h.submitter.calls, h.extractor.calls)
	}
	if rec := h.record(t, "wf-1"); rec.Status != records.StatusExtractingText {
		t.Errorf("status = %s, want EXTRACTING_TEXT", rec.Status)
	}
}

func TestOversizedPDFUsesAsyncExtraction(t *testing.T) {
	h := newHarness(t, 16)
	h.launch(t, "wf-1", records.Parameters{}, "%PDF-1.7 "+strings.Repeat("x", 64))

	if h.submitter.calls != 1 || h.extractor.calls != 0 {
		t.Errorf("submit calls = %d, sync calls = %d, want async extraction", h.submitter.calls, h.extractor.calls)
	}
}

func TestEmptyExtractionFails(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", " \n\t "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1024)
			h.extractor.text = tt.text

			h.launch(t, "wf-1", records.Parameters{Speech: true}, "scanned page")

			rec := h.record(t, "wf-1")
			want := []records.Status{
				records.StatusStarting,
				records.StatusExtractingText,
				records.StatusFailed,
			}
			if got := statuses(rec); !slices.Equal(got, want) {
				t.Errorf("history = %v, want %v", got, want)
			}
			if rec.Error == nil || rec.Error.Error != faults.KindProcessing {
				t.Errorf("error = %+v, want %s", rec.Error, faults.KindProcessing)
			}
			if _, ok := rec.ArtifactPaths[records.ArtifactFormattedText]; ok {
				t.Error("formatter ran on empty text")
			}
		})
	}
}

func TestResumeWithEmptyOutputFails(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	h.launch(t, "wf-1", records.Parameters{}, "large input document")

	out, err := h.blobs.Put(ctx, "jobs/job-1/output.txt", strings.NewReader("  "), "text/plain")
	if err != nil {
		t.Fatalf("put job output: %v", err)
	}
	if err := h.bridge.Resume(ctx, "job-1", callbacks.Outcome{Succeeded: true, OutputRef: out}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.runner.Wait()

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusFailed {
		t.Fatalf("status = %s, want FAILED", rec.Status)
	}
	if rec.Error == nil || rec.Error.Error != faults.KindProcessing {
		t.Errorf("error = %+v, want %s", rec.Error, faults.KindProcessing)
	}
	if !strings.Contains(rec.Error.Cause, records.ArtifactExtractedText) {
		t.Errorf("cause = %q, want mention of %s", rec.Error.Cause, records.ArtifactExtractedText)
	}
}

func TestResumeFailedExtraction(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	exec := h.launch(t, "wf-1", records.Parameters{}, "large input document")

	if err := h.bridge.Resume(ctx, "job-1", callbacks.Outcome{Cause: "ocr engine crashed"}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.runner.Wait()

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusFailed {
		t.Fatalf("status = %s, want FAILED", rec.Status)
	}
	want := records.ErrorInfo{Error: faults.KindExternalService, Cause: "ocr engine crashed"}
	if rec.Error == nil || *rec.Error != want {
		t.Errorf("error = %+v, want %+v", rec.Error, want)
	}

	got, err := h.execs.Get(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Status != executions.StatusFailed {
		t.Errorf("execution status = %s, want FAILED", got.Status)
	}
}

func TestResumeUnknownJob(t *testing.T) {
	h := newHarness(t, 1024)

	err := h.bridge.Resume(context.Background(), "never-submitted", callbacks.Outcome{Succeeded: true, OutputRef: "x"})
	if err != nil {
		t.Errorf("resume unknown job = %v, want nil", err)
	}
}

func TestResumeAfterAbort(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	exec := h.launch(t, "wf-1", records.Parameters{}, "large input document")

	if err := h.execs.Abort(ctx, exec.ID); err != nil {
		t.Fatalf("abort: %v", err)
	}

	rec := h.record(t, "wf-1")
	if rec.Status != records.StatusFailed || rec.Error == nil || rec.Error.Error != faults.KindExecutionAborted {
		t.Fatalf("record after abort = %s %+v, want FAILED ExecutionAborted", rec.Status, rec.Error)
	}

	err := h.bridge.Resume(ctx, "job-1", callbacks.Outcome{Succeeded: true, OutputRef: "jobs/job-1/output.txt"})
	if !errors.Is(err, faults.ErrWorkflowState) {
		t.Errorf("resume after abort = %v, want workflow state error", err)
	}
	h.runner.Wait()

	if got := len(h.record(t, "wf-1").StatusHistory); got != len(rec.StatusHistory) {
		t.Errorf("history grew after abort: %d, want %d", got, len(rec.StatusHistory))
	}
}

func TestResumeTokenRoundTrip(t *testing.T) {
	sc := orchestrator.StepContext{
		ExecutionID: "exec-1",
		UserID:      "u1",
		WorkflowID:  "wf-1",
		Parameters:  records.Parameters{Translate: true, TargetLanguage: "fr"},
		Artifacts:   map[string]string{records.ArtifactOriginalFile: "uploads/x"},
	}

	token, err := orchestrator.EncodeResumeToken(sc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := orchestrator.DecodeResumeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ExecutionID != sc.ExecutionID || got.Parameters != sc.Parameters ||
		got.Artifacts[records.ArtifactOriginalFile] != "uploads/x" {
		t.Errorf("decoded = %+v, want %+v", got, sc)
	}
}

func TestDecodeResumeTokenInvalid(t *testing.T) {
	incomplete, err := orchestrator.EncodeResumeToken(orchestrator.StepContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for name, token := range map[string]string{
		"not base64":       "!!!",
		"not json":         "bm90LWpzb24",
		"missing identity": incomplete,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := orchestrator.DecodeResumeToken(token); !errors.Is(err, faults.ErrProcessing) {
				t.Errorf("DecodeResumeToken(%q) = %v, want processing error", token, err)
			}
		})
	}
}

func TestArtifactKey(t *testing.T) {
	got := orchestrator.ArtifactKey("user@example.com", "wf 1", records.ArtifactFormattedText)
	want := "workflows/user@example.com/wf%201/formattedText.txt"
	if got != want {
		t.Errorf("ArtifactKey = %q, want %q", got, want)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	runner := orchestrator.NewRunner(context.Background(), 2, schematest.Logger())

	var (
		mu      sync.Mutex
		active  int
		highest int
	)
	for range 8 {
		runner.Dispatch(func(context.Context) {
			mu.Lock()
			active++
			highest = max(highest, active)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
	}
	runner.Wait()

	if highest > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", highest)
	}
}
