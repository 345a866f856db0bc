package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/storage"
)

var pdfMagic = []byte("%PDF-")

func (o *Orchestrator) steps() map[StepName]stepDef {
	return map[StepName]stepDef{
		StepExtract: {
			running: records.StatusExtractingText,
			handle:  o.extract,
		},
		StepFormat: {
			running:  records.StatusFormattingText,
			complete: records.StatusTextFormattingComplete,
			handle:   o.format,
		},
		StepTranslate: {
			running:  records.StatusTranslating,
			complete: records.StatusTranslationComplete,
			handle:   o.translate,
		},
		StepSpeech: {
			running: records.StatusConvertingToSpeech,
			handle:  o.speech,
		},
	}
}

// extract converts the original file to text, synchronously for small inputs
// and through a suspended external job otherwise.
func (o *Orchestrator) extract(ctx context.Context, sc StepContext) StepOutcome {
	ref := sc.Artifacts[records.ArtifactOriginalFile]

	eligible, err := o.syncEligible(ctx, ref)
	if err != nil {
		return Fail(faults.Storage("read original file", err))
	}

	if !eligible {
		jobID, err := o.rt.Suspender.Submit(ctx, ref)
		if err != nil {
			return Fail(err)
		}
		return Suspend(jobID)
	}

	text, err := o.rt.Extractor.ExtractSync(ctx, ref)
	if err != nil {
		return Fail(err)
	}
	if strings.TrimSpace(text) == "" {
		return Fail(faults.Processing("extraction produced no text"))
	}

	out, err := o.putText(ctx, sc, records.ArtifactExtractedText, text)
	if err != nil {
		return Fail(err)
	}
	return Continue(map[string]string{records.ArtifactExtractedText: out})
}

// syncEligible reads at most SyncSizeLimit+1 bytes of the input. Inputs over
// the size limit go async; PDFs within it also need at most SyncPageLimit pages.
func (o *Orchestrator) syncEligible(ctx context.Context, ref string) (bool, error) {
	rc, err := o.rt.Storage.Get(ctx, ref)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, o.settings.SyncSizeLimit+1))
	if err != nil {
		return false, err
	}
	if int64(len(data)) > o.settings.SyncSizeLimit {
		return false, nil
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return true, nil
	}

	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		o.logger.Warn("failed to read PDF page count, using async extraction", "error", err)
		return false, nil
	}
	return pages <= o.settings.SyncPageLimit, nil
}

func (o *Orchestrator) format(ctx context.Context, sc StepContext) StepOutcome {
	return o.transform(ctx, sc, o.rt.Formatter, records.ArtifactExtractedText, records.ArtifactFormattedText, services.TransformParams{})
}

func (o *Orchestrator) translate(ctx context.Context, sc StepContext) StepOutcome {
	return o.transform(ctx, sc, o.rt.Translator, records.ArtifactFormattedText, records.ArtifactTranslatedText, services.TransformParams{
		TargetLanguage: sc.Parameters.TargetLanguage,
	})
}

func (o *Orchestrator) transform(
	ctx context.Context,
	sc StepContext,
	engine Transformer,
	source, target string,
	params services.TransformParams,
) StepOutcome {
	text, err := o.readText(ctx, sc, source)
	if err != nil {
		return Fail(err)
	}

	result, err := engine.Transform(ctx, text, params)
	if err != nil {
		return Fail(err)
	}

	out, err := o.putText(ctx, sc, target, result)
	if err != nil {
		return Fail(err)
	}
	return Continue(map[string]string{target: out})
}

// speech narrates the translation when one exists, otherwise the formatted text.
func (o *Orchestrator) speech(ctx context.Context, sc StepContext) StepOutcome {
	source := records.ArtifactFormattedText
	voice := services.VoiceParams{Voice: o.settings.Voice}
	if _, ok := sc.Artifacts[records.ArtifactTranslatedText]; ok {
		source = records.ArtifactTranslatedText
		voice.LanguageCode = sc.Parameters.TargetLanguage
	}

	text, err := o.readText(ctx, sc, source)
	if err != nil {
		return Fail(err)
	}

	audio, err := o.rt.Speech.Synthesize(ctx, text, voice)
	if err != nil {
		return Fail(err)
	}
	if audio == "" {
		return Fail(faults.Processing("speech engine returned no audio reference"))
	}
	return Continue(map[string]string{records.ArtifactAudioFile: audio})
}

func (o *Orchestrator) readText(ctx context.Context, sc StepContext, artifact string) (string, error) {
	ref, ok := sc.Artifacts[artifact]
	if !ok {
		return "", faults.Processing("missing %s artifact", artifact)
	}
	data, err := storage.ReadAll(ctx, o.rt.Storage, ref)
	if err != nil {
		return "", faults.Storage("read "+artifact, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", faults.Processing("%s is empty", artifact)
	}
	return string(data), nil
}

func (o *Orchestrator) putText(ctx context.Context, sc StepContext, artifact, text string) (string, error) {
	ref, err := o.rt.Storage.Put(ctx, ArtifactKey(sc.UserID, sc.WorkflowID, artifact), strings.NewReader(text), "text/plain; charset=utf-8")
	if err != nil {
		return "", faults.Storage("write "+artifact, err)
	}
	return ref, nil
}

// ArtifactKey returns the blob key for a workflow's generated artifact.
func ArtifactKey(userID, workflowID, artifact string) string {
	return fmt.Sprintf("workflows/%s/%s/%s.txt", url.PathEscape(userID), url.PathEscape(workflowID), artifact)
}
