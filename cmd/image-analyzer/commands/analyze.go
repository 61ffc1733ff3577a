package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/image-analyzer/cmd/image-analyzer/ui"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/imageinput"
	"github.com/spherical/image-analyzer/internal/pipeline"
)

var (
	analyzeImages     []string
	analyzeSummarize  bool
	analyzeDraftEmail bool
	analyzeCopyFormat bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract, translate and classify the text in images",
	Long: `Analyze sends each image to the vision model and prints the original text,
its English translation and the detected content type. When a webhook URL is
configured the result is forwarded to it. Use --summarize and --draft-email to
derive follow-up content from the original text. Each page of a PDF is
analyzed as a separate image.`,
	Example: `  image-analyzer analyze --image receipt.jpg
  image-analyzer analyze -i menu.png -i sign.webp --summarize --draft-email`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVarP(&analyzeImages, "image", "i", nil, "Path to an image or PDF file (repeatable, required)")
	analyzeCmd.Flags().BoolVar(&analyzeSummarize, "summarize", false, "Summarize the original text")
	analyzeCmd.Flags().BoolVar(&analyzeDraftEmail, "draft-email", false, "Draft an email from the original text")
	analyzeCmd.Flags().BoolVar(&analyzeCopyFormat, "copy-format", false, "Print the email draft as plain 'Subject: ...' text")
	_ = analyzeCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan domain.Event, 16)
	sess, closeSession, err := openSession(ctx, events)
	if err != nil {
		return err
	}
	defer closeSession()

	if !sess.Orchestrator.Snapshot().CanAnalyze() {
		ui.Error("API key is not configured")
		ui.Info("Set one with: image-analyzer config set --api-key <key>")
		return fmt.Errorf("API key is not configured")
	}

	inputs, err := loadInputs(ctx, analyzeImages)
	if err != nil {
		return err
	}

	var bar *ui.ProgressBar
	if len(inputs) > 1 {
		bar = ui.NewProgressBar(len(inputs), "Analyzing")
	}

	failed := 0
	for _, in := range inputs {
		if bar != nil {
			bar.Describe(in.label)
		}
		if err := analyzeOne(ctx, sess.Orchestrator, events, in); err != nil {
			failed++
			ui.Error("%s: %v", in.label, err)
		}
		if bar != nil {
			bar.Add()
		}
		if ctx.Err() != nil {
			break
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(inputs))
	}
	return nil
}

type input struct {
	label string
	image *domain.Image
}

// loadInputs reads every path up front. A PDF contributes one input per page.
func loadInputs(ctx context.Context, paths []string) ([]input, error) {
	var inputs []input
	for _, path := range paths {
		base := filepath.Base(path)
		if !imageinput.IsPDF(path) {
			img, err := imageinput.Read(path)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input{label: base, image: img})
			continue
		}

		pages, err := imageinput.ReadPDF(ctx, path, imageinput.DefaultPDFQuality)
		if err != nil {
			return nil, err
		}
		for i, page := range pages {
			inputs = append(inputs, input{label: fmt.Sprintf("%s (page %d)", base, i+1), image: page})
		}
	}
	return inputs, nil
}

func analyzeOne(ctx context.Context, orch *pipeline.Orchestrator, events <-chan domain.Event, in input) error {
	ui.Section(in.label)

	retries, err := withSpinner(events, "Analyzing image...", func() error {
		_, err := orch.Analyze(ctx, in.image)
		return err
	})
	if retries > 0 && ui.Verbose() {
		ui.Info("Rate limited %d time(s) before the model answered", retries)
	}
	if err != nil {
		return err
	}

	state := orch.Snapshot()
	ui.ResultCards(state.Extraction)
	ui.WebhookStatus(state.Webhook)

	if analyzeSummarize {
		var summary string
		if _, err := withSpinner(events, "Summarizing...", func() error {
			var err error
			summary, err = orch.Summarize(ctx)
			return err
		}); err != nil {
			ui.Error("Summary failed: %v", err)
		} else {
			ui.Summary(summary)
		}
	}

	if analyzeDraftEmail {
		var draft *domain.EmailDraft
		if _, err := withSpinner(events, "Drafting email...", func() error {
			var err error
			draft, err = orch.DraftEmail(ctx)
			return err
		}); err != nil {
			ui.Error("Email draft failed: %v", err)
		} else {
			ui.EmailDraft(draft, analyzeCopyFormat)
		}
	}

	return nil
}

// withSpinner runs fn while a spinner shows msg. Retry events re-label the
// spinner so a rate-limited call does not look stuck. It returns the number
// of retries observed.
func withSpinner(events <-chan domain.Event, msg string, fn func() error) (int, error) {
	spinner := ui.NewSpinner(msg)
	spinner.Start()

	done := make(chan struct{})
	retries := make(chan int, 1)
	go func() {
		n := 0
		defer func() { retries <- n }()
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				if ev.Type != domain.EventRetryScheduled {
					continue
				}
				n++
				if p, ok := ev.Payload.(map[string]interface{}); ok {
					spinner.UpdateMessage(fmt.Sprintf("%s rate limited, retry %v in %v", msg, p["attempt"], p["delay"]))
				}
			}
		}
	}()

	err := fn()
	close(done)
	n := <-retries
	spinner.Stop()
	return n, err
}
