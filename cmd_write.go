package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"ai_news_writer/client"
	"ai_news_writer/generator"
	"ai_news_writer/photos"
	"ai_news_writer/render"
	"ai_news_writer/writer"
)

var (
	requestPath    string
	advancedPrompt string
	outputFormat   string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Generate a news draft through the generation service",
	Long: `Submits the request to the generation service, follows the job until it
ends and prints the resolved draft. Without --request the last saved draft
request is used.

Formats: markdown, html, wechat, preview.`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt that would be sent",
	Args:  cobra.NoArgs,
	RunE:  runPrompt,
}

var importPhotosCmd = &cobra.Command{
	Use:   "import-photos [file]",
	Short: "Import a yaml/json photo seed into the photo catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := photos.Open(cfg.PhotoDB, logger)
		if err != nil {
			return err
		}
		defer catalog.Close()
		n, err := catalog.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d photos into %s\n", n, cfg.PhotoDB)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{writeCmd, promptCmd} {
		c.Flags().StringVarP(&requestPath, "request", "r", "", "request file (yaml/json)")
		c.Flags().StringVar(&advancedPrompt, "advanced-prompt", "", "raw prompt overriding the form fields")
	}
	writeCmd.Flags().StringVarP(&outputFormat, "format", "f", "markdown", "output format: markdown|html|wechat|preview")
}

func readRequest(path string) (generator.GenerationRequest, error) {
	var req generator.GenerationRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &req)
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

// openSession builds a writer session against the configured service and
// applies the command line request on top of the restored draft.
func openSession() (*writer.Session, *client.Client, error) {
	svc := client.New(cfg.APIBase,
		client.WithTimeout(cfg.RequestTimeout.Std()),
		client.WithToken(cfg.APIToken),
		client.WithDebug(cfg.Debug),
		client.WithLogger(logger),
	)
	ctl := writer.NewController(svc,
		writer.WithPollInterval(cfg.PollInterval.Std()),
		writer.WithControllerLogger(logger),
	)
	pipeline := render.NewPipeline(
		render.NewResolver(svc, logger),
		render.NewSanitizer(render.ParseFailMode(cfg.SanitizeMode), logger),
		logger,
	)
	drafts := writer.NewDraftStore(cfg.DraftDir, writer.WithDraftLogger(logger))
	sess := writer.NewSession(ctl, pipeline, nil,
		writer.WithDraftStore(drafts),
		writer.WithPromptPreviewer(svc),
		writer.WithSessionLogger(logger),
	)

	if requestPath != "" {
		req, err := readRequest(requestPath)
		if err != nil {
			_ = sess.Close()
			return nil, nil, err
		}
		sess.SetRequest(req)
		sel := sess.Selection()
		sel.Clear()
		for _, p := range req.SelectedPhotos {
			if err := sel.Add(p); err != nil {
				logger.Warn("skip selected photo", zap.String("photo_id", p.ID), zap.Error(err))
			}
		}
	}
	if advancedPrompt != "" {
		sess.SetAdvancedPrompt(advancedPrompt)
	}
	return sess, svc, nil
}

func runPrompt(cmd *cobra.Command, _ []string) error {
	sess, _, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	fmt.Fprintln(cmd.OutOrStdout(), sess.Prompt(cmd.Context()))
	return nil
}

func runWrite(cmd *cobra.Command, _ []string) error {
	switch outputFormat {
	case "markdown", "html", "wechat", "preview":
	default:
		return fmt.Errorf("unknown format %q", outputFormat)
	}
	sess, svc, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var jobID string
	draft, err := sess.Generate(ctx, func(up generator.JobUpdate) {
		if up.JobID != "" {
			jobID = up.JobID
		}
		logger.Info("job update", zap.String("job_id", up.JobID), zap.String("status", string(up.Status)))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && jobID != "" {
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, cerr := svc.CancelJob(cancelCtx, jobID); cerr != nil {
				logger.Warn("cancel job failed", zap.String("job_id", jobID), zap.Error(cerr))
			}
		}
		return err
	}
	if len(draft.Missing) > 0 {
		logger.Warn("photos rendered as placeholders", zap.Strings("photo_ids", draft.Missing))
	}

	out := cmd.OutOrStdout()
	switch outputFormat {
	case "html":
		fmt.Fprintln(out, sess.CopyHTML())
	case "wechat":
		fmt.Fprintln(out, render.ForWeChat(sess.CopyHTML()))
	case "preview":
		fmt.Fprintln(out, sess.Preview())
	default:
		if draft.Title != "" {
			fmt.Fprintf(out, "# %s\n\n", draft.Title)
		}
		if draft.Subtitle != "" {
			fmt.Fprintf(out, "%s\n\n", draft.Subtitle)
		}
		fmt.Fprintln(out, draft.Markdown)
	}
	return nil
}
