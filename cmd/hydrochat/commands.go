package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agrolab/hydrochat/internal/bot"
	"github.com/agrolab/hydrochat/internal/config"
	"github.com/agrolab/hydrochat/internal/extract"
)

// --- extract ---

var extractCmd = &cobra.Command{
	Use:   "extract <workbook.xlsx>",
	Short: "Split a sensor workbook into windowed JSON artifacts",
	Long: `Split a sensor workbook into windowed JSON artifacts.

Each sheet with "data" and "hora" columns is segmented into 12-hour
cultivation shifts and written as one JSON file per shift window.

Examples:
  hydrochat extract dados_sensores.xlsx
  hydrochat extract dados_sensores.xlsx --output ./planilhas_tratadas
  hydrochat extract dados_sensores.xlsx --remote`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			return remoteExtract(cmd.Context(), args[0])
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			output = cfg.Ingest.ArtifactDir
		}

		svc := extract.NewService(output)
		report, err := svc.ProcessWorkbook(args[0])
		if err != nil {
			return err
		}

		for _, a := range report.Artifacts {
			printStep("%s (%d rows)", a.Path, a.Rows)
		}
		for _, s := range report.SkippedSheets {
			printWarning("skipped sheet %q (no data/hora columns)", s)
		}
		printSuccess("Wrote %d artifacts to %s", len(report.Artifacts), output)
		return nil
	},
}

func init() {
	extractCmd.Flags().String("output", "", "artifact output directory (default: configured ingest dir)")
	extractCmd.Flags().Bool("remote", false, "upload the workbook to a running hydrochat server instead of extracting locally")
}

// remoteExtract uploads the workbook to the server's extract endpoint so
// artifacts land in the server's configured directory.
func remoteExtract(ctx context.Context, path string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.upload(ctx, "/extract", "file", path)
	if err != nil {
		return err
	}

	var result struct {
		Error  string `json:"error"`
		Report struct {
			Artifacts []struct {
				Path string `json:"path"`
				Rows int    `json:"rows"`
			} `json:"artifacts"`
			SkippedSheets []string `json:"skipped_sheets"`
		} `json:"report"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if result.Error != "" {
		return fmt.Errorf("%s", result.Error)
	}

	for _, a := range result.Report.Artifacts {
		printStep("%s (%d rows)", a.Path, a.Rows)
	}
	for _, s := range result.Report.SkippedSheets {
		printWarning("skipped sheet %q (no data/hora columns)", s)
	}
	printSuccess("Server wrote %d artifacts", len(result.Report.Artifacts))
	return nil
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the retrieval index from extracted artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/index", nil)
		if err != nil {
			return err
		}

		var result struct {
			Error     string `json:"error"`
			Message   string `json:"message"`
			Documents int    `json:"documents"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}

		printSuccess("Indexed %d documents", result.Documents)
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed cultivation data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		answer, err := askServer(cmd.Context(), client, question)
		if err != nil {
			return err
		}

		fmt.Println(answer)
		return nil
	},
}

// askServer queries the chat endpoint and unwraps the error-as-payload
// envelope into a regular error.
func askServer(ctx context.Context, client *apiClient, question string) (string, error) {
	resp, err := client.get(ctx, "/chat?string="+url.QueryEscape(question))
	if err != nil {
		return "", err
	}

	var result struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("%s", result.Error)
	}
	return result.Response, nil
}

// --- bot ---

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram relay against a local hydrochat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("missing Telegram token: set HYDROCHAT_TELEGRAM_TOKEN")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		b, err := bot.New(cfg.Telegram.Token, serverAnswerer{client}, nil)
		if err != nil {
			return fmt.Errorf("connecting to Telegram: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// serverAnswerer relays bot questions to the chat endpoint. Domain failures
// arrive as payload errors and are surfaced as errors so the bot can send
// its fallback reply.
type serverAnswerer struct {
	client *apiClient
}

func (s serverAnswerer) Answer(ctx context.Context, question string) (string, error) {
	return askServer(ctx, s.client, question)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect or persist the interaction log",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged question/answer interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions")
		if err != nil {
			return err
		}

		var result struct {
			Interactions []struct {
				ID       string `json:"id"`
				Question string `json:"question"`
				Answer   string `json:"answer"`
			} `json:"interactions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Interactions) == 0 {
			fmt.Println("No interactions logged.")
			return nil
		}

		for _, ix := range result.Interactions {
			question := ix.Question
			if len(question) > 80 {
				question = question[:80] + "..."
			}
			fmt.Printf("%s  %s\n", colorize(colorCyan, ix.ID[:8]), question)
		}
		return nil
	},
}

var interactionsFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Persist the in-memory interaction log to storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/interactions/flush", nil)
		if err != nil {
			return err
		}

		var result struct {
			Error   string `json:"error"`
			Flushed int    `json:"flushed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}

		printSuccess("Flushed %d interactions", result.Flushed)
		return nil
	},
}

var interactionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged interactions as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions")
		if err != nil {
			return err
		}

		var result struct {
			Interactions []json.RawMessage `json:"interactions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)
		for _, ix := range result.Interactions {
			if err := enc.Encode(ix); err != nil {
				return err
			}
		}

		if output != "" {
			printSuccess("Exported %d interactions to %s", len(result.Interactions), output)
		}
		return nil
	},
}

func init() {
	interactionsExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsFlushCmd)
	interactionsCmd.AddCommand(interactionsExportCmd)
}
