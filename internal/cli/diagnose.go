package cli

import (
	"fmt"

	"github.com/ppiankov/geotrail/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON       string
	outMD         string
	outHTML       string
	outDownload   string
	clipboard     bool
	noFooter      bool
	diagMaxNodes  int
	llmEnabled    bool
	llmProvider   string
	llmModel      string
	llmHTTPProxy  string
	llmHTTPSProxy string
)

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <file>",
	Short: "Explain why an export does or does not yield points",
	Long: `Diagnose scans an export the same way extract does and reports:
- which location formats were found and how often
- how many candidates were rejected, and at which stage
- the structure of the document (key names and value kinds only)
- recommendations for making the export usable

The report never contains coordinates, timestamps or string values from
the file, so it is safe to share when asking for help.

Example:
  geotrail diagnose Timeline.json
  geotrail diagnose Records.json --json report.json --md report.md --html report.html
  geotrail diagnose Records.json --clipboard | pbcopy
  geotrail diagnose Records.json --llm --llm-provider ollama --llm-model llama3`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	// Output flags
	diagnoseCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (- for stdout)")
	diagnoseCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	diagnoseCmd.Flags().StringVar(&outHTML, "html", "", "output standalone HTML path")
	diagnoseCmd.Flags().StringVar(&outDownload, "download", "", "output shareable text report path")
	diagnoseCmd.Flags().BoolVar(&clipboard, "clipboard", false, "print a compact summary for pasting into a bug report")
	diagnoseCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	diagnoseCmd.Flags().IntVar(&diagMaxNodes, "max-nodes", 2_000_000, "maximum JSON nodes to scan")

	// LLM flags
	diagnoseCmd.Flags().BoolVar(&llmEnabled, "llm", false, "explain the report in plain language with an LLM")
	diagnoseCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	diagnoseCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	diagnoseCmd.Flags().StringVar(&llmHTTPProxy, "http-proxy", "", "HTTP proxy URL for the LLM (overrides HTTP_PROXY)")
	diagnoseCmd.Flags().StringVar(&llmHTTPSProxy, "https-proxy", "", "HTTPS proxy URL for the LLM (overrides HTTPS_PROXY)")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-nodes") {
		cfg.Diagnose.MaxNodes = diagMaxNodes
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	if llmEnabled {
		if cmd.Flags().Changed("llm-provider") || cfg.LLM.Provider == "" {
			cfg.LLM.Provider = llmProvider
		}
		if llmModel != "" {
			cfg.LLM.Model = llmModel
		}
		if llmHTTPProxy != "" {
			cfg.LLM.HTTPProxy = llmHTTPProxy
		}
		if llmHTTPSProxy != "" {
			cfg.LLM.HTTPSProxy = llmHTTPSProxy
		}
		if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	} else {
		cfg.LLM.Provider = ""
	}

	p, err := pipeline.NewPipeline(cfg, logger, pipeline.WithBuildInfo("geotrail "+Version))
	if err != nil {
		return err
	}

	result, err := p.Diagnose(ctx, path)
	if err != nil {
		return fmt.Errorf("diagnose failed: %w", err)
	}

	if llmEnabled {
		if !p.HasExplainer() {
			return fmt.Errorf("LLM provider %q is not available", cfg.LLM.Provider)
		}
		p.Explain(ctx, result)
	}

	outputs := pipeline.ReportOutputs{
		JSON:     outJSON,
		Markdown: outMD,
		HTML:     outHTML,
		Download: outDownload,
	}
	if err := p.RenderReport(result, outputs); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if clipboard {
		text, err := pipeline.FormatForClipboard(result.Report)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
	}

	return nil
}
