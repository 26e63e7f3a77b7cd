package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/forceupdate/internal/config"
	"github.com/adamancini/forceupdate/internal/interactive"
	"github.com/adamancini/forceupdate/internal/templates"
	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// remoteTemplateTimeout bounds the download of a custom template.
const remoteTemplateTimeout = 30 * time.Second

func newInitCmd() *cobra.Command {
	var templateName string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new Forcefile from a template",
		Long: `Create a new Forcefile from a built-in or custom template.

Available templates:
  ios        - App Store lookup by bundle id
  android    - Custom marketplace lookup URL
  full       - Every setting with its default

Examples:
  forceupdate init                               # Interactive mode
  forceupdate init --template=ios                # Direct template selection
  forceupdate init --template=https://...        # Custom template URL
  forceupdate init --path ./forceupdate.yaml     # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if templateName == "" && cmd.InOrStdin() == os.Stdin && !interactive.IsTerminal() {
				return fmt.Errorf("--template is required when stdin is not a terminal")
			}
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name or URL")
	cmd.Flags().StringVar(&outputPath, "path", "", "Output path for the Forcefile")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing Forcefile")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	prompter := interactive.NewPrompterWithIO(stdin, stdout)
	askPath := outputPath == ""

	if outputPath == "" {
		outputPath = defaultForcefilePath()
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Forcefile already exists at %s\n", outputPath)
		if !prompter.Confirm("Overwrite?") {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if templateName == "" {
		selected, err := selectTemplateInteractive(prompter)
		if err != nil {
			return err
		}
		templateName = selected
	}

	var content []byte
	selectedTemplate := templateName
	if strings.HasPrefix(templateName, "http://") || strings.HasPrefix(templateName, "https://") {
		var err error
		content, err = fetchRemoteTemplate(templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
		selectedTemplate = "custom"
	} else {
		tmpl, err := templates.Get(templateName)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	// The written file keeps its ${VAR} references; validation sees them expanded.
	if _, err := config.LoadBytes(outputPath, content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if selectedTemplate != "custom" && !quiet {
		previewTemplate(stdout, selectedTemplate, content)
	}

	if askPath && !quiet {
		answer, err := prompter.Ask("\nWhere should I create the Forcefile?", outputPath)
		if err != nil {
			return err
		}
		outputPath = expandHomePath(answer)
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write Forcefile: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Set the manifest URL and marketplace in the Forcefile")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'forceupdate check' to run one check")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'forceupdate watch' to keep checking")

	return nil
}

// previewTemplate prints the first lines of a template.
func previewTemplate(stdout io.Writer, name string, content []byte) {
	const maxLines = 20

	_, _ = fmt.Fprintf(stdout, "\nPreview of '%s' template:\n", name)
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) <= maxLines {
		_, _ = fmt.Fprintln(stdout, strings.Join(lines, "\n"))
	} else {
		_, _ = fmt.Fprintln(stdout, strings.Join(lines[:maxLines], "\n"))
		_, _ = fmt.Fprintf(stdout, "... (%d more lines)\n", len(lines)-maxLines)
	}
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
}

// selectTemplateInteractive shows a menu of the built-in templates plus a
// custom URL entry.
func selectTemplateInteractive(prompter *interactive.Prompter) (string, error) {
	templateList := templates.List()

	options := make([]interactive.Option, 0, len(templateList)+1)
	for _, name := range templateList {
		options = append(options, interactive.Option{Name: name, Description: templates.GetDescription(name)})
	}
	options = append(options, interactive.Option{Name: "custom", Description: "Provide custom template URL"})

	idx, err := prompter.Choose("Select a Forcefile template:", options)
	if err != nil {
		return "", err
	}

	if idx == len(templateList) {
		url, err := prompter.Ask("Enter template URL", "")
		if err != nil {
			return "", err
		}
		if url == "" {
			return "", fmt.Errorf("no template URL given")
		}
		return url, nil
	}

	return templateList[idx], nil
}

// fetchRemoteTemplate downloads a template from a URL.
func fetchRemoteTemplate(url string) ([]byte, error) {
	fetcher := forceupdate.NewHTTPFetcher()
	fetcher.UserAgent = "forceupdate/" + buildVersion
	return fetcher.Fetch(context.Background(), url, remoteTemplateTimeout)
}

// defaultForcefilePath returns the default Forcefile location.
func defaultForcefilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "forceupdate.yaml"
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "forceupdate", "forceupdate.yaml")
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
