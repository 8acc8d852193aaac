package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/internal/sheet"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codesheet",
		Short: "Generate QR and barcode sheets from the command line",
	}

	rootCmd.AddCommand(generateCmd(), convertCmd(), validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a document into a PNG sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(input)
			if err != nil {
				return err
			}

			// No delegation from the CLI: a one-shot run enumerates inline
			// regardless of item count.
			planner := generator.NewPlanner(generator.DefaultEncoder(), nil, 0)
			result, err := planner.Generate(doc.Blocks, doc.Settings, nil)
			if err != nil {
				return err
			}

			printSummary(result)

			if len(result.Codes) == 0 {
				return fmt.Errorf("no codes were generated")
			}

			img, err := sheet.New(doc.Settings).Render(doc.Settings, result.Codes)
			if err != nil {
				return fmt.Errorf("render sheet: %w", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()

			if err := png.Encode(f, img); err != nil {
				return fmt.Errorf("encode png: %w", err)
			}

			fmt.Println(okStyle.Render(fmt.Sprintf("Sheet written to %s", output)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input document (.json or .csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "sheet.png", "output PNG path")
	cmd.MarkFlagRequired("input")
	return cmd
}

func convertCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a document between JSON and CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(input)
			if err != nil {
				return err
			}

			var data []byte
			switch strings.ToLower(filepath.Ext(output)) {
			case ".csv":
				data, err = sheetformat.ExportCSV(doc)
			case ".json":
				data, err = doc.ToJSON()
			default:
				return fmt.Errorf("unsupported output extension %q, want .json or .csv", filepath.Ext(output))
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			fmt.Println(okStyle.Render(fmt.Sprintf("Wrote %s (%d blocks)", output, len(doc.Blocks))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input document (.json or .csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (.json or .csv)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a document for schema and content errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			if err := sheetformat.Validate(doc); err != nil {
				return err
			}

			bad := 0
			delimiter := generator.ResolveDelimiter(doc.Settings)
			for _, b := range doc.Blocks {
				if b.CodeType != sheetformat.CodeTypeBarcode {
					continue
				}
				for _, item := range generator.Split(b.Content, delimiter) {
					if err := generator.ValidateContent(item, b.BarcodeFormat); err != nil {
						fmt.Println(errStyle.Render(fmt.Sprintf("  %s: %v", truncate(item, 30), err)))
						bad++
					}
				}
			}

			if bad > 0 {
				return fmt.Errorf("%d item(s) failed validation", bad)
			}
			fmt.Println(okStyle.Render("Document is valid"))
			return nil
		},
	}
	return cmd
}

// loadDocument reads JSON or CSV, detecting the format from the content.
func loadDocument(path string) (*sheetformat.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	doc, kind, err := sheetformat.Import(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	fmt.Println(dimStyle.Render(fmt.Sprintf("Loaded %s (%s, %d blocks)", filepath.Base(path), kind, len(doc.Blocks))))
	return doc, nil
}

func printSummary(result *generator.Result) {
	fmt.Println(titleStyle.Render("Generation summary"))
	fmt.Println(okStyle.Render(fmt.Sprintf("  %d code(s) generated", len(result.Codes))))

	if len(result.Errors) == 0 {
		return
	}
	fmt.Println(errStyle.Render(fmt.Sprintf("  %d error(s)", len(result.Errors))))
	for _, e := range result.Errors {
		fmt.Println(errStyle.Render(fmt.Sprintf("    line %d [%s]: %s", e.LineNumber, e.Kind, e.Message)))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
