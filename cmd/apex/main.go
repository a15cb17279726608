// Command apex is the thin CLI front-end over the engine (spec §6):
// validate a single document, validate a folder's document tree, or
// validate the project rooted at (or above) the current directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/loader"
	"github.com/apex/engine/validate"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	cmd, target := os.Args[1], os.Args[2]
	report := hasFlag(os.Args[3:], "--report")

	var err error
	switch cmd {
	case "validate":
		err = validateFile(log, target, report)
	case "validate-folder":
		err = validateFolder(log, target, report)
	case "validate-project":
		err = validateProject(log, report)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("validation failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: apex <validate|validate-folder|validate-project> <path> [--report]")
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func validateFile(log zerolog.Logger, path string, report bool) error {
	doc, err := loader.ReadFile(path)
	if err != nil {
		return err
	}
	structuralErrs := validate.NewStructuralValidator().Validate(doc)
	exprErrs := validate.NewExpressionValidator(expr.NewEvaluator(256)).Validate(doc)
	errs := append(structuralErrs, exprErrs...)

	printFileResult(log, path, errs, report)
	if len(errs) > 0 {
		return fmt.Errorf("%d error(s) in %s", len(errs), path)
	}
	return nil
}

func validateFolder(log zerolog.Logger, dir string, report bool) error {
	graph, err := loader.Load(dir)
	if err != nil {
		return err
	}
	return validateGraph(log, graph, report)
}

// validateProject walks upward from the current directory looking for the
// project root (the current directory or nearest ancestor that directly
// contains a .yaml or .yml file), falling back to the current directory
// itself when none does.
func validateProject(log zerolog.Logger, report bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := findProjectRoot(cwd)
	graph, err := loader.Load(root)
	if err != nil {
		return err
	}
	return validateGraph(log, graph, report)
}

func findProjectRoot(start string) string {
	dir := start
	for {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
					return dir
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// validateGraph runs the dependency-aware graph validation (spec §4.3(3)):
// every file's own structural/expression result, plus propagation that
// marks a file invalid when anything it depends on — transitively — is
// invalid, and a ranked rootCauses list pointing at the files that
// actually own an error rather than every file the failure propagated to.
func validateGraph(log zerolog.Logger, graph *loader.Graph, report bool) error {
	structural := validate.NewStructuralValidator()
	expression := validate.NewExpressionValidator(expr.NewEvaluator(256))

	result := validate.ValidateGraph(graph, structural, expression)

	var paths []string
	for p := range result.FileResults {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fr := result.FileResults[p]
		printFileResult(log, p, fr.Errors, report)
	}

	for _, c := range result.CircularDependencies {
		log.Error().Strs("cycle", c).Msg("dependency cycle detected")
	}
	for _, rc := range result.RootCauses {
		log.Error().Str("rootCause", rc).Msg("root cause")
	}

	if report {
		fmt.Println("## Root causes")
		if len(result.RootCauses) == 0 {
			fmt.Println("(none)")
		}
		for _, rc := range result.RootCauses {
			fmt.Printf("- %s\n", rc)
		}
		fmt.Println()
	}

	if !result.Valid {
		return fmt.Errorf("dependency-aware validation failed: %d root cause(s), %d cycle(s)",
			len(result.RootCauses), len(result.CircularDependencies))
	}
	log.Info().Int("files", len(result.FileResults)).Msg("all files valid")
	return nil
}

func printFileResult(log zerolog.Logger, path string, errs []string, report bool) {
	if len(errs) == 0 {
		log.Info().Str("file", path).Msg("valid")
		return
	}
	for _, e := range errs {
		log.Error().Str("file", path).Msg(e)
	}
	if report {
		fmt.Printf("## %s\n\n", path)
		for _, e := range errs {
			fmt.Printf("- %s\n", e)
		}
		fmt.Println()
	}
}
