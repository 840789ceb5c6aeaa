package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelforge/studio/backend/internal/model/persona"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show which fallback rule answers the text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadEnvironment(os.Stderr)
		if err != nil {
			return err
		}
		defer closer.Close()

		rules, err := loadRules(cfg)
		if err != nil {
			return err
		}

		decision := rules.Classify(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rule:     %s\n", decision.Rule)
		fmt.Fprintf(out, "matched:  %t\n", decision.Matched)
		fmt.Fprintf(out, "response: %s\n", decision.Response)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Resolve one reply through the configured model with keyword fallback",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadEnvironment(os.Stderr)
		if err != nil {
			return err
		}
		defer closer.Close()

		resolver, err := newResolver(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(cfg.Chat.DefaultPersona)
		if !ok {
			return fmt.Errorf("persona %q not found", cfg.Chat.DefaultPersona)
		}

		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("text is empty")
		}

		started := time.Now()
		resolution := resolver.Resolve(cmd.Context(), p, text)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:     %s\n", resolution.Path)
		if resolution.Failure != "" {
			fmt.Fprintf(out, "failure:  %s\n", resolution.Failure)
		}
		if resolution.Rule != "" {
			fmt.Fprintf(out, "rule:     %s\n", resolution.Rule)
		}
		fmt.Fprintf(out, "elapsed:  %s\n", time.Since(started).Round(time.Millisecond))
		fmt.Fprintf(out, "reply:    %s\n", resolution.Text)
		return nil
	},
}
