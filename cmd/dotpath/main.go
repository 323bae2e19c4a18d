// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// dotpath is a command line front end for the path expression engine:
// it reads a JSON or YAML document, evaluates a path against it, and
// prints the result or the rewritten document.
package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/dotpath/pkg/logging"
)

// Config holds the defaults a config file can set; flags given on the
// command line win over it.
type Config struct {
	Input    string `yaml:"input" validate:"omitempty,oneof=json yaml"`
	Output   string `yaml:"output" validate:"omitempty,oneof=json yaml"`
	Strict   bool   `yaml:"strict"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

var (
	config   Config
	logger   *logging.Logger
	validate = validator.New()

	flagFile    string
	flagInput   string
	flagOutput  string
	flagStrict  bool
	flagRaw     bool
	flagConfig  string
	flagVerbose bool

	rootCmd = &cobra.Command{
		Use:   "dotpath",
		Short: "Query and rewrite nested JSON/YAML documents with path expressions",
		Long: `dotpath evaluates compact path expressions ("a.b[0].*", "users[age>=25].name")
against a JSON or YAML document read from a file or stdin. Pattern paths
return every match; put and del rewrite the document and print it back.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "document file (default stdin)")
	rootCmd.PersistentFlags().StringVarP(&flagInput, "input", "i", "", "input format: json or yaml (default: sniff)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: json or yaml (default: input format)")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "missing concrete keys are an error")
	rootCmd.PersistentFlags().BoolVar(&flagRaw, "raw", false, "print scalar results unencoded")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file with defaults")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flagConfig != "" {
			raw, err := os.ReadFile(flagConfig)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			if err := yaml.Unmarshal(raw, &config); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			if err := validate.Struct(&config); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
		}
		if flagInput == "" {
			flagInput = config.Input
		}
		if flagOutput == "" {
			flagOutput = config.Output
		}
		flagStrict = flagStrict || config.Strict

		level := logging.LevelWarn
		if flagVerbose || config.LogLevel == "debug" {
			level = logging.LevelDebug
		}
		logger = logging.New(logging.Config{Level: level, Service: "dotpath"})
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	}
}
