// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dotpath/pkg/dotpath"
)

var (
	getCmd = &cobra.Command{
		Use:   "get <path>",
		Short: "Print the value(s) a path addresses",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
	putCmd = &cobra.Command{
		Use:   "put <path> <value>",
		Short: "Set a path to a value and print the document",
		Long: `Sets every location the path addresses to the value and prints the
rewritten document. The value is decoded as JSON when possible, so
numbers, booleans, null, arrays, and objects all work; anything else is
taken as a literal string.`,
		Args: cobra.ExactArgs(2),
		RunE: runPut,
	}
	delCmd = &cobra.Command{
		Use:   "del <path>",
		Short: "Remove a path and print the document",
		Args:  cobra.ExactArgs(1),
		RunE:  runDel,
	}
	pathsCmd = &cobra.Command{
		Use:   "paths <path>",
		Short: "Print the concrete paths a pattern expands to",
		Args:  cobra.ExactArgs(1),
		RunE:  runPaths,
	}
)

func init() {
	rootCmd.AddCommand(getCmd, putCmd, delCmd, pathsCmd)
}

func callOptions() []dotpath.Option {
	var opts []dotpath.Option
	if flagStrict {
		opts = append(opts, dotpath.WithStrict())
	}
	return opts
}

func outputFormat(inputFormat string) string {
	if flagOutput != "" {
		return flagOutput
	}
	return inputFormat
}

func runGet(cmd *cobra.Command, args []string) error {
	doc, format, err := loadDocument()
	if err != nil {
		return err
	}
	logger.Debug("evaluating path", "path", args[0], "format", format)
	result, err := dotpath.Get(doc, args[0], callOptions()...)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, result, outputFormat(format))
}

func runPut(cmd *cobra.Command, args []string) error {
	doc, format, err := loadDocument()
	if err != nil {
		return err
	}
	val := parseValue(args[1])
	logger.Debug("updating path", "path", args[0])
	doc, err = dotpath.Update(doc, args[0], val, callOptions()...)
	if err != nil {
		return err
	}
	return writeDocument(os.Stdout, doc, outputFormat(format))
}

func runDel(cmd *cobra.Command, args []string) error {
	doc, format, err := loadDocument()
	if err != nil {
		return err
	}
	logger.Debug("removing path", "path", args[0])
	doc, err = dotpath.Remove(doc, args[0], callOptions()...)
	if err != nil {
		return err
	}
	return writeDocument(os.Stdout, doc, outputFormat(format))
}

func runPaths(cmd *cobra.Command, args []string) error {
	doc, _, err := loadDocument()
	if err != nil {
		return err
	}
	keys, err := dotpath.Expand(doc, args[0], callOptions()...)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
