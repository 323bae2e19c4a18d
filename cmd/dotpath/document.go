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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/dotpath/pkg/values"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// loadDocument reads the document from --file or stdin and decodes it.
// The resolved input format is returned so output can default to it.
func loadDocument() (any, string, error) {
	var raw []byte
	var err error
	if flagFile != "" {
		raw, err = os.ReadFile(flagFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read document: %w", err)
	}
	format := flagInput
	if format == "" {
		format = sniffFormat(raw, flagFile)
	}
	doc, err := decodeDocument(raw, format)
	if err != nil {
		return nil, "", err
	}
	return doc, format, nil
}

// sniffFormat guesses the input format from the filename extension and,
// failing that, the first non-space byte.
func sniffFormat(raw []byte, path string) string {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return formatYAML
	case strings.HasSuffix(path, ".json"):
		return formatJSON
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == '"') {
		return formatJSON
	}
	return formatYAML
}

func decodeDocument(raw []byte, format string) (any, error) {
	switch format {
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return normalizeNumbers(doc), nil
	case formatYAML:
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("unknown input format %q", format)
}

// normalizeNumbers rewrites json.Number leaves so integer-looking
// numbers become int64 and path slot indices address them predictably.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return v
}

// printResult renders one evaluation result. Raw mode prints strings
// and plain scalars without encoding; everything else goes through the
// output encoder.
func printResult(w io.Writer, v any, format string) error {
	if flagRaw {
		switch t := v.(type) {
		case nil:
			_, err := fmt.Fprintln(w)
			return err
		case string:
			_, err := fmt.Fprintln(w, t)
			return err
		case bool, int, int64, float64:
			_, err := fmt.Fprintln(w, t)
			return err
		}
	}
	return writeDocument(w, v, format)
}

// writeDocument encodes v in the output format. JSON pretty-prints when
// stdout is a terminal.
func writeDocument(w io.Writer, v any, format string) error {
	if format == "" {
		format = formatJSON
	}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		if stdoutIsTTY() {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(encodable(v))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(encodable(v)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func stdoutIsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// encodable maps engine container kinds the encoders do not know about
// onto plain slices and maps.
func encodable(v any) any {
	switch t := v.(type) {
	case values.Tuple:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodable(e)
		}
		return out
	case *values.Set:
		out := make([]any, 0, t.Len())
		for _, e := range t.Members() {
			out = append(out, encodable(e))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = encodable(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = encodable(e)
		}
		return out
	}
	return v
}

// parseValue interprets a put argument: JSON when it decodes, the
// literal string otherwise, so both `put a.b 7` and `put a.b '{"x":1}'`
// do what they look like.
func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil && !dec.More() {
		return normalizeNumbers(v)
	}
	return s
}
