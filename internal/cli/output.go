// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fieldseal.
//
// go-fieldseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// keyRow is the common listing shape for every stored key kind.
type keyRow struct {
	KeyID       string `json:"keyId"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Created     string `json:"created"`
	LastUsed    string `json:"lastUsed,omitempty"`
	Origins     string `json:"allowedOrigins"`
}

func rowFromMetadata(kind string, meta types.Metadata) keyRow {
	row := keyRow{
		KeyID:       meta.KeyID,
		Kind:        kind,
		Description: meta.ShortDescription,
		Created:     meta.Created.Time().Format(time.RFC3339),
		Origins:     strings.Join(meta.AllowedOrigins, ","),
	}
	if meta.LastUsed != nil {
		row.LastUsed = meta.LastUsed.Time().Format(time.RFC3339)
	}
	return row
}

// PrintKeyList prints all stored keys grouped into one listing
func (p *Printer) PrintKeyList(symmetric []*types.SymmetricKey,
	password []*types.PasswordKey, recipient []*types.RecipientKey,
	agreement []*types.KeyAgreementKeyPair) error {

	rows := make([]keyRow, 0,
		len(symmetric)+len(password)+len(recipient)+len(agreement))
	for _, key := range symmetric {
		row := rowFromMetadata("symmetric", key.Metadata)
		row.Kind = fmt.Sprintf("symmetric (%s)", key.DistributionMode)
		rows = append(rows, row)
	}
	for _, key := range password {
		rows = append(rows, rowFromMetadata("password", key.Metadata))
	}
	for _, key := range recipient {
		kind := "recipient"
		if !key.HasPrivateKey() {
			kind = "recipient (public only)"
		}
		rows = append(rows, rowFromMetadata(kind, key.Metadata))
	}
	for _, pair := range agreement {
		rows = append(rows, keyRow{
			KeyID:   pair.KeyID,
			Kind:    "key-agreement",
			Created: pair.Created.Time().Format(time.RFC3339),
			Origins: pair.Origin,
		})
	}

	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"keys": rows})
	case OutputFormatText:
		if len(rows) == 0 {
			fmt.Fprintln(p.writer, "No keys found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-46s %-26s %-24s %s\n",
			"KEY ID", "KIND", "DESCRIPTION", "ORIGINS")
		fmt.Fprintln(p.writer, strings.Repeat("-", 110))
		for _, row := range rows {
			fmt.Fprintf(p.writer, "%-46s %-26s %-24s %s\n",
				row.KeyID, row.Kind, row.Description, row.Origins)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKey prints one stored key's metadata
func (p *Printer) PrintKey(kind string, meta types.Metadata) error {
	row := rowFromMetadata(kind, meta)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(row)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key ID:      %s\n", row.KeyID)
		fmt.Fprintf(p.writer, "Kind:        %s\n", row.Kind)
		fmt.Fprintf(p.writer, "Description: %s\n", row.Description)
		fmt.Fprintf(p.writer, "Created:     %s\n", row.Created)
		if row.LastUsed != "" {
			fmt.Fprintf(p.writer, "Last used:   %s\n", row.LastUsed)
		}
		fmt.Fprintf(p.writer, "Origins:     %s\n", row.Origins)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintValue prints a single named value, e.g. an envelope or blob
func (p *Printer) PrintValue(name, value string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{name: value})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
