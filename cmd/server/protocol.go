// Package main provides a TCP server exposing the Orpheus engine.
package main

import (
	"encoding/json"

	"github.com/nickyhof/orpheus/core"
)

// Request is one operation sent by a client, one JSON object per line.
type Request struct {
	// Op is one of init, drop, ls, show, checkout, commit, log, clean, history.
	Op          string   `json:"op"`
	Dataset     string   `json:"dataset,omitempty"`
	Table       string   `json:"table,omitempty"`
	File        string   `json:"file,omitempty"`
	SchemaTable string   `json:"schema,omitempty"`
	Attributes  []string `json:"attributes,omitempty"`
	Versions    []int64  `json:"versions,omitempty"`
	Message     string   `json:"message,omitempty"`
	Delimiter   string   `json:"delimiter,omitempty"`
	Header      bool     `json:"header,omitempty"`
	// IgnoreDuplicates writes a repeated tuple once on checkout.
	IgnoreDuplicates bool `json:"ignore_duplicates,omitempty"`
	// Ancestors restricts log to the ancestors of this version.
	Ancestors int64 `json:"ancestors,omitempty"`
	// Since restricts history, as a Go duration ("24h").
	Since string `json:"since,omitempty"`
}

// Response represents the server's response to a request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // "query", "commit" or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular results.
type QueryResponse struct {
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
	Rows    int        `json:"rows"`
	TimeMs  float64    `json:"time_ms"`
}

// CommitResponse reports an operation that changed state.
type CommitResponse struct {
	Dataset        string        `json:"dataset,omitempty"`
	Version        *core.Version `json:"version,omitempty"`
	NoOp           bool          `json:"no_op,omitempty"`
	Destination    string        `json:"destination,omitempty"`
	RowsAdded      int           `json:"rows_added,omitempty"`
	RowsMatched    int           `json:"rows_matched,omitempty"`
	RecordsWritten int           `json:"records_written,omitempty"`
	TablesCreated  int           `json:"tables_created,omitempty"`
	TablesDeleted  int           `json:"tables_deleted,omitempty"`
	Transaction    string        `json:"transaction,omitempty"`
	TimeMs         float64       `json:"time_ms"`
}

// AuthResponse reports a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}
