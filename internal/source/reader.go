package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

// Stdin is the name used for documents read from standard input.
const Stdin = "-"

const maxLineSize = 64 * 1024 * 1024

// Raw is one undecoded document.
type Raw struct {
	// Source is the file the document came from, or "-" for stdin.
	Source string
	// Index is the document's position within Source, counting from 0.
	Index int
	// Data is the document's JSON text.
	Data json.RawMessage
}

// Type returns the document's type field when it is a JSON string.
func (r Raw) Type() (string, bool) {
	res := r.member("type")
	if res.Type != gjson.String {
		return "", false
	}
	return res.Str, true
}

// ID returns the document's _id when it is a JSON string.
func (r Raw) ID() string {
	res := r.member("_id")
	if res.Type != gjson.String {
		return ""
	}
	return res.Str
}

// member returns the top-level member named key. Keys match exactly and a
// repeated key yields its last value, the way the document decoder reads it.
func (r Raw) member(key string) gjson.Result {
	var last gjson.Result
	gjson.ParseBytes(r.Data).ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			last = v
		}
		return true
	})
	return last
}

// ReadFile reads every document in the file at path.
func ReadFile(path string) ([]Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, verrors.New(verrors.ErrCodeFileNotFound, "input file not found: "+path, err)
		}
		return nil, verrors.New(verrors.ErrCodeFilePermission, "cannot open input file: "+path, err)
	}
	defer func() { _ = f.Close() }()

	return Read(f, path)
}

// Read reads every document from r. name labels the documents and, when it
// ends in .ndjson or .jsonl, forces line-delimited parsing.
func Read(r io.Reader, name string) ([]Raw, error) {
	if isLineDelimited(name) {
		return readLines(r, name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeFilePermission, "cannot read input: "+name, err)
	}
	return Parse(data, name)
}

// Parse splits data into documents, detecting its shape.
func Parse(data []byte, name string) ([]Raw, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		return parseArray(trimmed, name)
	case '{':
		if multipleValues(trimmed) {
			return readLines(bytes.NewReader(trimmed), name)
		}
		return parseObject(trimmed, name)
	default:
		return nil, verrors.DocumentError(name, 0, fmt.Errorf("expected a JSON object or array, got %q", firstToken(trimmed)))
	}
}

func parseArray(data []byte, name string) ([]Raw, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, verrors.DocumentError(name, 0, err)
	}

	docs := make([]Raw, 0, len(items))
	for i, item := range items {
		docs = append(docs, Raw{Source: name, Index: i, Data: item})
	}
	return docs, nil
}

// parseObject handles a lone document and the two database envelopes.
// A document carrying its own type or _id is never treated as an envelope.
func parseObject(data []byte, name string) ([]Raw, error) {
	if !json.Valid(data) {
		var probe map[string]json.RawMessage
		return nil, verrors.DocumentError(name, 0, json.Unmarshal(data, &probe))
	}

	top := gjson.ParseBytes(data)
	if !top.Get("type").Exists() && !top.Get("_id").Exists() {
		if rows := top.Get("rows"); rows.IsArray() {
			return allDocsRows(rows, name), nil
		}
		if docs := top.Get("docs"); docs.IsArray() {
			return bulkDocs(docs, name), nil
		}
	}

	return []Raw{{Source: name, Index: 0, Data: json.RawMessage(data)}}, nil
}

// allDocsRows unwraps an _all_docs?include_docs=true response. Rows without
// a doc (deleted or include_docs=false) and design documents are skipped.
func allDocsRows(rows gjson.Result, name string) []Raw {
	var docs []Raw
	for i, row := range rows.Array() {
		doc := row.Get("doc")
		if !doc.IsObject() {
			continue
		}
		if isDesignDoc(row.Get("id").Str) || isDesignDoc(doc.Get("_id").Str) {
			continue
		}
		docs = append(docs, Raw{Source: name, Index: i, Data: json.RawMessage(doc.Raw)})
	}
	return docs
}

func bulkDocs(items gjson.Result, name string) []Raw {
	var docs []Raw
	for i, doc := range items.Array() {
		if isDesignDoc(doc.Get("_id").Str) {
			continue
		}
		docs = append(docs, Raw{Source: name, Index: i, Data: json.RawMessage(doc.Raw)})
	}
	return docs
}

// readLines reads one document per non-blank line.
func readLines(r io.Reader, name string) ([]Raw, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []Raw
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, verrors.DocumentError(name, line, fmt.Errorf("line %d is not valid JSON", line)).
				WithDetail("line", fmt.Sprint(line))
		}
		docs = append(docs, Raw{Source: name, Index: len(docs), Data: json.RawMessage(bytes.Clone(text))})
	}
	if err := scanner.Err(); err != nil {
		return nil, verrors.New(verrors.ErrCodeInvalidInput, "cannot read input: "+name, err)
	}
	return docs, nil
}

// multipleValues reports whether data holds more than one top-level JSON
// value, as concatenated or line-delimited objects do.
func multipleValues(data []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(data))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return false
	}
	return dec.More()
}

func isLineDelimited(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ndjson", ".jsonl":
		return true
	}
	return false
}

func isDesignDoc(id string) bool {
	return strings.HasPrefix(id, "_design/")
}

func firstToken(data []byte) string {
	if i := bytes.IndexAny(data, " \t\r\n,"); i > 0 {
		data = data[:i]
	}
	if len(data) > 20 {
		data = data[:20]
	}
	return string(data)
}
