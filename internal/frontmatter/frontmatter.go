// Package frontmatter reads and writes markdown documents that carry YAML
// metadata between --- delimiters.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const delim = "---\n"

var (
	ErrNoOpen  = errors.New("frontmatter: missing opening --- delimiter")
	ErrNoClose = errors.New("frontmatter: missing closing --- delimiter")
)

// Split separates a document into its raw YAML metadata and its body.
func Split(data []byte) (meta []byte, body []byte, err error) {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, ErrNoOpen
	}
	rest := data[len(delim):]
	var idx int
	if bytes.HasPrefix(rest, []byte("---")) {
		idx = 0
	} else if idx = bytes.Index(rest, []byte("\n---")); idx < 0 {
		return nil, nil, ErrNoClose
	} else {
		idx++
	}
	meta = rest[:idx]
	body = rest[idx+3:]
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	}
	return meta, body, nil
}

// Decode unmarshals the metadata of data into v and returns the body.
func Decode(data []byte, v any) ([]byte, error) {
	meta, body, err := Split(data)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(meta, v); err != nil {
		return nil, fmt.Errorf("frontmatter: unmarshal: %w", err)
	}
	return body, nil
}

// Encode marshals v as metadata followed by body.
func Encode(v any, body string) ([]byte, error) {
	meta, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim)
	buf.Write(meta)
	buf.WriteString(delim)
	buf.WriteString(body)
	return buf.Bytes(), nil
}
