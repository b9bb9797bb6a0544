package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/dhwoox/Final-RAG/pkg/logger"
)

var frontMatterDelimiter = []byte("---")

// splitFrontMatter extracts the YAML front matter of a manifest. It returns
// the scalar front matter values and the remaining body. Content without
// front matter, or with front matter that does not parse, is returned
// unchanged with no values.
func splitFrontMatter(ctx context.Context, content []byte) (map[string]string, []byte) {
	if !bytes.HasPrefix(content, frontMatterDelimiter) {
		return nil, content
	}
	body, ok := frontMatterBody(content)
	if !ok {
		return nil, content
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)
	pctx := parser.NewContext()
	if err := md.Convert(content, io.Discard, parser.WithContext(pctx)); err != nil {
		logger.G(ctx).WithError(err).Debug("failed to parse manifest front matter")
		return nil, content
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("ignoring malformed manifest front matter")
		return nil, body
	}

	values := make(map[string]string, len(metaData))
	for k, v := range metaData {
		switch v.(type) {
		case map[any]any, map[string]any, []any:
			continue
		case nil:
			values[k] = ""
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return values, body
}

// frontMatterBody returns the content after the closing front matter
// delimiter.
func frontMatterBody(content []byte) ([]byte, bool) {
	lines := bytes.SplitAfter(content, []byte("\n"))
	if len(lines) == 0 || !bytes.Equal(bytes.TrimSpace(lines[0]), frontMatterDelimiter) {
		return nil, false
	}
	offset := len(lines[0])
	for _, line := range lines[1:] {
		offset += len(line)
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelimiter) {
			return content[offset:], true
		}
	}
	return nil, false
}
