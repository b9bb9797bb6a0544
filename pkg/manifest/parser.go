package manifest

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// workflowColumns is the number of columns of a workflow table row:
// step, description, API, data and event.
const workflowColumns = 5

// Parse reads and parses the manifest at path. It fails only when the file
// cannot be read; unrecognized content is kept in Notes.
func Parse(ctx context.Context, path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, skills.WrapError(err, skills.KindParse, "failed to read manifest %s", path)
	}
	return ParseBytes(ctx, path, data), nil
}

// ParseBytes parses manifest content. path is recorded but not read.
func ParseBytes(ctx context.Context, path string, data []byte) *Manifest {
	p := &lineParser{
		m: &Manifest{
			Path:     path,
			Metadata: make(map[string]string),
			Notes:    make(map[string][]string),
		},
	}

	front, body := splitFrontMatter(ctx, data)
	for k, v := range front {
		p.m.Metadata[k] = v
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		logger.G(ctx).WithError(err).WithField("path", path).Warn("manifest scan stopped early")
	}
	p.flushTable()

	logger.G(ctx).WithField("path", path).
		WithField("preparation", len(p.m.Preparation)).
		WithField("workflow", len(p.m.Workflow)).
		WithField("verification", len(p.m.Verification)).
		Debug("manifest parsed")
	return p.m
}

type lineParser struct {
	m          *Manifest
	section    string
	hasSection bool
	table      []string
}

func (p *lineParser) line(line string) {
	switch {
	case strings.HasPrefix(line, "# "):
		p.flushTable()
		if p.m.Title == "" {
			p.m.Title = strings.TrimSpace(line[2:])
		}
		p.open(SectionTitle, false)
		return
	case strings.HasPrefix(line, "## "):
		p.flushTable()
		p.open(strings.TrimSpace(line[3:]), true)
		return
	}

	if !p.hasSection {
		return
	}

	kind := kindOf(p.section)
	switch kind {
	case sectionMetadata:
		if key, value, ok := parseMetadataLine(line); ok {
			p.m.Metadata[key] = value
		}
		return
	case sectionWorkflow:
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			p.table = append(p.table, line)
		}
		return
	}

	if list := p.m.instructions(kind); list != nil {
		if tokens, ok := parseBullet(line); ok {
			*list = append(*list, tokens)
			return
		}
	}
	p.m.Notes[p.section] = append(p.m.Notes[p.section], line)
}

// open starts a section. A `## ` header resets the section's notes; the
// title keeps whatever was collected under it.
func (p *lineParser) open(section string, reset bool) {
	p.section = section
	p.hasSection = true
	if _, ok := p.m.Notes[section]; !ok || reset {
		p.m.Notes[section] = []string{}
	}
}

func (p *lineParser) flushTable() {
	if kindOf(p.section) == sectionWorkflow && len(p.table) > 0 {
		p.m.Workflow = parseTable(p.table)
	}
	p.table = nil
}

func parseMetadataLine(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// parseTable turns Markdown table lines into workflow steps. The first line
// is the header and the second the separator; both are skipped.
func parseTable(lines []string) []WorkflowStep {
	steps := []WorkflowStep{}
	if len(lines) < 3 {
		return steps
	}
	for _, row := range lines[2:] {
		if strings.TrimSpace(row) == "" {
			continue
		}
		cells := splitRow(row)
		for len(cells) < workflowColumns {
			cells = append(cells, "")
		}
		steps = append(steps, WorkflowStep{
			Step:        cells[0],
			Description: cells[1],
			API:         cells[2],
			Data:        cells[3],
			Event:       cells[4],
		})
	}
	return steps
}

// splitRow splits a table row on unescaped pipes. `\|` stands for a literal
// pipe inside a cell.
func splitRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	if strings.HasSuffix(row, "|") && !strings.HasSuffix(row, `\|`) {
		row = strings.TrimSuffix(row, "|")
	}

	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(row); i++ {
		switch {
		case row[i] == '\\' && i+1 < len(row) && row[i+1] == '|':
			cur.WriteByte('|')
			i++
		case row[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(row[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}
