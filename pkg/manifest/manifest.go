// Package manifest parses Markdown skill manifests: a metadata section,
// bullet-list instruction sections, a workflow table and free-form notes.
package manifest

import (
	"strings"
)

// Section names as written in manifests.
const (
	SectionTitle        = "메인제목"
	SectionMetadata     = "메타데이터"
	SectionPreparation  = "사전준비"
	SectionTestData     = "테스트데이터"
	SectionWorkflow     = "워크플로우"
	SectionVerification = "검증"
	SectionRecovery     = "복구"
	SectionCommands     = "명령어"
)

// Instruction is one tokenized bullet line: a command name followed by its
// arguments. An empty bullet yields an empty Instruction.
type Instruction []string

// Command returns the first token, or "" for an empty instruction.
func (i Instruction) Command() string {
	if len(i) == 0 {
		return ""
	}
	return i[0]
}

// Args returns the tokens after the command name.
func (i Instruction) Args() []string {
	if len(i) <= 1 {
		return nil
	}
	return i[1:]
}

func (i Instruction) String() string {
	return strings.Join(i, " ")
}

// WorkflowStep is one row of the workflow table.
type WorkflowStep struct {
	Step        string `json:"step" yaml:"step"`
	Description string `json:"description" yaml:"description"`
	API         string `json:"api" yaml:"api"`
	Data        string `json:"data" yaml:"data"`
	Event       string `json:"event" yaml:"event"`
}

// Manifest is the parsed form of one manifest document.
type Manifest struct {
	Path         string              `json:"path" yaml:"path"`
	Title        string              `json:"title,omitempty" yaml:"title,omitempty"`
	Metadata     map[string]string   `json:"metadata" yaml:"metadata"`
	Preparation  []Instruction       `json:"preparation" yaml:"preparation"`
	TestData     []Instruction       `json:"testdata" yaml:"testdata"`
	Workflow     []WorkflowStep      `json:"workflow" yaml:"workflow"`
	Verification []Instruction       `json:"verification" yaml:"verification"`
	Recovery     []Instruction       `json:"recovery" yaml:"recovery"`
	Commands     []Instruction       `json:"commands" yaml:"commands"`
	Notes        map[string][]string `json:"notes" yaml:"notes"`
}

// Name returns the manifest name from its metadata, falling back to the
// document title.
func (m *Manifest) Name() string {
	for _, key := range []string{"name", "이름", "스킬명"} {
		if v := m.Metadata[key]; v != "" {
			return v
		}
	}
	return m.Title
}

// Description returns the manifest description from its metadata.
func (m *Manifest) Description() string {
	for _, key := range []string{"description", "설명"} {
		if v := m.Metadata[key]; v != "" {
			return v
		}
	}
	return ""
}

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionMetadata
	sectionWorkflow
	sectionPreparation
	sectionTestData
	sectionVerification
	sectionRecovery
	sectionCommands
)

var sectionKinds = map[string]sectionKind{
	SectionMetadata:     sectionMetadata,
	"metadata":          sectionMetadata,
	SectionWorkflow:     sectionWorkflow,
	"workflow":          sectionWorkflow,
	SectionPreparation:  sectionPreparation,
	"preparation":       sectionPreparation,
	SectionTestData:     sectionTestData,
	"testdata":          sectionTestData,
	SectionVerification: sectionVerification,
	"verification":      sectionVerification,
	SectionRecovery:     sectionRecovery,
	"recovery":          sectionRecovery,
	SectionCommands:     sectionCommands,
	"commands":          sectionCommands,
}

// normalizeSection removes whitespace and lower-cases a section name.
func normalizeSection(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

func kindOf(section string) sectionKind {
	return sectionKinds[normalizeSection(section)]
}

func (m *Manifest) instructions(kind sectionKind) *[]Instruction {
	switch kind {
	case sectionPreparation:
		return &m.Preparation
	case sectionTestData:
		return &m.TestData
	case sectionVerification:
		return &m.Verification
	case sectionRecovery:
		return &m.Recovery
	case sectionCommands:
		return &m.Commands
	}
	return nil
}
