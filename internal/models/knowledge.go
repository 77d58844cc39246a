package models

import (
	"github.com/google/uuid"
)

type KnowledgeType string

const (
	KnowledgeTypeBio                KnowledgeType = "bio"
	KnowledgeTypeSkills             KnowledgeType = "skills"
	KnowledgeTypeEducation          KnowledgeType = "education"
	KnowledgeTypeCertification      KnowledgeType = "certification"
	KnowledgeTypePhilosophy         KnowledgeType = "philosophy"
	KnowledgeTypePersonal           KnowledgeType = "personal"
	KnowledgeTypeContact            KnowledgeType = "contact"
	KnowledgeTypeProjectDescription KnowledgeType = "project-description"
)

// KnowledgeRow is one fact about the portfolio owner. Absent columns are
// represented as empty strings.
type KnowledgeRow struct {
	ID      uuid.UUID `db:"id" yaml:"-"`
	Project string    `db:"project" yaml:"project"`
	Type    string    `db:"type" yaml:"type"`
	Title   string    `db:"title" yaml:"title"`
	Content string    `db:"content" yaml:"content"`
	Tags    string    `db:"tags" yaml:"tags"`
}

var knownTypes = map[KnowledgeType]bool{
	KnowledgeTypeBio:                true,
	KnowledgeTypeSkills:             true,
	KnowledgeTypeEducation:          true,
	KnowledgeTypeCertification:      true,
	KnowledgeTypePhilosophy:         true,
	KnowledgeTypePersonal:           true,
	KnowledgeTypeContact:            true,
	KnowledgeTypeProjectDescription: true,
}

// Known reports whether t is one of the types the assistant's prompts expect.
func (t KnowledgeType) Known() bool {
	return knownTypes[t]
}
