package models

import "strconv"

// Section is one addressable unit of document text (one page-equivalent).
type Section struct {
	ID   int    `json:"section_id"`
	Text string `json:"text"`
}

// DocumentID is the identifier a section is stored under in its collection.
func (s Section) DocumentID() string {
	return SectionDocumentID(s.ID)
}

// SectionDocumentID formats the index document-id for a section id.
func SectionDocumentID(id int) string {
	return "section_" + strconv.Itoa(id)
}

// SectionMetadata is the metadata stored alongside every indexed section.
type SectionMetadata struct {
	SectionID int `json:"section_id"`
}

// RetrievalResult is a ranked hit from a similarity query.
type RetrievalResult struct {
	Text       string          `json:"text"`
	Metadata   SectionMetadata `json:"metadata"`
	Confidence float64         `json:"confidence"`
}
