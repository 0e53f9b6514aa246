package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentType identifies one of the fixed document slots.
type DocumentType string

const (
	DocProfileImage          DocumentType = "profile_image"
	DocClass10Certificate    DocumentType = "class_10_certificate"
	DocClass12Certificate    DocumentType = "class_12_certificate"
	DocDegreeCertificate     DocumentType = "degree_certificate"
	DocResume                DocumentType = "resume"
	DocExperienceCertificate DocumentType = "experience_certificate"
)

// DocumentTypes lists every slot in display order.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocProfileImage,
		DocClass10Certificate,
		DocClass12Certificate,
		DocDegreeCertificate,
		DocResume,
		DocExperienceCertificate,
	}
}

// RequiredDocumentTypes lists the slots that gate the Documents stage.
func RequiredDocumentTypes() []DocumentType {
	var out []DocumentType
	for _, t := range DocumentTypes() {
		if t.Required() {
			out = append(out, t)
		}
	}
	return out
}

// Valid reports whether t is one of the fixed slots.
func (t DocumentType) Valid() bool {
	switch t {
	case DocProfileImage, DocClass10Certificate, DocClass12Certificate,
		DocDegreeCertificate, DocResume, DocExperienceCertificate:
		return true
	}
	return false
}

// Required reports whether the slot must be filled before review.
func (t DocumentType) Required() bool {
	switch t {
	case DocProfileImage, DocClass10Certificate, DocClass12Certificate, DocDegreeCertificate, DocResume:
		return true
	case DocExperienceCertificate:
		return false
	}
	return false
}

// Label is the human-readable slot name.
func (t DocumentType) Label() string {
	switch t {
	case DocProfileImage:
		return "Profile Image"
	case DocClass10Certificate:
		return "Class 10 Certificate"
	case DocClass12Certificate:
		return "Class 12 Certificate"
	case DocDegreeCertificate:
		return "Degree Certificate"
	case DocResume:
		return "Resume"
	case DocExperienceCertificate:
		return "Experience Certificate"
	}
	return string(t)
}

// ParseDocumentType converts a path or form value into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// DocumentStatus is the lifecycle state of one document slot.
type DocumentStatus string

const (
	DocumentNotUploaded DocumentStatus = "not_uploaded"
	DocumentUploaded    DocumentStatus = "uploaded"
	DocumentVerified    DocumentStatus = "verified"
	DocumentRejected    DocumentStatus = "rejected"
)

// Valid reports whether s belongs to the closed status set.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentNotUploaded, DocumentUploaded, DocumentVerified, DocumentRejected:
		return true
	}
	return false
}

// ParseDocumentStatus converts a request value into a DocumentStatus.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown document status %q", s)
	}
	return st, nil
}

// Document is one (applicant, type) slot. Rows for all types are created at
// first sign-in and never deleted.
type Document struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime:false;not null" json:"updated_at"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_documents_user_type" json:"user_id"`
	Type        DocumentType   `gorm:"size:40;not null;uniqueIndex:idx_documents_user_type" json:"type"`
	Status      DocumentStatus `gorm:"size:20;not null;default:'not_uploaded'" json:"status"`
	FileName    string         `gorm:"size:255" json:"file_name,omitempty"`
	UploadDate  *time.Time     `json:"upload_date,omitempty"`
	ContentType string         `gorm:"size:100" json:"content_type,omitempty"`
	SizeBytes   int64          `json:"size_bytes,omitempty"`
	StorageKey  string         `gorm:"size:512" json:"-"`
	Notes       string         `gorm:"type:text" json:"notes,omitempty"`
}

// OwnerID returns the applicant the slot belongs to.
func (d Document) OwnerID() uuid.UUID { return d.UserID }

// Uploaded reports whether a file was ever submitted for this slot; verified
// and rejected documents count.
func (d Document) Uploaded() bool { return d.Status != DocumentNotUploaded }

// IndexByType maps documents by slot. Missing slots are absent from the map.
func IndexByType(docs []Document) map[DocumentType]Document {
	m := make(map[DocumentType]Document, len(docs))
	for _, d := range docs {
		m[d.Type] = d
	}
	return m
}
