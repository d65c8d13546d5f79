// Package domain holds typed identifiers. Each ID wraps a uuid.UUID so a
// CategoryID can never be passed where a DocumentID is expected.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "fleetdocs/pkg/domain-errors"
)

type (
	DocumentID uuid.UUID
	CategoryID uuid.UUID
	RenewalID  uuid.UUID
)

func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }
func NewCategoryID() CategoryID { return CategoryID(uuid.New()) }
func NewRenewalID() RenewalID   { return RenewalID(uuid.New()) }

func (i DocumentID) String() string { return uuid.UUID(i).String() }
func (i CategoryID) String() string { return uuid.UUID(i).String() }
func (i RenewalID) String() string  { return uuid.UUID(i).String() }

func (i DocumentID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i CategoryID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i RenewalID) IsNil() bool  { return uuid.UUID(i) == uuid.Nil }

// ParseDocumentID parses a non-nil document UUID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document_id")
	return DocumentID(u), err
}

// ParseCategoryID parses a non-nil category UUID.
func ParseCategoryID(s string) (CategoryID, error) {
	u, err := parseUUID(s, "category_id")
	return CategoryID(u), err
}

// ParseRenewalID parses a non-nil renewal UUID.
func ParseRenewalID(s string) (RenewalID, error) {
	u, err := parseUUID(s, "renewal_id")
	return RenewalID(u), err
}

// maxIDLength bounds input before it reaches the uuid parser.
const maxIDLength = 64

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is not a valid UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return u, nil
}
