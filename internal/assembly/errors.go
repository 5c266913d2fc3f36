package assembly

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField      = errors.New("missing required parameter")
	ErrNoFileSelected    = errors.New("no main contract file selected")
	ErrUnsupportedType   = errors.New("unsupported file format, please upload a PDF file")
	ErrNoUpload          = errors.New("no main contract or attachments found")
	ErrMainNotFound      = errors.New("main contract file does not exist")
	ErrFileNotFound      = errors.New("file does not exist")
	ErrSealImageNotFound = errors.New("seal image does not exist")
	ErrOutsideStorage    = errors.New("file is outside the storage directories")
)

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// UnsupportedFileError rejects one attachment of a batch.
type UnsupportedFileError struct {
	Filename string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("attachment has an unsupported format or no file selected: %s", e.Filename)
}

func (e *UnsupportedFileError) Is(target error) bool {
	return target == ErrUnsupportedType
}

type MissingAttachmentError struct {
	ID string
}

func (e *MissingAttachmentError) Error() string {
	return fmt.Sprintf("attachment file does not exist: %s", e.ID)
}

func (e *MissingAttachmentError) Is(target error) bool {
	return target == ErrFileNotFound
}

// PageOutOfRangeError reports the real page count of the document.
type PageOutOfRangeError struct {
	Page  int
	Total int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("seal page %d is out of range, the document has %d pages", e.Page, e.Total)
}
