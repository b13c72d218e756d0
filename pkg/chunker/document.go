package chunker

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Supported document types for ParseDocument.
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypeTXT  = "txt"
)

// ExtractionError reports a document that could not be turned into text:
// corrupt content, an unsupported encoding, or an unsupported file type.
// It is reported to the user and never retried.
type ExtractionError struct {
	FileType string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.FileType, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.FileType, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsSupportedType reports whether ParseDocument can handle the given type tag.
func IsSupportedType(fileType string) bool {
	switch strings.ToLower(fileType) {
	case FileTypePDF, FileTypeDOCX, FileTypeTXT:
		return true
	}
	return false
}

// ParseDocument extracts plain text from raw document bytes and routes it
// through the same chunking path as message text. It returns the normalized
// full text together with its chunks.
func (c *Chunker) ParseDocument(content []byte, fileType string) (string, []string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(fileType) {
	case FileTypePDF:
		text, err = extractPDF(content)
	case FileTypeDOCX:
		text, err = extractDOCX(content)
	case FileTypeTXT:
		text, err = extractTXT(content)
	default:
		return "", nil, &ExtractionError{FileType: fileType, Reason: "unsupported file type"}
	}
	if err != nil {
		return "", nil, err
	}

	text = NormalizeText(text)
	return text, c.Chunk(text), nil
}

func extractPDF(content []byte) (text string, err error) {
	// The pdf library panics on some malformed inputs instead of returning an
	// error; a corrupt upload must surface as an ExtractionError, not a crash.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{FileType: FileTypePDF, Reason: fmt.Sprintf("corrupt document: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{FileType: FileTypePDF, Reason: "corrupt document", Err: err}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{FileType: FileTypePDF, Reason: "text extraction failed", Err: err}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", &ExtractionError{FileType: FileTypePDF, Reason: "text extraction failed", Err: err}
	}
	return buf.String(), nil
}

// extractDOCX reads the main document part of the OOXML package and joins
// paragraph texts with spaces.
func extractDOCX(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{FileType: FileTypeDOCX, Reason: "corrupt document", Err: err}
	}

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", &ExtractionError{FileType: FileTypeDOCX, Reason: "missing word/document.xml"}
	}

	rc, err := document.Open()
	if err != nil {
		return "", &ExtractionError{FileType: FileTypeDOCX, Reason: "corrupt document", Err: err}
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ExtractionError{FileType: FileTypeDOCX, Reason: "malformed document xml", Err: err}
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString(" ")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func extractTXT(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", &ExtractionError{FileType: FileTypeTXT, Reason: "unsupported encoding, expected UTF-8"}
	}
	return string(content), nil
}
