// Package validator checks that a chosen file is an acceptable drawing before
// anything is sent to the backend.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultExtensions are the drawing formats the backend accepts.
var DefaultExtensions = []string{"dwg", "dxf"}

// Candidate is a file the user picked but that has not been checked yet.
type Candidate struct {
	Name string
	Data []byte
}

// SelectedFile is a candidate that passed validation. It is never mutated;
// a new selection replaces it.
type SelectedFile struct {
	Name      string
	Data      []byte
	Extension string
}

// Size returns the payload length in bytes.
func (f *SelectedFile) Size() int64 {
	return int64(len(f.Data))
}

// ValidationError explains why a candidate was rejected.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validator accepts files whose extension is in a fixed allowed set.
type Validator struct {
	allowed map[string]struct{}
}

// New creates a Validator for the given extensions. Leading dots and case are
// ignored; an empty list falls back to DefaultExtensions.
func New(extensions []string) *Validator {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	v := &Validator{
		allowed: make(map[string]struct{}, len(extensions)),
	}
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		v.allowed[foldExt(ext)] = struct{}{}
	}
	return v
}

// Allowed returns the accepted extensions, sorted.
func (v *Validator) Allowed() []string {
	exts := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Validate returns the selected file when c has an allowed extension.
// It performs no I/O.
func (v *Validator) Validate(c *Candidate) (*SelectedFile, error) {
	if c == nil {
		return nil, &ValidationError{Reason: "no file selected"}
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, &ValidationError{Reason: "file name is empty"}
	}

	ext := Extension(name)
	if ext == "" {
		return nil, &ValidationError{Name: name, Reason: fmt.Sprintf("%s has no file extension; %s", name, v.expectation())}
	}

	if _, ok := v.allowed[foldExt(ext)]; !ok {
		return nil, &ValidationError{Name: name, Reason: fmt.Sprintf("unsupported file type .%s; %s", ext, v.expectation())}
	}

	return &SelectedFile{
		Name:      name,
		Data:      c.Data,
		Extension: strings.ToLower(ext),
	}, nil
}

// Extension returns the part of name after the last dot, without the dot.
// Names that are only an extension (".dwg") have none.
func Extension(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return ""
	}
	return ext[1:]
}

// foldExt case-folds an extension. A Caser keeps state, so each call gets its own.
func foldExt(ext string) string {
	return cases.Fold().String(ext)
}

func (v *Validator) expectation() string {
	exts := v.Allowed()
	for i, ext := range exts {
		exts[i] = strings.ToUpper(ext)
	}
	return fmt.Sprintf("please select a valid %s file", strings.Join(exts, " or "))
}
