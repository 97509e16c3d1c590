package adapter

import (
	"strings"
	"unicode/utf8"

	"github.com/plexuslabs/plexus/engine/plexerr"
)

const minFragmentTextLength = 1

// FragmentInput is the payload shape for input_kind "fragment" (section 6).
type FragmentInput struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Source string   `json:"source,omitempty"`
	Date   string   `json:"date,omitempty"`
}

func validateFragment(in FragmentInput) error {
	if utf8.RuneCountInString(strings.TrimSpace(in.Text)) < minFragmentTextLength {
		return plexerr.New("text", in.Text, plexerr.ErrInvalidInput)
	}
	return nil
}

// AnnotateInput is the payload shape for input_kind "annotate" (section 6).
type AnnotateInput struct {
	ChainName  string   `json:"chain_name"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Annotation string   `json:"annotation"`
	Tags       []string `json:"tags"`
}

func validateAnnotate(in AnnotateInput) error {
	if strings.TrimSpace(in.ChainName) == "" {
		return plexerr.New("chain_name", in.ChainName, plexerr.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Annotation) == "" {
		return plexerr.New("annotation", in.Annotation, plexerr.ErrInvalidInput)
	}
	return nil
}
