package registry

import (
	"bufio"
	"io"
	"os"
	"strings"

	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// RegisterBuiltins adds the content types that ship with kiln: "raw" for
// opaque byte blobs and "text" for line-oriented text assets.
func RegisterBuiltins(t *Table) error {
	if err := t.Register("raw", Entry{
		ImporterName:  "RawImporter",
		ProcessorName: "PassthroughProcessor",
		LoaderName:    "RawLoader",
		NewImporter:   func() ports.Importer { return &rawImporter{} },
		NewProcessor:  func() ports.Processor { return &passthroughProcessor{} },
		NewWriter:     func() ports.Writer { return &rawWriter{} },
	}); err != nil {
		return err
	}
	return t.Register("text", Entry{
		ImporterName:  "TextImporter",
		ProcessorName: "TextProcessor",
		LoaderName:    "TextLoader",
		NewImporter:   func() ports.Importer { return &textImporter{} },
		NewProcessor:  func() ports.Processor { return newTextProcessor() },
		NewWriter:     func() ports.Writer { return &textWriter{} },
		Fields: []ports.ParameterField{
			{Name: "case", Type: "string", Default: "none"},
			{Name: "prefix", Type: "string", Default: ""},
			{Name: "include", Type: "path", Default: ""},
		},
	})
}

// rawImporter yields the whole source as a single []byte object.
type rawImporter struct {
	done bool
}

func (ri *rawImporter) Read(r io.Reader) (any, error) {
	if ri.done {
		ri.done = false
		return nil, io.EOF
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read source")
	}
	ri.done = true
	return data, nil
}

type passthroughProcessor struct{}

func (*passthroughProcessor) Reset() {}

func (*passthroughProcessor) SetParameter(name, _ string) error {
	return zerr.With(zerr.New("unknown parameter"), "name", name)
}

func (*passthroughProcessor) Process(obj any) (any, error) {
	return obj, nil
}

type rawWriter struct{}

func (*rawWriter) Begin(io.Writer) error { return nil }

func (*rawWriter) Write(w io.Writer, obj any) error {
	data, ok := obj.([]byte)
	if !ok {
		return zerr.New("raw writer expects []byte objects")
	}
	_, err := w.Write(data)
	return err
}

func (*rawWriter) End(io.Writer) error { return nil }

// textImporter yields the source line by line as string objects, so large
// text assets stream through the pipeline chunk-wise.
type textImporter struct {
	scanner *bufio.Scanner
}

func (ti *textImporter) Read(r io.Reader) (any, error) {
	if ti.scanner == nil {
		ti.scanner = bufio.NewScanner(r)
		ti.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	}
	if !ti.scanner.Scan() {
		err := ti.scanner.Err()
		ti.scanner = nil
		if err != nil {
			return nil, zerr.Wrap(err, "failed to scan source")
		}
		return nil, io.EOF
	}
	return ti.scanner.Text(), nil
}

// textProcessor rewrites lines. Declared parameters: "case" folds lines to
// upper or lower case, "prefix" is prepended per line, and "include" names
// an external file whose lines are reported as a build dependency and
// emitted ahead of the first source line.
type textProcessor struct {
	caseMode string
	prefix   string
	include  string

	// includeEmitted tracks whether the include header already went out
	// for the current item.
	includeEmitted bool
}

func newTextProcessor() *textProcessor {
	p := &textProcessor{}
	p.Reset()
	return p
}

func (p *textProcessor) Reset() {
	p.caseMode = "none"
	p.prefix = ""
	p.include = ""
	p.includeEmitted = false
}

func (p *textProcessor) SetParameter(name, value string) error {
	switch name {
	case "case":
		switch value {
		case "none", "upper", "lower":
			p.caseMode = value
			return nil
		default:
			return zerr.With(zerr.New("invalid case value"), "value", value)
		}
	case "prefix":
		p.prefix = value
		return nil
	case "include":
		p.include = value
		return nil
	default:
		return zerr.With(zerr.New("unknown parameter"), "name", name)
	}
}

func (p *textProcessor) Process(obj any) (any, error) {
	line, ok := obj.(string)
	if !ok {
		return nil, zerr.New("text processor expects string objects")
	}
	out := line
	switch p.caseMode {
	case "upper":
		out = strings.ToUpper(out)
	case "lower":
		out = strings.ToLower(out)
	}
	out = p.prefix + out
	if p.include == "" || p.includeEmitted {
		return out, nil
	}
	header, err := os.ReadFile(p.include)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read include"), "path", p.include)
	}
	p.includeEmitted = true
	return strings.TrimRight(string(header), "\n") + "\n" + out, nil
}

// Dependencies reports the include file so edits to it invalidate items.
func (p *textProcessor) Dependencies() []string {
	if p.include == "" {
		return nil
	}
	return []string{p.include}
}

type textWriter struct{}

func (*textWriter) Begin(io.Writer) error { return nil }

func (*textWriter) Write(w io.Writer, obj any) error {
	line, ok := obj.(string)
	if !ok {
		return zerr.New("text writer expects string objects")
	}
	if _, err := io.WriteString(w, line); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (*textWriter) End(io.Writer) error { return nil }
