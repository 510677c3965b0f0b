package publish

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed readme.md.tmpl
var readmeTemplateText string

var readmeTemplate = template.Must(template.New("readme").Parse(readmeTemplateText))

const (
	eliteListName = "elite"
	readmeName    = "README.md"
)

// FileSink writes one "<protocol>_proxies.txt" per protocol, an elite list
// and a README summary into Dir.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (s *FileSink) Name() string { return "file" }

type readmeFile struct {
	Label string
	Name  string
	Count int
}

type readmeData struct {
	Report
	Files []readmeFile
}

func (s *FileSink) Publish(_ context.Context, report Report) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	names, lists := protocolLists(report)
	data := readmeData{Report: report}

	for _, name := range names {
		file := listFileName(name)
		if err := writeList(filepath.Join(s.Dir, file), lists[name]); err != nil {
			return err
		}
		data.Files = append(data.Files, readmeFile{Label: strings.ToUpper(name), Name: file, Count: len(lists[name])})
	}

	elite := eliteList(report)
	eliteFile := listFileName(eliteListName)
	if err := writeList(filepath.Join(s.Dir, eliteFile), elite); err != nil {
		return err
	}
	data.Files = append(data.Files, readmeFile{Label: "Elite", Name: eliteFile, Count: len(elite)})

	var readme bytes.Buffer
	if err := readmeTemplate.Execute(&readme, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.Dir, readmeName), readme.Bytes())
}

func listFileName(name string) string {
	return name + "_proxies.txt"
}

func writeList(path string, lines []string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic replaces path with data through a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
