/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Schema Document Loading
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schemadocs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files Load cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// yamlFile is the layout of a YAML schema document file.
type yamlFile struct {
	Documents []Document `yaml:"documents"`
}

// IsSupported reports whether Load understands the file's extension.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".sql", ".yaml", ".yml", ".html", ".htm":
		return true
	}
	return false
}

// Load reads schema documents from a file or, recursively, from every
// supported file in a directory. Files are read in lexical order.
func Load(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSupported(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(files)

	var docs []Document
	for _, f := range files {
		fileDocs, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// LoadFile reads the documents in a single file.
func LoadFile(path string) ([]Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(path, content)
	case ".html", ".htm":
		text, title, err := ConvertHTML(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return single(path, firstNonEmpty(title, base), text), nil
	case ".md", ".markdown", ".txt", ".sql":
		text := string(content)
		return single(path, firstNonEmpty(markdownTitle(text), base), text), nil
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

func single(source, title, content string) []Document {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return []Document{{Source: source, Title: title, Content: content}}
}

func parseYAML(path string, content []byte) ([]Document, error) {
	var file yamlFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	docs := make([]Document, 0, len(file.Documents))
	for i, d := range file.Documents {
		d.Content = strings.TrimSpace(d.Content)
		if d.Content == "" {
			continue
		}
		if d.Source == "" {
			d.Source = path
		}
		if d.Title == "" {
			d.Title = fmt.Sprintf("%s#%d", filepath.Base(path), i+1)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// ConvertHTML converts an HTML page to markdown and returns it with the
// page title.
func ConvertHTML(content []byte) (string, string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := strings.TrimSpace(page.Find("title").First().Text())

	converter := md.NewConverter("", true, nil)
	converter.Remove("script", "style", "nav")
	markdown, err := converter.ConvertBytes(content)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert HTML: %w", err)
	}

	text := strings.TrimSpace(string(markdown))
	if title != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, title))
		text = "# " + title + "\n\n" + text
	}
	return text, title, nil
}

// markdownTitle returns the first level one heading, skipping YAML front
// matter.
func markdownTitle(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	inFrontMatter := false
	delimiters := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "---" && delimiters < 2 {
			delimiters++
			inFrontMatter = delimiters == 1
			continue
		}
		if inFrontMatter {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
