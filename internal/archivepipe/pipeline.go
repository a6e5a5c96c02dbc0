package archivepipe

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"regexp"

	"docmind/internal/apperr"
)

// Pipeline turns one archive file into a lazy sequence of Topics: extract,
// walk, classify, convert.
type Pipeline struct {
	Extractor    Extractor
	ScratchRoot  string
}

// NewPipeline builds a Pipeline, preferring a CommandExtractor and falling
// back to ZipExtractor whenever the configured command fails, including
// when it cannot be found on PATH.
func NewPipeline(unpackCmd, scratchRoot string) *Pipeline {
	return &Pipeline{Extractor: fallbackExtractor{primary: CommandExtractor{Command: unpackCmd}, fallback: ZipExtractor{}}, ScratchRoot: scratchRoot}
}

type fallbackExtractor struct {
	primary, fallback Extractor
}

func (f fallbackExtractor) Extract(ctx context.Context, archivePath, scratchDir string) error {
	if err := f.primary.Extract(ctx, archivePath, scratchDir); err != nil {
		return f.fallback.Extract(ctx, archivePath, scratchDir)
	}
	return nil
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if len(m) > 1 {
		return regexp.MustCompile(`\s+`).ReplaceAllString(m[1], " ")
	}
	return ""
}

// Run extracts archivePath into a scratch directory and yields a Topic per
// classified HTML/Markdown file found, converting HTML to Markdown along
// the way. Every topic carries the (version, language) pair derived once
// from the archive file itself (see DeriveArchiveVersionLanguage), not
// from each member's path. Errors encountered for an individual file are
// yielded alongside a zero Topic rather than aborting the whole archive,
// matching the per-file error isolation described for 4.A.
func (p *Pipeline) Run(ctx context.Context, archivePath string) iter.Seq2[Topic, error] {
	return func(yield func(Topic, error) bool) {
		version, language := DeriveArchiveVersionLanguage(archivePath)
		scratchDir := filepath.Join(p.ScratchRoot, filepath.Base(archivePath)+".extracted")
		defer os.RemoveAll(scratchDir)

		if err := p.Extractor.Extract(ctx, archivePath, scratchDir); err != nil {
			yield(Topic{}, err)
			return
		}

		files, err := Walk(scratchDir)
		if err != nil {
			yield(Topic{}, err)
			return
		}

		for _, rel := range files {
			select {
			case <-ctx.Done():
				yield(Topic{}, ctx.Err())
				return
			default:
			}

			class := Classify(rel)
			if class != ClassHTML && class != ClassMarkdown {
				continue
			}

			full := filepath.Join(scratchDir, rel)
			raw, err := os.ReadFile(full)
			if err != nil {
				if !yield(Topic{}, apperr.New(apperr.Retriable, "read archive member "+rel, err)) {
					return
				}
				continue
			}

			var md, title string
			if class == ClassHTML {
				title = extractTitle(string(raw))
				md, err = ConvertHTML(string(raw), title)
				if err != nil {
					if !yield(Topic{}, err) {
						return
					}
					continue
				}
			} else {
				md = string(raw)
			}

			t := Topic{
				ID:       DeriveID(version, language, rel),
				Version:  version,
				Language: language,
				Path:     rel,
				Title:    title,
				Markdown: md,
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}
