package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Slides extracts the text of every text-bearing shape across every slide of
// a PowerPoint presentation. Legacy binary .ppt files are not ZIP archives
// and fail the open step, surfacing as an extraction error.
type Slides struct{}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (s *Slides) Extract(_ context.Context, content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening presentation: %w", err)
	}

	type slideFile struct {
		number int
		file   *zip.File
	}
	var slides []slideFile
	for _, f := range reader.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var b strings.Builder
	for _, slide := range slides {
		rc, err := slide.file.Open()
		if err != nil {
			return "", fmt.Errorf("opening slide %d: %w", slide.number, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading slide %d: %w", slide.number, err)
		}

		text, err := parseSlideXML(data)
		if err != nil {
			return "", fmt.Errorf("parsing slide %d: %w", slide.number, err)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// parseSlideXML walks the slide markup collecting the character data of
// every a:t run. Paragraph ends become newlines so each shape's text keeps
// its line structure.
func parseSlideXML(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var b strings.Builder
	inRun := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
