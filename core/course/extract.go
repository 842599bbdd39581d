package course

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"VoxTA/model"
)

var (
	slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	notesPattern = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// ExtractPPTX 从pptx字节中抽取每页的文本与备注。
// pptx本质是zip包，页面文本在 ppt/slides/slideN.xml 的 <a:t> 节点里。
func ExtractPPTX(data []byte) ([]model.SlideContent, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid pptx archive: %w", err)
	}

	slideFiles := make(map[int]*zip.File)
	notesFiles := make(map[int]*zip.File)
	for _, f := range reader.File {
		if m := slidePattern.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slideFiles[n] = f
		} else if m := notesPattern.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			notesFiles[n] = f
		}
	}
	if len(slideFiles) == 0 {
		return nil, fmt.Errorf("no slides found in pptx")
	}

	numbers := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	slides := make([]model.SlideContent, 0, len(numbers))
	for i, n := range numbers {
		paragraphs, err := extractParagraphs(slideFiles[n])
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", n, err)
		}

		slide := model.SlideContent{Index: i}
		if len(paragraphs) > 0 {
			// 第一段当作标题
			slide.Title = paragraphs[0]
			slide.Text = strings.Join(paragraphs, "\n")
		}

		if nf, ok := notesFiles[n]; ok {
			noteParagraphs, err := extractParagraphs(nf)
			if err == nil {
				slide.Notes = strings.Join(noteParagraphs, "\n")
			}
		}

		slides = append(slides, slide)
	}
	return slides, nil
}

// extractParagraphs 扫描slide XML，按段落收集 <a:t> 文本
func extractParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	paragraphs := make([]string, 0)
	var current strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return paragraphs, nil
}

// NarrationText 返回一页幻灯片用于配音的文本。
// 优先讲备注，没有备注就念页面文本，两者都空则报出页码。
func NarrationText(slide model.SlideContent) string {
	if strings.TrimSpace(slide.Notes) != "" {
		return slide.Notes
	}
	if strings.TrimSpace(slide.Text) != "" {
		return slide.Text
	}
	return fmt.Sprintf("第%d页。", slide.Index+1)
}
