package importer

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files. Lines underlined with "=" or "-"
// (setext style) open level 1 and level 2 sections; everything else is
// paragraph text.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Outline, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	b := newOutlineBuilder(DocumentName(filename))
	var para strings.Builder
	flushPara := func() {
		b.paragraph(para.String())
		para.Reset()
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			flushPara()
			continue
		}
		if i+1 < len(lines) && para.Len() == 0 {
			if level := underlineLevel(lines[i+1]); level > 0 {
				b.heading(level, strings.TrimSpace(line))
				i++
				continue
			}
		}
		if para.Len() > 0 {
			para.WriteString("\n")
		}
		para.WriteString(line)
	}
	flushPara()
	return b.finish(), nil
}

func underlineLevel(line string) int {
	if len(line) < 3 {
		return 0
	}
	switch {
	case strings.Trim(line, "=") == "":
		return 1
	case strings.Trim(line, "-") == "":
		return 2
	}
	return 0
}
