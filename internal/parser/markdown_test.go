package parser

import (
	"strings"
	"testing"
)

func TestExtractMarkdown_HeadingsAndBody(t *testing.T) {
	src := `# Overview

Intro paragraph.

## Install

Run the installer.

- step one
- step two
`
	got, err := ExtractText(strings.NewReader(src), "README.md")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"# Overview", "Intro paragraph.", "## Install", "Run the installer.", "step one"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "Intro paragraph."); n != 1 {
		t.Errorf("paragraph text duplicated %d times", n)
	}
}

func TestExtractMarkdown_NoHeadings(t *testing.T) {
	got, err := ExtractText(strings.NewReader("just a line of prose"), "notes.md")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(got, "just a line of prose") {
		t.Errorf("output = %q", got)
	}
}

func TestExtractHTML_DropsChromeKeepsContent(t *testing.T) {
	src := `<html><head><title>My Project</title><style>body{}</style></head>
<body>
<nav>skip this</nav>
<h1>My Project</h1>
<p>A useful thing.</p>
<script>evil()</script>
<h2>Usage</h2>
<p>Call it.</p>
</body></html>`
	got, err := ExtractText(strings.NewReader(src), "index.html")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"# My Project", "A useful thing.", "## Usage", "Call it."} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, reject := range []string{"skip this", "evil()", "body{}"} {
		if strings.Contains(got, reject) {
			t.Errorf("output should not contain %q:\n%s", reject, got)
		}
	}
}

func TestExtractCSV_HeadersFlattened(t *testing.T) {
	src := "name,lang\nwidget,go\ngadget,rust\n"
	got, err := ExtractText(strings.NewReader(src), "data.csv")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"Headers: name, lang", "name: widget, lang: go", "name: gadget, lang: rust"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
