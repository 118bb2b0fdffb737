package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderSVG(t *testing.T) {
	dot := ToDOT(exportTree(t), Options{})

	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("output is not an SVG document")
	}
	if !bytes.Contains(svg, []byte(`viewBox="0 0`)) {
		t.Error("viewBox not normalized to zero origin")
	}
	if !bytes.Contains(svg, []byte("Trip plan")) {
		t.Error("root label missing from render")
	}
}

func TestRenderPNG(t *testing.T) {
	dot := ToDOT(exportTree(t), Options{})

	png, err := RenderPNG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("output is not a PNG file")
	}
}

func TestRenderBadDOT(t *testing.T) {
	if _, err := RenderSVG(context.Background(), "definitely not a graph"); err == nil {
		t.Error("malformed DOT should fail to parse")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="8pt" height="6pt" viewBox="-4.00 -40.00 100.00 200.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))

	if !strings.Contains(out, `viewBox="0 0 100.00 200.00"`) {
		t.Errorf("viewBox not rebased: %s", out)
	}
	if !strings.Contains(out, `width="100" height="200"`) {
		t.Errorf("pixel dimensions missing: %s", out)
	}

	// No viewBox means nothing to rewrite.
	plain := []byte(`<svg><g/></svg>`)
	if got := normalizeViewBox(plain); !bytes.Equal(got, plain) {
		t.Errorf("svg without viewBox changed: %s", got)
	}
}
