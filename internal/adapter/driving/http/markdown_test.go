package httphandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty input", "", ""},
		{"bold", "**VPR Failed**", "<p><strong>VPR Failed</strong></p>\n"},
		{"link", "[preview](https://deploy-preview-42--example.netlify.app)",
			"<p><a href=\"https://deploy-preview-42--example.netlify.app\" rel=\"nofollow\">preview</a></p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderMarkdown(tt.src))
		})
	}
}

func TestRenderMarkdown_StripsScriptTags(t *testing.T) {
	out := RenderMarkdown(`hello <script>alert("x")</script> world`)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}

func TestRenderMarkdown_GFMStrikethrough(t *testing.T) {
	assert.Contains(t, RenderMarkdown("~~old status~~"), "<del>old status</del>")
}
