// SPDX-License-Identifier: MPL-2.0

package chunk

import "testing"

func TestRule(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Match:    []string{"llm_web", "agent"},
		Origin:   "http://localhost:3003/",
		BasePath: "llm_web",
		ChunkDir: "js/",
	}

	tests := []struct {
		in      string
		matches bool
		want    string
	}{
		{"/llm_web/js/x.js", true, "http://localhost:3003/llm_web/js/x.js"},
		{"http://localhost:3000/llm_web/js/x.js", true, "http://localhost:3003/llm_web/js/x.js"},
		{"http://localhost:3000/js/agent.js?v=2", true, "http://localhost:3003/llm_web/js/agent.js?v=2"},
		{"/js/agent.js", true, "http://localhost:3003/llm_web/js/agent.js"},
		{"js/agent.js", true, "http://localhost:3003/llm_web/js/agent.js"},
		{"agent.js", true, "http://localhost:3003/llm_web/js/agent.js"},
		{"http://localhost:3003/llm_web/js/x.js", false, "http://localhost:3003/llm_web/js/x.js"},
		{"/vendors/vue.js", false, "http://localhost:3003/llm_web/vendors/vue.js"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := rule.Matches(tt.in); got != tt.matches {
				t.Errorf("Matches(%q) = %v, want %v", tt.in, got, tt.matches)
			}
			if got := rule.Rewrite(tt.in); got != tt.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRule_EmptyMatchSelectsForeignURLs(t *testing.T) {
	t.Parallel()

	rule := Rule{Origin: "http://cdn.example", BasePath: "/"}
	if !rule.Matches("/app.js") {
		t.Error("expected empty Match to select any foreign URL")
	}
	if rule.Matches("http://cdn.example/app.js") {
		t.Error("URL already on origin should not match")
	}
	if got := rule.Rewrite("/app.js"); got != "http://cdn.example/app.js" {
		t.Errorf("Rewrite() = %q", got)
	}
}
