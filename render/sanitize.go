package render

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// FailMode decides what a sanitizer step returns when it fails internally.
type FailMode string

const (
	// FailOpen returns the step input unchanged.
	FailOpen FailMode = "open"
	// FailClosed returns the step input passed through a strict allow-list policy.
	FailClosed FailMode = "closed"
)

// ParseFailMode maps a config value to a FailMode, defaulting to FailOpen.
func ParseFailMode(s string) FailMode {
	if strings.EqualFold(strings.TrimSpace(s), string(FailClosed)) {
		return FailClosed
	}
	return FailOpen
}

var (
	eventHandlerAttr = regexp.MustCompile(`(?i)^on`)
	embeddedImage    = regexp.MustCompile(`!?\[([^\]]*)\]\(\s*(https?://[^\s)]+)\s*\)`)
	danglingOpen     = regexp.MustCompile(`!\[\s*$`)
	danglingClose    = regexp.MustCompile(`^\s*\)\s*\d*`)
)

type sanitizeStep struct {
	name string
	fn   func(root *html.Node)
}

// Sanitizer strips executable content from generated hypertext and repairs
// image markup the model tends to break. Every step parses, mutates and
// renders on its own, so one failing step leaves the others running.
type Sanitizer struct {
	mode   FailMode
	policy *bluemonday.Policy
	steps  []sanitizeStep
	logger *zap.Logger
}

func NewSanitizer(mode FailMode, logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sanitizer{
		mode:   mode,
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
	s.steps = []sanitizeStep{
		{"drop_script_style", dropScriptStyle},
		{"drop_event_handlers", dropEventHandlers},
		{"drop_javascript_urls", dropJavascriptURLs},
		{"repair_img_src", repairImageSources},
		{"strip_stray_markdown", stripStrayMarkdown},
		{"dedupe_images", dedupeImages},
	}
	return s
}

// Sanitize runs all steps in order. It never panics.
func (s *Sanitizer) Sanitize(fragment string) string {
	out := fragment
	for _, step := range s.steps {
		out = s.run(step, out)
	}
	return out
}

func (s *Sanitizer) run(step sanitizeStep, in string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = s.fallback(step.name, in, fmt.Errorf("panic: %v", r))
		}
	}()

	root, err := parseFragment(in)
	if err != nil {
		return s.fallback(step.name, in, err)
	}
	step.fn(root)
	rendered, err := renderChildren(root)
	if err != nil {
		return s.fallback(step.name, in, err)
	}
	return rendered
}

// TODO: default to FailClosed once preview output has been compared against
// the bluemonday policy on real drafts.
func (s *Sanitizer) fallback(step, in string, err error) string {
	s.logger.Error("sanitize step failed", zap.String("step", step), zap.String("mode", string(s.mode)), zap.Error(err))
	if s.mode == FailClosed {
		return s.policy.Sanitize(in)
	}
	return in
}

func dropScriptStyle(root *html.Node) {
	for _, n := range elements(root, "script", "style") {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func dropEventHandlers(root *html.Node) {
	walk(root, func(n *html.Node) {
		removeAttrs(n, func(a html.Attribute) bool {
			return eventHandlerAttr.MatchString(a.Key)
		})
	})
}

func dropJavascriptURLs(root *html.Node) {
	walk(root, func(n *html.Node) {
		removeAttrs(n, func(a html.Attribute) bool {
			if a.Key != "href" && a.Key != "src" {
				return false
			}
			return isJavascriptURL(a.Val)
		})
	})
}

// 浏览器会忽略 scheme 中的制表符和换行，这里一并去掉再判断。
func isJavascriptURL(v string) bool {
	v = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, v)
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "javascript:")
}

// repairImageSources handles <img src="![alt](https://...)">, also when the
// markdown is percent-encoded: src keeps only the URL and an empty alt is
// filled from the embedded alt text.
func repairImageSources(root *html.Node) {
	for _, img := range elements(root, "img") {
		raw, ok := getAttr(img, "src")
		if !ok {
			continue
		}
		if dec, err := url.PathUnescape(raw); err == nil {
			raw = dec
		}
		m := embeddedImage.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		setAttr(img, "src", m[2])
		if alt, _ := getAttr(img, "alt"); strings.TrimSpace(alt) == "" && strings.TrimSpace(m[1]) != "" {
			setAttr(img, "alt", strings.TrimSpace(m[1]))
		}
	}
}

// stripStrayMarkdown removes a dangling "![" right before an image and a
// dangling ")" with an optional enumerator right after it.
func stripStrayMarkdown(root *html.Node) {
	for _, img := range elements(root, "img") {
		if prev := img.PrevSibling; prev != nil && prev.Type == html.TextNode && danglingOpen.MatchString(prev.Data) {
			prev.Data = strings.TrimRight(danglingOpen.ReplaceAllString(prev.Data, ""), " \t\r\n")
			if strings.TrimSpace(prev.Data) == "" {
				img.Parent.RemoveChild(prev)
			}
		}
		if next := img.NextSibling; next != nil && next.Type == html.TextNode && danglingClose.MatchString(next.Data) {
			next.Data = danglingClose.ReplaceAllString(next.Data, "")
			if strings.TrimSpace(next.Data) == "" {
				img.Parent.RemoveChild(next)
			}
		}
	}
}

// dedupeImages drops an image whose previous element sibling is an image with
// the same src. Text between the two does not separate them.
func dedupeImages(root *html.Node) {
	for _, img := range elements(root, "img") {
		prev := prevElement(img)
		if prev == nil || prev.Data != "img" {
			continue
		}
		prevSrc, _ := getAttr(prev, "src")
		curSrc, _ := getAttr(img, "src")
		if prevSrc != "" && prevSrc == curSrc && img.Parent != nil {
			img.Parent.RemoveChild(img)
		}
	}
}
