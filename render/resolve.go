package render

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"ai_news_writer/generator"
)

// MissingImageAlt 是缺图占位图的图注。
const MissingImageAlt = "图片缺失"

const missingImageSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="320" height="180"><rect width="100%" height="100%" fill="#eee"/><text x="50%" y="50%" dominant-baseline="middle" text-anchor="middle" fill="#888">图片缺失</text></svg>`

// MissingImageURL is an inline SVG used wherever a photo cannot be resolved.
var MissingImageURL = "data:image/svg+xml;utf8," + url.PathEscape(missingImageSVG)

var (
	// PhotoToken matches a symbolic photo reference.
	PhotoToken = regexp.MustCompile(`PHOTO:([\w-]+)`)

	markdownPhotoToken = regexp.MustCompile(`!\[([^\]]*)\]\(\s*PHOTO:([\w-]+)\s*\)`)
	attrPhotoToken     = regexp.MustCompile(`(?i)(\b(?:src|href)\s*=\s*["']?)PHOTO:([\w-]+)`)
	absoluteURL        = regexp.MustCompile(`(?i)^https?://`)
	// 冒号被写成字符实体的占位符，渲染后同样会显示成 PHOTO:<id>。
	encodedTokenColon = regexp.MustCompile(`PHOTO(?:&#0*58;?|&#[xX]0*3[aA];?|&colon;)`)
)

// IsAbsoluteURL reports whether u is an http(s) URL.
func IsAbsoluteURL(u string) bool {
	return absoluteURL.MatchString(strings.TrimSpace(u))
}

// PhotoRecord is what the photo lookup service knows about one photo. Several
// field names carry a URL; the first absolute one wins, in declaration order.
type PhotoRecord struct {
	URL              string
	FullURL          string
	CosURL           string
	Src              string
	ThumbSrc         string
	PhotographerName string
}

// AbsoluteURL returns the first absolute candidate URL, or "".
func (p PhotoRecord) AbsoluteURL() string {
	for _, c := range []string{p.URL, p.FullURL, p.CosURL, p.Src, p.ThumbSrc} {
		if IsAbsoluteURL(c) {
			return strings.TrimSpace(c)
		}
	}
	return ""
}

// PhotoLookup fetches a photo by id from a remote service.
type PhotoLookup interface {
	GetPhoto(ctx context.Context, id string) (PhotoRecord, error)
}

// Resolver replaces PHOTO:<id> tokens with concrete image references.
type Resolver struct {
	lookup PhotoLookup
	logger *zap.Logger
}

func NewResolver(lookup PhotoLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

type resolvedPhoto struct {
	url     string
	caption string
}

// Resolution resolves each distinct id at most once across markdown and HTML
// passes that share the same photo data.
type Resolution struct {
	r         *Resolver
	ctx       context.Context
	fromJob   map[string]generator.ResultPhoto
	selection map[string]generator.SelectedPhotoRef
	cache     map[string]*resolvedPhoto
	missing   []string
}

// Begin starts a resolution over the photos returned with the job and the
// caller's current selection.
func (r *Resolver) Begin(ctx context.Context, photos []generator.ResultPhoto, selection []generator.SelectedPhotoRef) *Resolution {
	s := &Resolution{
		r:         r,
		ctx:       ctx,
		fromJob:   make(map[string]generator.ResultPhoto, len(photos)),
		selection: make(map[string]generator.SelectedPhotoRef, len(selection)),
		cache:     make(map[string]*resolvedPhoto),
	}
	for _, p := range photos {
		if p.ID != "" {
			s.fromJob[p.ID] = p
		}
	}
	for _, p := range selection {
		if _, dup := s.selection[p.ID]; p.ID != "" && !dup {
			s.selection[p.ID] = p
		}
	}
	return s
}

// Missing lists ids that fell back to the placeholder, in first-seen order.
func (s *Resolution) Missing() []string {
	return append([]string(nil), s.missing...)
}

func (s *Resolution) resolve(id string) *resolvedPhoto {
	if p, ok := s.cache[id]; ok {
		return p
	}
	var (
		u    string
		name string
	)
	job, inJob := s.fromJob[id]
	sel, inSel := s.selection[id]
	if inJob {
		name = job.PhotographerName
		if IsAbsoluteURL(job.URL) {
			u = strings.TrimSpace(job.URL)
		}
	}
	if inSel && name == "" {
		name = sel.PhotographerName
	}
	if u == "" && inSel {
		for _, c := range []string{sel.URL, sel.ThumbURL} {
			if IsAbsoluteURL(c) {
				u = strings.TrimSpace(c)
				break
			}
		}
	}
	if u == "" && s.r.lookup != nil {
		rec, err := s.r.lookup.GetPhoto(s.ctx, id)
		if err != nil {
			s.r.logger.Warn("photo lookup failed", zap.String("photo_id", id), zap.Error(err))
		} else {
			u = rec.AbsoluteURL()
			if name == "" {
				name = rec.PhotographerName
			}
		}
	}

	var p *resolvedPhoto
	if u != "" {
		p = &resolvedPhoto{url: stripTokens(u, "PHOTO%3A")}
		switch {
		case strings.TrimSpace(name) != "":
			p.caption = "摄影：" + stripTokens(strings.TrimSpace(name), "PHOTO：")
		case inSel && sel.PhotographerID != "":
			p.caption = "摄影：摄影师 #" + stripTokens(sel.PhotographerID, "PHOTO：")
		}
	} else {
		s.missing = append(s.missing, id)
		s.r.logger.Warn("photo missing, using placeholder", zap.String("photo_id", id))
	}
	s.cache[id] = p
	return p
}

func decodeTokenColons(s string) string {
	if !strings.Contains(s, "PHOTO&") {
		return s
	}
	return encodedTokenColon.ReplaceAllString(s, "PHOTO:")
}

// 插入的内容不能再出现 PHOTO:<id> 形式的占位符。
func stripTokens(s, repl string) string {
	return strings.ReplaceAll(s, "PHOTO:", repl)
}

func cleanAlt(alt, id string) string {
	alt = strings.TrimSpace(PhotoToken.ReplaceAllString(alt, "图$1"))
	if alt == "" {
		alt = "图" + id
	}
	return alt
}

// Markdown resolves tokens in markdown: ![alt](PHOTO:id) keeps its alt, a bare
// token becomes a full image reference. Known photographers get a caption line.
func (s *Resolution) Markdown(md string) string {
	md = decodeTokenColons(md)
	if !strings.Contains(md, "PHOTO:") {
		return md
	}
	md = markdownPhotoToken.ReplaceAllStringFunc(md, func(full string) string {
		m := markdownPhotoToken.FindStringSubmatch(full)
		return s.markdownImage(m[2], cleanAlt(m[1], m[2]))
	})
	return PhotoToken.ReplaceAllStringFunc(md, func(full string) string {
		id := full[len("PHOTO:"):]
		return s.markdownImage(id, "图"+id)
	})
}

func (s *Resolution) markdownImage(id, alt string) string {
	p := s.resolve(id)
	if p == nil {
		return "![" + MissingImageAlt + "](" + MissingImageURL + ")"
	}
	img := "![" + alt + "](" + p.url + ")"
	if p.caption != "" {
		img += "\n\n*" + p.caption + "*"
	}
	return img
}

// HTML resolves tokens in hypertext. Tokens used as src/href values are
// replaced by the URL alone; others become <img> or a captioned <figure>.
func (s *Resolution) HTML(h string) string {
	h = decodeTokenColons(h)
	if !strings.Contains(h, "PHOTO:") {
		return h
	}
	h = attrPhotoToken.ReplaceAllStringFunc(h, func(full string) string {
		m := attrPhotoToken.FindStringSubmatch(full)
		u := MissingImageURL
		if p := s.resolve(m[2]); p != nil {
			u = p.url
		}
		return m[1] + html.EscapeString(u)
	})
	h = markdownPhotoToken.ReplaceAllStringFunc(h, func(full string) string {
		m := markdownPhotoToken.FindStringSubmatch(full)
		return s.htmlImage(m[2], cleanAlt(m[1], m[2]))
	})
	return PhotoToken.ReplaceAllStringFunc(h, func(full string) string {
		id := full[len("PHOTO:"):]
		return s.htmlImage(id, "图"+id)
	})
}

func (s *Resolution) htmlImage(id, alt string) string {
	p := s.resolve(id)
	if p == nil {
		return `<img src="` + html.EscapeString(MissingImageURL) + `" alt="` + MissingImageAlt + `"/>`
	}
	img := `<img src="` + html.EscapeString(p.url) + `" alt="` + html.EscapeString(alt) + `" loading="lazy"/>`
	if p.caption == "" {
		return img
	}
	return "<figure>" + img + "<figcaption>" + html.EscapeString(p.caption) + "</figcaption></figure>"
}
