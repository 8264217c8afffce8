// Package scheme expands naming-scheme templates into destination
// paths. Rendering is a pure function; unknown tokens become empty
// strings, never errors.
package scheme

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amaumene/renamarr/internal/models"
)

var (
	unknownTokenRegex = regexp.MustCompile(`\{[^{}]*\}`)
	slashRunRegex     = regexp.MustCompile(`/+`)
	spaceRunRegex     = regexp.MustCompile(`\s+`)
	emptyGroupRegex   = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	dotRunRegex       = regexp.MustCompile(`\.{2,}`)
)

// illegalChars are characters no mainstream filesystem accepts in a
// path segment. They are replaced, not deleted, so the ordering of the
// surviving characters is untouched.
const illegalChars = `<>:"\|?*`

// Render expands a scheme template with tokens from the match and
// optional technical info. tech may be nil; its tokens then render
// empty. The returned path is relative and sanitized per segment.
func Render(scheme string, match *models.Match, tech *models.TechInfo) string {
	if tech == nil {
		tech = &models.TechInfo{}
	}

	var season, episode, combined string
	if match.Season != nil {
		season = fmt.Sprintf("%02d", *match.Season)
	}
	if match.Episode != nil {
		episode = fmt.Sprintf("%02d", *match.Episode)
	}
	if match.Season != nil && match.Episode != nil {
		combined = fmt.Sprintf("S%02dE%02d", *match.Season, *match.Episode)
	}

	var year string
	if match.Metadata.Year != 0 {
		year = fmt.Sprintf("%d", match.Metadata.Year)
	}

	replacer := strings.NewReplacer(
		"{n}", match.Metadata.Title,
		"{y}", year,
		"{t}", match.Metadata.EpisodeTitle,
		"{s}", season,
		"{e}", episode,
		"{s00e00}", combined,
		"{vf}", tech.Resolution,
		"{vc}", tech.VideoCodec,
		"{af}", tech.AudioCodec,
		"{ac}", tech.Channels,
	)

	rendered := replacer.Replace(scheme)
	rendered = unknownTokenRegex.ReplaceAllString(rendered, "")
	rendered = slashRunRegex.ReplaceAllString(rendered, "/")

	segments := strings.Split(rendered, "/")
	cleaned := segments[:0]
	for _, segment := range segments {
		segment = sanitizeSegment(segment)
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}
	return strings.Join(cleaned, "/")
}

// sanitizeSegment replaces illegal filesystem characters and collapses
// the whitespace the replacements and empty tokens leave behind.
func sanitizeSegment(segment string) string {
	segment = strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalChars, r) {
			return '-'
		}
		return r
	}, segment)
	// Empty tokens leave husks behind: "()", "[]", doubled dots.
	segment = emptyGroupRegex.ReplaceAllString(segment, " ")
	segment = dotRunRegex.ReplaceAllString(segment, ".")
	segment = spaceRunRegex.ReplaceAllString(segment, " ")
	segment = strings.TrimSpace(segment)
	segment = strings.TrimRight(segment, ". ")
	// A segment of only dots would escape the destination root.
	if strings.Trim(segment, ".") == "" {
		return ""
	}
	return segment
}

// BuiltinPresets maps preset names to scheme templates. User presets
// stored in the database are merged on top, user wins on conflict.
var BuiltinPresets = map[string]string{
	"Plex - Movie":          "{n} ({y})",
	"Plex - Movie (folder)": "{n} ({y})/{n} ({y})",
	"Plex - TV":             "{n}/Season {s}/{n} - {s00e00} - {t}",
	"Plex - TV (no title)":  "{n}/Season {s}/{n} - {s00e00}",
	"Kodi - Movie":          "{n} ({y})/{n} ({y})",
	"Kodi - TV":             "{n}/Season {s}/{n} {s00e00}",
	"Jellyfin - Movie":      "{n} ({y})",
	"Jellyfin - TV":         "{n}/Season {s}/{s00e00} - {t}",
	"FileBot Style":         "{n}.{y}.{vf}.{vc}.{af}",
	"FileBot Style (TV)":    "{n}/Season {s}/{n}.{s00e00}.{vf}.{vc}.{af}",
	"Anime - Simple":        "[{n}] {s00e00} - {t}",
	"Anime - Detailed":      "[{n}] {s00e00} - {t} [{vf}][{vc}]",
	"Simple":                "{n} ({y})",
	"Detailed":              "{n} ({y}) [{vf}] [{vc}] [{af}] [{ac}]",
	"Technical":             "{n}.{y}.{vf}.{vc}.{af}.{ac}",
}
