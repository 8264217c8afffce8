package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/renamarr/internal/models"
)

// Episode shapes in priority order. The first shape that matches
// anywhere in the name wins and its span is cut out of the text.
// The bare digitsEdigits shape keeps "Show01E02" from swallowing the
// numbers into the title, so episode shapes run before the year/title
// split.
var episodeShapes = []*regexp.Regexp{
	regexp.MustCompile(`[Ss](\d{1,2})[Ee](\d{1,3})`),
	regexp.MustCompile(`(\d{1,2})[Ee](\d{1,3})`),
	regexp.MustCompile(`(\d{1,2})[xX](\d{1,3})`),
}

var (
	leadingBracketRegex  = regexp.MustCompile(`^\s*\[([^\[\]]*)\]\s*`)
	trailingBracketRegex = regexp.MustCompile(`\s*\[([^\[\]]*)\]\s*$`)
	channelsRegex        = regexp.MustCompile(`\b(\d\.\d)\b`)
	separatorRegex       = regexp.MustCompile(`[._\-]+`)
	spaceRegex           = regexp.MustCompile(`\s+`)
)

// Closed release-tag vocabularies. Tokens outside these sets are not
// release tags; they belong to the title or the episode title.
var (
	resolutionTags = tagSet("480p", "576p", "720p", "1080p", "1440p", "2160p", "4320p", "4k", "uhd")
	sourceTags     = tagSet("bluray", "blu-ray", "bdrip", "brrip", "remux", "web-dl", "webdl", "webrip", "web", "hdtv", "dvdrip", "dvd", "hdrip", "cam")
	videoCodecTags = tagSet("x264", "x265", "h264", "h265", "hevc", "avc", "av1", "xvid", "divx", "vp9")
	audioTags      = tagSet("aac", "ac3", "eac3", "dts", "dts-hd", "truehd", "atmos", "flac", "mp3", "opus", "ddp", "dd")
	miscTags       = tagSet("hdr", "hdr10", "dv", "dovi", "8bit", "10bit", "proper", "repack", "extended", "remastered", "internal", "limited")
)

const earliestYear = 1888 // first year of recorded film

// Parse tokenizes a filename into a structured guess. It never fails:
// the worst case is a Guess carrying only a cleaned-up title.
func Parse(filename string) models.Guess {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var tags []string
	name, tags = stripBracketGroups(name, tags)

	guess := models.Guess{}

	before, after, hasEpisode := splitEpisode(name, &guess)
	if !hasEpisode {
		before = name
		after = ""
	}

	// Year scan: leftmost valid token wins. Text after the year feeds
	// the release-tag vocabularies, never the title.
	var tagText string
	if start, end, year := findYear(before); year != 0 {
		guess.Year = year
		tagText = before[end:]
		before = before[:start]
	} else if start, end, year := findYear(after); year != 0 {
		guess.Year = year
		after = after[:start] + " " + after[end:]
	}

	guess.Title = cleanTitle(before)

	tags = classifyTags(tagText, tags, nil)
	if hasEpisode {
		tags = classifyTags(after, tags, &guess.EpisodeTitle)
	} else {
		tags = classifyTags(after, tags, nil)
	}
	guess.ReleaseTags = tags

	if guess.Title == "" {
		// Best effort: fall back to the whole cleaned name rather
		// than an empty guess.
		guess.Title = cleanTitle(name)
	}

	return guess
}

// stripBracketGroups removes leading and trailing [...] groups,
// collecting their contents as release tags.
func stripBracketGroups(name string, tags []string) (string, []string) {
	for {
		match := leadingBracketRegex.FindStringSubmatch(name)
		if match == nil {
			break
		}
		if tag := normalizeTag(match[1]); tag != "" {
			tags = append(tags, tag)
		}
		name = name[len(match[0]):]
	}
	for {
		match := trailingBracketRegex.FindStringSubmatch(name)
		if match == nil {
			break
		}
		if tag := normalizeTag(match[1]); tag != "" {
			tags = append(tags, tag)
		}
		name = name[:len(name)-len(match[0])]
	}
	return name, tags
}

// splitEpisode finds the highest-priority episode shape and cuts its
// span out, returning the text before and after it.
func splitEpisode(name string, guess *models.Guess) (before, after string, found bool) {
	for _, shape := range episodeShapes {
		loc := shape.FindStringSubmatchIndex(name)
		if loc == nil {
			continue
		}
		season, _ := strconv.Atoi(name[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(name[loc[4]:loc[5]])
		guess.Season = &season
		guess.Episode = &episode
		return name[:loc[0]], name[loc[1]:], true
	}
	return "", "", false
}

// findYear locates the leftmost 4-digit token bounded by non-digits
// whose value falls in [1888, current_year+2].
func findYear(s string) (start, end, year int) {
	maxYear := time.Now().Year() + 2
	for i := 0; i+4 <= len(s); i++ {
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		if !isDigit(s[i]) || !isDigit(s[i+1]) || !isDigit(s[i+2]) || !isDigit(s[i+3]) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			continue
		}
		value, _ := strconv.Atoi(s[i : i+4])
		if value >= earliestYear && value <= maxYear {
			return i, i + 4, value
		}
	}
	return 0, 0, 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// classifyTags tokenizes text, keeps tokens matching the closed
// vocabularies as release tags, and when episodeTitle is non-nil
// collects the leading run of non-tag tokens as the episode title.
// Non-tag tokens after the first recognized tag are discarded
// (release group names, checksums).
func classifyTags(text string, tags []string, episodeTitle *string) []string {
	var channelTags []string
	text = channelsRegex.ReplaceAllStringFunc(text, func(m string) string {
		channelTags = append(channelTags, m)
		return " "
	})

	var titleWords []string
	seenTag := false
	for _, token := range tokenize(text) {
		if isReleaseTag(token) {
			tags = appendTag(tags, token)
			seenTag = true
			continue
		}
		if episodeTitle != nil && !seenTag {
			titleWords = append(titleWords, token)
		}
	}
	for _, ch := range channelTags {
		tags = appendTag(tags, ch)
	}

	if episodeTitle != nil && len(titleWords) > 0 {
		*episodeTitle = strings.Join(titleWords, " ")
	}
	return tags
}

func tokenize(text string) []string {
	text = separatorRegex.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

func isReleaseTag(token string) bool {
	t := strings.ToLower(token)
	return resolutionTags[t] || sourceTags[t] || videoCodecTags[t] || audioTags[t] || miscTags[t]
}

func appendTag(tags []string, token string) []string {
	tag := strings.ToLower(token)
	for _, existing := range tags {
		if existing == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cleanTitle normalizes word separators to spaces and collapses
// repeats. Case is preserved for provider querying.
func cleanTitle(s string) string {
	s = separatorRegex.ReplaceAllString(s, " ")
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func tagSet(tags ...string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}
