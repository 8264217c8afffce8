package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/providers"
)

// Scoring contract constants. The exact values are a policy choice;
// the ordering they induce is what matters.
const (
	exactTitleScore     = 100.0
	fuzzyTitleCeiling   = 80.0
	yearExactBonus      = 50.0
	yearOffByOneBonus   = 10.0
	yearMismatchPenalty = -50.0
	typeMatchBonus      = 20.0
)

// Matcher ranks provider candidates against a parsed guess.
type Matcher struct {
	providers []providers.Provider
	threshold float64
	logger    *logrus.Logger
}

// NewMatcher creates a matcher over an ordered provider chain.
// threshold is the minimum acceptable candidate score.
func NewMatcher(providerChain []providers.Provider, threshold float64, logger *logrus.Logger) *Matcher {
	return &Matcher{
		providers: providerChain,
		threshold: threshold,
		logger:    logger,
	}
}

// Match queries providers in order and selects the best candidate from
// the first provider that yields an acceptable one. A nil Match with a
// nil error means "no match" and is a normal terminal outcome. The
// error is non-nil only when every provider failed.
func (m *Matcher) Match(ctx context.Context, guess models.Guess, hint models.MediaType) (*models.Match, error) {
	inferred := hint
	if inferred == "" {
		inferred = models.MediaTypeMovie
		if guess.IsTV() {
			inferred = models.MediaTypeTV
		}
	}

	query := providers.Query{
		Title:     guess.Title,
		Year:      guess.Year,
		MediaType: inferred,
	}

	allErrored := true
	for _, provider := range m.providers {
		candidates, err := provider.Search(ctx, query)
		if err != nil {
			m.logger.WithError(err).WithField("provider", provider.ID()).Warn("Provider search failed, trying next")
			continue
		}
		allErrored = false

		accepted := m.rank(guess, inferred, candidates)
		if len(accepted) == 0 {
			m.logger.WithFields(logrus.Fields{
				"provider": provider.ID(),
				"title":    guess.Title,
			}).Debug("No acceptable candidate from provider")
			continue
		}

		// First provider with an acceptable candidate wins; later
		// providers are never consulted once one exists.
		best := accepted[0]
		return m.buildMatch(ctx, provider, guess, best), nil
	}

	if allErrored && len(m.providers) > 0 {
		return nil, fmt.Errorf("all providers failed: %w", providers.ErrUnavailable)
	}
	return nil, nil
}

// rank scores candidates and returns the acceptable ones ordered by
// score, then provider-declared popularity, then returned order.
func (m *Matcher) rank(guess models.Guess, inferred models.MediaType, candidates []models.Candidate) []models.Candidate {
	type ranked struct {
		candidate models.Candidate
		index     int
	}

	var accepted []ranked
	for i, c := range candidates {
		c.Score = Score(guess, c, inferred)
		if math.IsInf(c.Score, -1) || c.Score < m.threshold {
			continue
		}
		accepted = append(accepted, ranked{candidate: c, index: i})
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.candidate.Score != b.candidate.Score {
			return a.candidate.Score > b.candidate.Score
		}
		if a.candidate.Popularity != b.candidate.Popularity {
			return a.candidate.Popularity > b.candidate.Popularity
		}
		return a.index < b.index
	})

	out := make([]models.Candidate, len(accepted))
	for i, r := range accepted {
		out[i] = r.candidate
	}
	return out
}

func (m *Matcher) buildMatch(ctx context.Context, provider providers.Provider, guess models.Guess, best models.Candidate) *models.Match {
	match := &models.Match{
		Candidate: best,
		Season:    guess.Season,
		Episode:   guess.Episode,
		Metadata: models.Metadata{
			Title: best.Title,
			Year:  best.Year,
		},
	}

	if details, err := provider.Details(ctx, best); err != nil {
		m.logger.WithError(err).WithField("provider", provider.ID()).Debug("Details lookup failed, keeping search fields")
	} else if details != nil {
		match.Metadata = *details
	}

	// Episode title resolution degrades gracefully: the match keeps
	// the show title and the episode title stays empty.
	if guess.IsTV() {
		title, err := provider.ResolveEpisode(ctx, best.ExternalID, *guess.Season, *guess.Episode)
		if err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"provider": provider.ID(),
				"season":   *guess.Season,
				"episode":  *guess.Episode,
			}).Debug("Episode title resolution failed")
		} else {
			match.Metadata.EpisodeTitle = title
		}
	}

	return match
}

// Score computes the candidate score for a guess. A candidate whose
// media type contradicts the inferred type is disqualified (-Inf).
func Score(guess models.Guess, candidate models.Candidate, inferred models.MediaType) float64 {
	if candidate.MediaType != inferred {
		return math.Inf(-1)
	}

	score := titleScore(guess.Title, candidate.Title)
	score += typeMatchBonus

	if guess.Year != 0 && candidate.Year != 0 {
		diff := guess.Year - candidate.Year
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			score += yearExactBonus
		case diff == 1:
			score += yearOffByOneBonus
		default:
			score += yearMismatchPenalty
		}
	}

	return score
}

// titleScore awards the full exact-match score for a case-insensitive
// equal title, otherwise a token-overlap ratio scaled into the fuzzy
// band. Tokens within levenshtein distance 1 count as overlapping so
// single-character transcription slips do not zero a token out.
func titleScore(guessTitle, candidateTitle string) float64 {
	a := normalizeTitle(guessTitle)
	b := normalizeTitle(candidateTitle)
	if a == b && a != "" {
		return exactTitleScore
	}

	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	matched := 0
	used := make([]bool, len(bTokens))
	for _, at := range aTokens {
		for j, bt := range bTokens {
			if used[j] {
				continue
			}
			if at == bt || levenshtein.ComputeDistance(at, bt) <= 1 {
				used[j] = true
				matched++
				break
			}
		}
	}

	longer := len(aTokens)
	if len(bTokens) > longer {
		longer = len(bTokens)
	}
	return fuzzyTitleCeiling * float64(matched) / float64(longer)
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
