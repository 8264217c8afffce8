package utils

import (
	"bufio"
	"os"
	"strings"
)

// IgnoreList holds filename terms that exclude files from directory
// expansion, e.g. "sample" or "trailer".
type IgnoreList struct {
	terms []string
}

// LoadIgnoreList loads ignore terms from a file, one per line.
// A missing file yields an empty list, not an error.
func LoadIgnoreList(path string) (*IgnoreList, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &IgnoreList{terms: []string{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &IgnoreList{terms: terms}, nil
}

// IsIgnored checks if a filename matches any ignore term.
// Returns (ignored, matchedTerm)
func (l *IgnoreList) IsIgnored(name string) (bool, string) {
	nameLower := strings.ToLower(name)

	for _, term := range l.terms {
		if strings.Contains(nameLower, strings.ToLower(term)) {
			return true, term
		}
	}

	return false, ""
}
