package extraction

import (
	"regexp"
	"strings"
	"time"
)

var (
	titlePattern       = regexp.MustCompile(`(?i)\b(certificate|diploma|award|certification)\b`)
	recipientPattern   = regexp.MustCompile(`(?i)(?:awarded to|presented to|certifies that|granted to)[:\s]+([\p{L}.'\- ]{3,80})`)
	institutionPattern = regexp.MustCompile(`(?i)\b(university|college|institute|academy|school|polytechnic)\b`)
	certIDPattern      = regexp.MustCompile(`(?i)(?:certificate|credential|cert)\s*(?:id|no\.?|number|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{3,})`)
	isoDatePattern     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	longDatePattern    = regexp.MustCompile(`\b((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)
	dayFirstPattern    = regexp.MustCompile(`\b(\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})\b`)
)

// ParseFields applies text heuristics to raw document text. It fills only
// the fields it can find and never sets confidence or method.
func ParseFields(text string) Result {
	lines := nonEmptyLines(text)
	res := Result{RawText: strings.Join(lines, "\n")}

	for _, line := range lines {
		if res.Title == "" && titlePattern.MatchString(line) && len(line) <= 120 {
			res.Title = line
		}
		if res.Institution == "" && institutionPattern.MatchString(line) && !titlePattern.MatchString(line) && len(line) <= 120 {
			res.Institution = line
		}
	}
	if m := recipientPattern.FindStringSubmatch(text); m != nil {
		res.Recipient = strings.TrimSpace(strings.SplitN(m[1], "\n", 2)[0])
	}
	if m := certIDPattern.FindStringSubmatch(text); m != nil {
		res.CertificateID = strings.ToUpper(m[1])
	}
	res.DateIssued = findDate(text)
	return res
}

func findDate(text string) string {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if _, err := time.Parse("2006-01-02", m[1]); err == nil {
			return m[1]
		}
	}
	if m := longDatePattern.FindStringSubmatch(text); m != nil {
		raw := strings.Replace(m[1], ",", "", 1)
		if t, err := time.Parse("January 2 2006", strings.Join(strings.Fields(raw), " ")); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := dayFirstPattern.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2 January 2006", strings.Join(strings.Fields(m[1]), " ")); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
