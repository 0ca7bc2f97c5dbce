package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	navWithDateRe = regexp.MustCompile(`(?i)₹\s*([\d,]+\.?\d*)\s*\(as of\s*([^)]+)\)`)
	navBareRe     = regexp.MustCompile(`₹\s*([\d,]+\.?\d*)`)

	navPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)NAV[:\s]*₹\s*([\d,]+\.?\d*)\s*\(as of\s*([^)]+)\)`),
		navWithDateRe,
		regexp.MustCompile(`(?i)NAV[:\s]*₹\s*([\d,]+\.?\d*)`),
	}

	minSIPPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Min\.?\s*SIP[:\s]*(?:amount[:\s]*)?₹\s*([\d,]+)`),
		regexp.MustCompile(`(?i)Minimum\s+SIP[:\s]*(?:amount[:\s]*)?₹\s*([\d,]+)`),
		regexp.MustCompile(`(?i)SIP[:\s]*₹\s*([\d,]+)`),
	}

	fundSizePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Fund\s+size[:\s]*₹\s*([\d,]+\.?\d*)\s*(Cr|Lakh|Crore)`),
		regexp.MustCompile(`(?i)Assets\s+Under\s+Management[:\s]*₹\s*([\d,]+\.?\d*)\s*(Cr|Lakh|Crore)`),
		regexp.MustCompile(`(?i)AUM[:\s]*₹\s*([\d,]+\.?\d*)\s*(Cr|Lakh|Crore)`),
	}

	peRatioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)P/E\s+ratio[:\s]*([\d.]+)`),
		regexp.MustCompile(`(?i)Price[-\s]to[-\s]Earnings[:\s]*([\d.]+)`),
	}
	pbRatioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)P/B\s+ratio[:\s]*([\d.]+)`),
		regexp.MustCompile(`(?i)Price[-\s]to[-\s]Book[:\s]*([\d.]+)`),
	}

	periodPercentRe = regexp.MustCompile(`(?i)(\d+Y)\s*[=:]\s*(-?[\d.]+)%`)
	periodRankRe    = regexp.MustCompile(`(?i)(\d+Y)\s*[=:]\s*(\d+)`)

	fundReturnsLabel     = regexp.MustCompile(`(?i)Fund\s+returns`)
	categoryAverageLabel = regexp.MustCompile(`(?i)Category\s+averages?`)
	rankLabel            = regexp.MustCompile(`(?i)\bRank(?:\s+in\s+category)?\b`)

	// Lines carrying these labels hold someone else's period values.
	otherPeriodLabels = regexp.MustCompile(`(?i)category\s+average|annualised|rank`)

	yearReturnRe = regexp.MustCompile(`(?i)(\d+)\s*Year[:\s]*(-?[\d.]+)%`)

	categoryAveragePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Category\s+averages?[:\s]*(\d+Y)\s*[=:]\s*([\d.]+)%`),
		regexp.MustCompile(`(?i)Category\s+average[:\s]*(\d+Y)[:\s]*([\d.]+)%`),
	}
	rankPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Rank\s+in\s+category[:\s]*(\d+Y)\s*[=:]\s*(\d+)`),
		regexp.MustCompile(`(?i)Rank[:\s]*(\d+Y)\s*[=:]\s*(\d+)`),
		regexp.MustCompile(`(?i)(\d+Y)\s*[=:]\s*(\d+)\s*\(rank\)`),
	}
	annualisedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+Y)\s+annualised[:\s]*(-?[\d.]+)%`),
	}

	expenseRatioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Expense\s+ratio[^:\n]*?[:\s]*([\d.]+)%`),
		regexp.MustCompile(`(?i)Total\s+expense\s+ratio[^:\n]*?[:\s]*([\d.]+)%`),
	}

	exitLoadWindowPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Exit\s+load[:\s]*(\d+(?:\.\d+)?%)\s*if\s+redeemed\s+within\s+(\d+)\s+year`),
		regexp.MustCompile(`(?i)Exit\s+load[:\s]*(\d+(?:\.\d+)?%)\s*for\s+redemption\s+within\s+(\d+)\s+year`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?%)\s*exit\s+load\s+if\s+redeemed\s+within\s+(\d+)\s+year`),
	}
	exitLoadBasicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Exit\s+load[:\s]*(\d+(?:\.\d+)?%)[^.\n]*`),
		regexp.MustCompile(`(?i)Exit\s+load[:\s]*([^.\n]+?)(?:\.|\n|$)`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?%)\s*exit\s+load`),
	}

	stampDutyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Stamp\s+duty[:\s]*([\d.]+%)\s*\(policy`),
		regexp.MustCompile(`(?i)Stamp\s+duty[:\s]*([\d.]+%)`),
		regexp.MustCompile(`(?i)Stamp\s+duty[:\s]*([\d.]+)\s*%`),
	}

	lockInRe = regexp.MustCompile(`(?i)Lock-?in\s+period[:\s]*([^\n]+)`)

	currentManagerRe = regexp.MustCompile(`(?i)([\w\s,]+?)\s+is\s+the\s+current\s+fund\s+manager`)
	managerPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i:Fund\s+Manager)[:\s]*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`(?i:Fund\s+Management)[:\s]*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`(?i:Fund\s+Manager)[:\s]*([A-Z][ \t]+[A-Z][a-z]+)`),
	}
	tagRe = regexp.MustCompile(`<[^>]+>`)

	riskMetricPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"alpha", regexp.MustCompile(`(?i)\bAlpha[:\s]*(-?[\d.]+)`)},
		{"beta", regexp.MustCompile(`(?i)\bBeta[:\s]*(-?[\d.]+)`)},
		{"sharpe", regexp.MustCompile(`(?i)\bSharpe(?:\s+ratio)?[:\s]*(-?[\d.]+)`)},
		{"sortino", regexp.MustCompile(`(?i)\bSortino(?:\s+ratio)?[:\s]*(-?[\d.]+)`)},
	}

	riskometerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Risk\s+Level[:\s]*([^\n.]+)`),
		regexp.MustCompile(`(?i)Risk\s*ometer[:\s]*([^\n.]+)`),
		regexp.MustCompile(`(?i)Risk[:\s]*([^\n.]*?(?:Very High|Low|Moderate|High|Conservative|Aggressive)[^\n.]*)`),
		regexp.MustCompile(`(?i)Risk\s+Profile[:\s]*([^\n.]+)`),
		regexp.MustCompile(`(?i)([^\n.]*?(?:Very High|Low|Moderate|High|Conservative|Aggressive)\s+Risk[^\n.]*)`),
	}

	benchmarkPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Benchmark(?:\s+Index)?[:\s]*([^\n.]+)`),
		regexp.MustCompile(`(?i)Tracks\s+the\s+performance\s+of\s+([^\n.]+?)\s+index`),
	}

	statementPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(Download\s+.*?Statement.*?[,.\n])`),
		regexp.MustCompile(`(?i)(How\s+to\s+download.*?statement.*?[,.\n])`),
		regexp.MustCompile(`(?i)(Access\s+your\s+.*?statement.*?[,.\n])`),
		regexp.MustCompile(`(?i)(View\s+.*?Statement.*?[,.\n])`),
		regexp.MustCompile(`(?i)(Account\s+Statement.*?[,.\n])`),
		regexp.MustCompile(`(?i)(You\s+can\s+.*?download.*?from.*?[,.\n])`),
		regexp.MustCompile(`(?i)(To\s+access.*?[,.\n])`),
		regexp.MustCompile(`(?i)(Steps\s+to\s+.*?[,.\n])`),
		regexp.MustCompile(`(?i)(Navigate\s+to.*?[,.\n])`),
	}
)

// firstSubmatch returns the submatches of the first pattern that hits s.
func firstSubmatch(s string, patterns []*regexp.Regexp) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

// firstMatches collects period → value pairs from the first pattern with any
// hit. Later patterns are only consulted when earlier ones find nothing.
func firstMatches(s string, patterns []*regexp.Regexp, format func(string) string) map[string]string {
	for _, re := range patterns {
		out := map[string]string{}
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			out[period(m[1])] = format(m[2])
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// labelledPeriods reads every period value that follows label on its line,
// or on the next line when the label stands alone.
func labelledPeriods(text string, label, value *regexp.Regexp, format func(string) string) map[string]string {
	lines := strings.Split(text, "\n")
	out := map[string]string{}
	for i, line := range lines {
		loc := label.FindStringIndex(line)
		if loc == nil {
			continue
		}
		segment := line[loc[1]:]
		if cut := otherPeriodLabels.FindStringIndex(segment); cut != nil {
			segment = segment[:cut[0]]
		}
		if !value.MatchString(segment) && i+1 < len(lines) {
			segment = lines[i+1]
		}
		for _, m := range value.FindAllStringSubmatch(segment, -1) {
			out[period(m[1])] = format(m[2])
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func period(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	if !strings.HasSuffix(p, "Y") {
		p += "Y"
	}
	return p
}

func percentValue(v string) string { return v + "%" }
func plainValue(v string) string   { return v }

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fundName prefers a heading, then og:title, then <title>.
func (d *document) fundName() string {
	if d.root != nil {
		for _, sel := range []func(*html.Node) bool{
			isTag(atom.H1),
			func(n *html.Node) bool { return attr(n, "data-testid") == "fund-name" },
			attrContains("class", "fundName"),
			attrContains("class", "fund-name"),
		} {
			if n := findFirst(d.root, sel); n != nil {
				if t := nodeText(n); len(t) > 5 {
					return t
				}
			}
		}
		if og := metaProperty(d.root, "og:title"); og != "" {
			return beforePipe(og)
		}
		if t := findFirst(d.root, isTag(atom.Title)); t != nil {
			if s := nodeText(t); s != "" {
				return beforePipe(s)
			}
		}
	} else {
		for _, line := range strings.Split(d.raw, "\n") {
			if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok && len(strings.TrimSpace(h)) > 5 {
				return strings.TrimSpace(h)
			}
		}
	}
	if d.title != "" {
		return beforePipe(d.title)
	}
	return ""
}

func beforePipe(s string) string {
	head, _, _ := strings.Cut(s, "|")
	return strings.TrimSpace(head)
}

// nav returns the NAV without thousands separators and its as-of date.
func (d *document) nav() (value, date string) {
	if d.root != nil {
		navNodes := findAll(d.root, func(n *html.Node) bool {
			return strings.Contains(strings.ToLower(attr(n, "class")), "nav") ||
				strings.Contains(strings.ToLower(attr(n, "data-testid")), "nav")
		})
		for _, n := range navNodes {
			if n.DataAtom == atom.Nav {
				continue
			}
			if m := navWithDateRe.FindStringSubmatch(nodeText(n)); m != nil {
				return stripCommas(m[1]), strings.TrimSpace(m[2])
			}
		}
		for _, n := range navNodes {
			if n.DataAtom == atom.Nav {
				continue
			}
			if m := navBareRe.FindStringSubmatch(nodeText(n)); m != nil {
				return stripCommas(m[1]), ""
			}
		}
	}

	m := firstSubmatch(d.text, navPatterns)
	if m == nil {
		return "", ""
	}
	if len(m) > 2 {
		date = strings.TrimSpace(m[2])
	}
	return stripCommas(m[1]), date
}

func stripCommas(s string) string { return strings.ReplaceAll(s, ",", "") }

func (d *document) minSIP() string {
	if m := firstSubmatch(d.text, minSIPPatterns); m != nil {
		return stripCommas(m[1])
	}
	return ""
}

func (d *document) fundSize() string {
	if m := firstSubmatch(d.text, fundSizePatterns); m != nil {
		return stripCommas(m[1]) + " " + m[2]
	}
	return ""
}

func (d *document) ratio(patterns []*regexp.Regexp) string {
	if m := firstSubmatch(d.text, patterns); m != nil {
		return strings.TrimRight(m[1], ".")
	}
	return ""
}

func (d *document) fundReturns() map[string]string {
	if r := labelledPeriods(d.text, fundReturnsLabel, periodPercentRe, percentValue); r != nil {
		return r
	}

	out := map[string]string{}
	for _, line := range strings.Split(d.text, "\n") {
		if otherPeriodLabels.MatchString(line) {
			continue
		}
		for _, m := range periodPercentRe.FindAllStringSubmatch(line, -1) {
			out[period(m[1])] = percentValue(m[2])
		}
	}
	if len(out) > 0 {
		return out
	}
	return firstMatches(d.text, []*regexp.Regexp{yearReturnRe}, percentValue)
}

func (d *document) categoryAverages() map[string]string {
	if r := labelledPeriods(d.text, categoryAverageLabel, periodPercentRe, percentValue); r != nil {
		return r
	}
	return firstMatches(d.text, categoryAveragePatterns, percentValue)
}

func (d *document) rank() map[string]string {
	if r := labelledPeriods(d.text, rankLabel, periodRankRe, plainValue); r != nil {
		return r
	}
	return firstMatches(d.text, rankPatterns, plainValue)
}

func (d *document) expenseRatio() string {
	if m := firstSubmatch(d.text, expenseRatioPatterns); m != nil {
		return m[1] + "%"
	}
	return ""
}

// analysisValue reads an "analysis_subject" entry from JSON embedded in the page.
func (d *document) analysisValue(subject string) string {
	re := regexp.MustCompile(`(?i)"analysis_subject"\s*:\s*"` + regexp.QuoteMeta(subject) + `".*?"analysis_data"\s*:\s*"(.*?)"`)
	if m := re.FindStringSubmatch(d.raw); m != nil {
		return strings.TrimSpace(unescapeJSON(m[1]))
	}
	return ""
}

// jsonValue reads the first "field":"value" pair embedded in the page.
func (d *document) jsonValue(field string) string {
	re := regexp.MustCompile(`(?i)"` + regexp.QuoteMeta(field) + `"\s*:\s*"(.*?)"`)
	if m := re.FindStringSubmatch(d.raw); m != nil {
		return strings.TrimSpace(unescapeJSON(m[1]))
	}
	return ""
}

func unescapeJSON(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func (d *document) exitLoad() string {
	if v := d.analysisValue("exit_load"); v != "" {
		switch strings.ToLower(v) {
		case "nil", "zero", "na", "n/a":
			return "Nil"
		}
		if isNumber(v) {
			return v + "%"
		}
		return v
	}

	if m := firstSubmatch(d.text, exitLoadWindowPatterns); m != nil {
		return m[1] + " if redeemed within " + m[2] + " year"
	}
	for _, re := range exitLoadBasicPatterns {
		m := re.FindStringSubmatch(d.text)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); strings.Contains(v, "%") && len(v) < 50 {
			return v
		}
	}
	return ""
}

func (d *document) stampDuty() string {
	m := firstSubmatch(d.text, stampDutyPatterns)
	if m == nil {
		return ""
	}
	if strings.HasSuffix(m[1], "%") {
		return m[1]
	}
	return m[1] + "%"
}

func (d *document) lockIn() string {
	if v := d.analysisValue("lock_in"); v != "" {
		v = strings.ToUpper(v)
		if _, err := strconv.Atoi(v); err == nil {
			return v + "Y"
		}
		return v
	}
	if m := lockInRe.FindStringSubmatch(d.text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// schemeTags reads scheme type and sub-category from embedded JSON. isELSS
// and label are empty when neither tag is present.
func (d *document) schemeTags() (schemeType, subCategory, isELSS, label string) {
	schemeType = d.jsonValue("scheme_type")
	subCategory = d.jsonValue("sub_category")
	if schemeType == "" && subCategory == "" {
		return "", "", "", ""
	}

	isELSS = "No"
	if strings.EqualFold(schemeType, "ELSS") || strings.EqualFold(subCategory, "ELSS") {
		isELSS = "Yes"
	}

	var labels []string
	for _, v := range []string{schemeType, subCategory} {
		if v != "" && (len(labels) == 0 || labels[0] != v) {
			labels = append(labels, v)
		}
	}
	return schemeType, subCategory, isELSS, strings.Join(labels, " ")
}

var notManagers = map[string]bool{"s nfo": true, "nfo": true, "new fund": true, "fund offer": true}

func (d *document) fundManager() string {
	if m := currentManagerRe.FindStringSubmatch(d.raw); m != nil {
		name := collapse(tagRe.ReplaceAllString(m[1], ""))
		name = strings.TrimSpace(strings.ReplaceAll(name, "UTI Mutual Fund", ""))
		if name != "" {
			return name
		}
	}
	for _, re := range managerPatterns {
		m := re.FindStringSubmatch(d.text)
		if m == nil {
			continue
		}
		name := collapse(m[1])
		if notManagers[strings.ToLower(name)] {
			continue
		}
		return name
	}
	return ""
}

func (d *document) riskMetrics() map[string]string {
	out := map[string]string{}
	for _, p := range riskMetricPatterns {
		if m := p.re.FindStringSubmatch(d.text); m != nil {
			if v := strings.TrimRight(m[1], "."); isNumber(v) {
				out[p.name] = v
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (d *document) riskometer() string {
	for _, field := range []string{"risk_level", "risk"} {
		if v := d.jsonValue(field); v != "" {
			return v
		}
	}
	return boundedMatch(d.text, riskometerPatterns, 100)
}

func (d *document) benchmark() string {
	if v := d.jsonValue("benchmark"); v != "" {
		return v
	}
	return boundedMatch(d.text, benchmarkPatterns, 150)
}

func (d *document) statementDownloadInfo() string {
	return boundedMatch(d.text, statementPatterns, 300)
}

// boundedMatch returns the first non-empty capture shorter than limit.
func boundedMatch(text string, patterns []*regexp.Regexp, limit int) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := collapse(m[1]); v != "" && len(v) < limit {
			return v
		}
	}
	return ""
}
