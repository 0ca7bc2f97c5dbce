package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/fundqa/internal/model"
)

const maxHoldings = 10

var percentCellRe = regexp.MustCompile(`^-?\d+(?:\.\d+)?\s*%$`)

// holdings reads the top holdings table. HTML pages use the first table whose
// class or preceding heading mentions holdings; text pages use the first
// markdown table after a holdings heading.
func (d *document) holdings() []model.Holding {
	if d.root != nil {
		return d.htmlHoldings()
	}
	return markdownHoldings(d.raw)
}

func (d *document) htmlHoldings() []model.Holding {
	tables := findAll(d.root, isTag(atom.Table))
	for _, t := range tables {
		if !strings.Contains(strings.ToLower(attr(t, "class")), "holding") && !precededByHoldingsHeading(t) {
			continue
		}
		var out []model.Holding
		for _, tr := range findAll(t, isTag(atom.Tr)) {
			var cells []string
			for c := tr.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Td {
					cells = append(cells, nodeText(c))
				}
			}
			if h, ok := holdingFromCells(cells); ok {
				out = append(out, h)
			}
			if len(out) == maxHoldings {
				break
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// precededByHoldingsHeading checks the nearest heading before the table.
func precededByHoldingsHeading(t *html.Node) bool {
	for n := t.PrevSibling; n != nil; n = n.PrevSibling {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			return strings.Contains(strings.ToLower(nodeText(n)), "holding")
		}
	}
	return false
}

// holdingFromCells takes the name from the first cell and the share from the
// last cell that looks like a percentage.
func holdingFromCells(cells []string) (model.Holding, bool) {
	if len(cells) < 2 || cells[0] == "" {
		return model.Holding{}, false
	}
	for i := len(cells) - 1; i > 0; i-- {
		if percentCellRe.MatchString(cells[i]) {
			return model.Holding{
				Name:       cells[0],
				Percentage: strings.ReplaceAll(cells[i], " ", ""),
			}, true
		}
	}
	return model.Holding{}, false
}

func markdownHoldings(text string) []model.Holding {
	var out []model.Holding
	inSection := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if len(out) > 0 {
				break
			}
			inSection = strings.Contains(strings.ToLower(line), "holding")
			continue
		}
		if !inSection || !strings.HasPrefix(line, "|") {
			continue
		}
		var cells []string
		for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
			cells = append(cells, strings.TrimSpace(c))
		}
		if h, ok := holdingFromCells(cells); ok {
			out = append(out, h)
		}
		if len(out) == maxHoldings {
			break
		}
	}
	return out
}
