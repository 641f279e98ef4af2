package qti

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/xml"
)

// MaxEntrySize bounds the decompressed size of one archive entry.
const MaxEntrySize = 64 << 20

// ItemSummary describes one item of a package as an LMS would see it.
type ItemSummary struct {
	Ident  string
	Title  string
	Type   string // Canvas question_type
	Points float64
	// Group is the ident of the enclosing selection section, or "".
	Group string
	// Correct lists the responses the full-credit condition requires:
	// choice idents, or accepted texts for short answers.
	Correct []string
	// Numerical bounds, as written.
	Min, Max string
}

// GroupSummary describes one selection section.
type GroupSummary struct {
	Ident         string
	Pick          int
	PointsPerItem float64
	Items         int
}

// Summary is what a package contains.
type Summary struct {
	AssessmentID string
	Title        string
	// MetaPoints is points_possible from the quiz settings document.
	MetaPoints float64
	Items      []ItemSummary
	Groups     []GroupSummary
	Images     []string
}

// Questions counts gradable items.
func (s *Summary) Questions() int {
	n := 0
	for _, it := range s.Items {
		if it.Type != "text_only_question" {
			n++
		}
	}
	return n
}

// PointsPossible recomputes the reachable score from the items and
// selection sections.
func (s *Summary) PointsPossible() float64 {
	var total float64
	for _, it := range s.Items {
		if it.Group == "" {
			total += it.Points
		}
	}
	for _, g := range s.Groups {
		total += float64(g.Pick) * g.PointsPerItem
	}
	return total
}

// ReadArchive reads a zip package and summarizes it.
func ReadArchive(data []byte) (*Summary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewParse("zip", "", err.Error())
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		clean := path.Clean(f.Name)
		if strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
			return nil, errors.NewValidation("path", fmt.Sprintf("archive entry %q escapes the package", f.Name))
		}
		if f.FileInfo().IsDir() {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, errors.NewIO("read", f.Name, err)
		}
		files[clean] = b
	}
	return Summarize(files)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxEntrySize {
		return nil, fmt.Errorf("entry larger than %d bytes", MaxEntrySize)
	}
	return b, nil
}

// Summarize reads the documents of an unpacked package, keyed by archive
// path.
func Summarize(files map[string][]byte) (*Summary, error) {
	manifestData, ok := files[ManifestName]
	if !ok {
		return nil, errors.NewNotFound("archive entry", ManifestName)
	}
	manifest, err := xml.Parse(manifestData)
	if err != nil {
		return nil, errors.NewParse("xml", ManifestName, err.Error())
	}

	res, err := manifest.XPathFirst("//resource[@type='imsqti_xmlv1p2']")
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.NewNotFound("assessment resource", ManifestName)
	}
	s := &Summary{AssessmentID: res.Attr("identifier")}
	file, _ := res.FindFirst("file")
	href := file.Attr("href")

	images, err := manifest.XPath("//resource[@type='webcontent']")
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		s.Images = append(s.Images, img.Attr("href"))
	}

	assessmentData, ok := files[href]
	if !ok {
		return nil, errors.NewNotFound("archive entry", href)
	}
	if err := xml.CheckWellFormed(assessmentData); err != nil {
		return nil, errors.NewParse("xml", href, err.Error())
	}
	doc, err := xml.Parse(assessmentData)
	if err != nil {
		return nil, errors.NewParse("xml", href, err.Error())
	}
	if a, _ := doc.XPathFirst("//assessment"); a != nil {
		s.Title = a.Attr("title")
	}
	if err := s.readItems(doc); err != nil {
		return nil, err
	}

	if metaData, ok := files[path.Join(path.Dir(href), "assessment_meta.xml")]; ok {
		meta, err := xml.Parse(metaData)
		if err != nil {
			return nil, errors.NewParse("xml", "assessment_meta.xml", err.Error())
		}
		if pp, _ := meta.XPathFirst("/quiz/points_possible"); pp != nil {
			s.MetaPoints, _ = strconv.ParseFloat(strings.TrimSpace(pp.Text()), 64)
		}
	}
	return s, nil
}

func (s *Summary) readItems(doc *xml.Document) error {
	root, err := doc.XPathFirst("//section[@ident='root_section']")
	if err != nil {
		return err
	}
	if root == nil {
		return errors.NewNotFound("section", "root_section")
	}
	for _, child := range root.Children() {
		switch child.Name() {
		case "item":
			it, err := readItem(child)
			if err != nil {
				return err
			}
			s.Items = append(s.Items, it)
		case "section":
			g := GroupSummary{Ident: child.Attr("ident")}
			if n, _ := child.FindFirst(".//selection_number"); n != nil {
				g.Pick, _ = strconv.Atoi(strings.TrimSpace(n.Text()))
			}
			if n, _ := child.FindFirst(".//points_per_item"); n != nil {
				g.PointsPerItem, _ = strconv.ParseFloat(strings.TrimSpace(n.Text()), 64)
			}
			members, err := child.Find("item")
			if err != nil {
				return err
			}
			for _, m := range members {
				it, err := readItem(m)
				if err != nil {
					return err
				}
				it.Group = g.Ident
				s.Items = append(s.Items, it)
			}
			g.Items = len(members)
			s.Groups = append(s.Groups, g)
		}
	}
	return nil
}

func metadataField(item *xml.Node, label string) string {
	fields, _ := item.Find(".//itemmetadata//qtimetadatafield")
	for _, f := range fields {
		l, _ := f.FindFirst("fieldlabel")
		if strings.TrimSpace(l.Text()) == label {
			e, _ := f.FindFirst("fieldentry")
			return strings.TrimSpace(e.Text())
		}
	}
	return ""
}

func readItem(n *xml.Node) (ItemSummary, error) {
	it := ItemSummary{
		Ident: n.Attr("ident"),
		Title: n.Attr("title"),
		Type:  metadataField(n, "question_type"),
	}
	if p := metadataField(n, "points_possible"); p != "" {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return it, errors.NewParse("xml", it.Ident, fmt.Sprintf("invalid points_possible %q", p))
		}
		it.Points = v
	}

	cond, err := n.FindFirst(".//respcondition[@continue='No' and setvar]/conditionvar")
	if err != nil || cond == nil {
		return it, err
	}
	eqs, err := cond.Find(".//varequal")
	if err != nil {
		return it, err
	}
	for _, e := range eqs {
		parent, _ := e.FindFirst("parent::*")
		switch parent.Name() {
		case "not":
			continue
		case "or":
			// The center of a numerical answer; the bounds cover it.
			continue
		}
		it.Correct = append(it.Correct, e.Text())
	}
	if v, _ := cond.FindFirst(".//vargte"); v != nil {
		it.Min = v.Text()
	}
	if v, _ := cond.FindFirst(".//varlte"); v != nil {
		it.Max = v.Text()
	}
	return it, nil
}
