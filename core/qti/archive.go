// Package qti serializes a resolved quiz into a QTI 1.2 package for Canvas
// and reads such packages back.
//
// A package is a zip archive holding imsmanifest.xml, the Canvas quiz
// settings document, the assessment itself and any bundled images. Every
// path inside it derives from generated identifiers, and entries are
// written in a fixed order with fixed timestamps, so the same quiz and
// seed always produce the same bytes.
package qti

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"time"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/resolve"
)

// ManifestName is the archive path of the package manifest.
const ManifestName = "imsmanifest.xml"

// nonCCDir is an empty directory Canvas expects in quiz exports.
const nonCCDir = "non_cc_assessments/"

// epoch is the timestamp written when Options.Date is zero. It is the
// earliest time a zip header can represent.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configure Build.
type Options struct {
	// Date is the package creation date. It is written into the manifest
	// and used as the modification time of every entry.
	Date time.Time
}

// File is one archive entry. A Name ending in "/" is a directory.
type File struct {
	Name string
	Data []byte
}

// Package is a serialized quiz ready to be written as a zip archive.
type Package struct {
	IDs   Identifiers
	Files []File
	date  time.Time
}

// Build serializes p.
func Build(p *resolve.Plan, opts Options) *Package {
	date := opts.Date
	if date.IsZero() {
		date = epoch
	}
	ids := NewIdentifiers(p.Quiz)
	pkg := &Package{IDs: ids, date: date.UTC()}

	var blobs []*cas.Blob
	if p.Quiz.Images != nil {
		blobs = p.Quiz.Images.Blobs()
	}

	pkg.Files = append(pkg.Files,
		File{Name: ManifestName, Data: Manifest(ids, blobs, pkg.date)},
		File{Name: nonCCDir},
		File{Name: ids.Assessment + "/assessment_meta.xml", Data: AssessmentMeta(p.Quiz, ids)},
		File{Name: AssessmentPath(ids), Data: Assessment(p, ids)},
	)
	for _, b := range blobs {
		pkg.Files = append(pkg.Files, File{Name: imagePath(b), Data: b.Data})
	}
	return pkg
}

// AssessmentPath is the archive path of the assessment document.
func AssessmentPath(ids Identifiers) string {
	return ids.Assessment + "/" + ids.Assessment + ".xml"
}

// File returns the data stored under name.
func (p *Package) File(name string) ([]byte, bool) {
	for _, f := range p.Files {
		if f.Name == name {
			return f.Data, true
		}
	}
	return nil, false
}

// WriteZip writes the package as a zip archive.
func (p *Package) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range p.Files {
		if err := writeToZip(zw, f, p.date); err != nil {
			return errors.Wrapf(err, "failed to write %s", f.Name)
		}
	}
	return zw.Close()
}

// Bytes returns the zip archive.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.WriteZip(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeToZip(zw *zip.Writer, f File, date time.Time) error {
	header := &zip.FileHeader{
		Name:     f.Name,
		Method:   zip.Deflate,
		Modified: date,
	}
	if isDir(f.Name) {
		header.Method = zip.Store
		header.SetMode(os.ModeDir | 0755)
	} else {
		header.SetMode(0644)
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = w.Write(f.Data)
	return err
}

func isDir(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
