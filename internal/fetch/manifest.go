// Package fetch populates a local corpus from the published bulk archives: it
// parses the XML manifest, downloads tar archives from an S3 or GCS mirror,
// and unpacks the PDF members into per-bucket directories. The core pipeline
// never imports this package; it only reads the directory layout fetch
// leaves behind.
package fetch

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arxtract/arxtract/internal/corpus"
)

// Archive is one tar file listed in the bulk manifest. Checksum and count
// fields are populated when the manifest carries them.
type Archive struct {
	Filename  string `xml:"filename"`
	MD5Sum    string `xml:"md5sum"`
	NumItems  int    `xml:"num_items"`
	SeqNum    int    `xml:"seq_num"`
	Size      int64  `xml:"size"`
	Timestamp string `xml:"timestamp"`
	YYMM      string `xml:"yymm"`
}

// Bucket returns the corpus bucket this archive unpacks into, preferring the
// manifest's yymm field and falling back to the archive name.
func (a Archive) Bucket() (string, error) {
	if corpus.ValidBucket(a.YYMM) {
		return a.YYMM, nil
	}
	return BucketFromArchive(a.Filename)
}

// Manifest is the parsed bulk-data manifest.
type Manifest struct {
	Timestamp string    `xml:"timestamp"`
	Files     []Archive `xml:"file"`
}

// ParseManifest decodes a manifest document. The root element name is not
// checked, so the pdf and src manifests both parse.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// TotalSize sums the listed archive sizes in bytes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, a := range m.Files {
		total += a.Size
	}
	return total
}

// TotalItems sums the listed per-archive item counts.
func (m *Manifest) TotalItems() int {
	total := 0
	for _, a := range m.Files {
		total += a.NumItems
	}
	return total
}

// Filter returns the archives whose yymm starts with prefix, so "23" selects
// one year and "2310" one bucket.
func (m *Manifest) Filter(prefix string) []Archive {
	var out []Archive
	for _, a := range m.Files {
		if strings.HasPrefix(a.YYMM, prefix) {
			out = append(out, a)
		}
	}
	return out
}
