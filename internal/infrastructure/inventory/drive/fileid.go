package drive

import (
	"regexp"
	"strings"
)

var fileIDPattern = regexp.MustCompile(`/d/([-\w]{10,})|[?&]id=([-\w]{10,})`)

// ExtractFileID returns the file id from a Drive share link such as
// https://drive.google.com/file/d/<id>/view or ...open?id=<id>.
func ExtractFileID(link string) (string, bool) {
	m := fileIDPattern.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}
