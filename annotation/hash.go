package annotation

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v6"
)

// HashFile returns the hex SHA-256 of a file. Ingested images are keyed by
// their content hash so the same picture is never stored twice.
func HashFile(fs billy.Filesystem, filename string) (string, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
