// Package detect produces per-frame object detections.
package detect

import (
	"bufio"
	"os"
	"strings"

	"github.com/carevision/carevision-go/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Detector finds objects on a BGR frame
type Detector interface {
	Detect(frame gocv.Mat) ([]mot.Detection, error)
	Close() error
}

// LoadLabels reads class names, one per line. Blank lines are skipped.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open labels file")
	}
	defer file.Close()

	labels := make([]string, 0, 16)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		label := strings.TrimSpace(scanner.Text())
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't read labels file")
	}
	return labels, nil
}
