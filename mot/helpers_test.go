package mot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// writeTracksCSV dumps tracks for visual inspection. Format: id;x,y|x,y|...
func writeTracksCSV[B Blob[B]](filename string, objects map[uuid.UUID]B) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if err := writer.Write([]string{"id", "track"}); err != nil {
		return err
	}
	for objectID, object := range objects {
		track := object.GetTrack()
		data := make([]string, len(track))
		for idx, pt := range track {
			data[idx] = fmt.Sprintf("%f,%f", pt.X, pt.Y)
		}
		if err := writer.Write([]string{objectID.String(), strings.Join(data, "|")}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func dumpTracks[B Blob[B]](t *testing.T, name string, objects map[uuid.UUID]B) {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	if err := writeTracksCSV(filename, objects); err != nil {
		t.Errorf("Could not write CSV: %v", err)
	}
}
