package launcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/splatloc/train-launcher/pkg/fileutil"
)

const (
	pointCloudDir   = "point_cloud"
	iterationPrefix = "iteration_"
	pointCloudFile  = "point_cloud.ply"
	camerasFile     = "cameras.json"
	inputPointCloud = "input.ply"
)

// LatestIteration returns the largest N among "<output>/point_cloud/iteration_<N>".
// It returns 0 when no checkpoint exists.
func LatestIteration(output string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(output, pointCloudDir))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), iterationPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), iterationPrefix))
		if err != nil || n < 0 {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

// ScanArtifacts lists known training outputs relative to output:
// the camera list, the input point cloud, and the latest checkpoint.
func ScanArtifacts(output string) ([]string, error) {
	var found []string
	for _, rel := range []string{camerasFile, inputPointCloud} {
		if fileutil.Exist(filepath.Join(output, rel)) {
			found = append(found, rel)
		}
	}

	n, err := LatestIteration(output)
	if err != nil {
		return found, err
	}
	if n > 0 {
		rel := filepath.Join(pointCloudDir, iterationPrefix+strconv.Itoa(n), pointCloudFile)
		if fileutil.Exist(filepath.Join(output, rel)) {
			found = append(found, rel)
		}
	}
	return found, nil
}
